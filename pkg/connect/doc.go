/*
Package connect admits SSH operations onto a bounded number of
concurrent connections and, optionally, spaces out new-connection
attempts with a cooldown so a burst of scheduled tasks doesn't hammer a
target's sshd all at once.

Grounded on the original implementation's Testbed.ssh_acquire /
ssh_release (an asyncio.Semaphore guarding concurrency, paired with a
lock released later by a timer callback for the cooldown), reworked
onto golang.org/x/sync/semaphore.Weighted the way pkg/network's
HostPortPublisher in the teacher repo centralizes a limited shared
resource behind a small guarded type -- admission control here is a
semaphore instead of iptables rule bookkeeping, but the "one type owns
acquire/release plus bookkeeping, instrumented with Prometheus
counters" shape carries over.
*/
package connect
