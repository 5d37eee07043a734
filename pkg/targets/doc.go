/*
Package targets resolves the space-separated target name lists used by
steps (<step targets="A B groupC">) into a concrete, deduplicated list
of nodes, expanding group membership recursively.

Ported from the original implementation's Testbed._resolve_target,
which walks an unresolved-names worklist swapping group names for their
members until only node names remain. That version iterates a Python
set, so member order (and therefore execution order across concurrent
node operations) is incidental; Registry.Resolve instead preserves
first-seen order and rejects a group that (directly or transitively)
contains itself, which the original has no equivalent check for.
*/
package targets
