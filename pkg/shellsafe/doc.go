/*
Package shellsafe holds the small validation and quoting helpers
shared by pkg/node and pkg/transfer: wrapping a command in an explicit
environment assignment, and validating a put task's destination path
against an allow-list before it is ever interpolated into a shell
command line.

Grounded on the original implementation's helper.wrap_env (env
K=V... sh -c "<cmd>") and on the destination-path regex guard inlined
in Testbed._run_task's put branch, generalized here into named,
independently testable functions the way the teacher's pkg/security
package factors certificate validation into small single-purpose
functions rather than inlining checks at call sites.
*/
package shellsafe
