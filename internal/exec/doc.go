// Package exec runs a single child process to completion, draining both of
// its output streams concurrently while honouring a deadline and external
// cancellation.
//
// Full process-tree termination is only guaranteed on Linux, where the runner
// can rely on the operating system's job-control semantics to deliver signals
// to every member of the child process group. On macOS and Windows KillTree
// offers best-effort semantics: the direct child is terminated, but without
// kernel-enforced job control any grandchildren may remain running and must
// be cleaned up separately by the caller.
package exec
