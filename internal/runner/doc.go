// Package runner implements supervision of script subprocesses and
// the streaming of their output.
//
// Overview
// The Service is the composition root. It owns a Registry of active
// runs, a LogBook of per-script log history and a Bus fanning lifecycle
// events out to subscribers. Clients ask it to start or stop a script;
// everything after a successful start is reported through the bus and
// the log book, never through the original caller.
//
// A Supervisor owns exactly one child process: two scanner goroutines
// capture stdout and stderr line by line, one wait goroutine reaps the
// process and retires the run. Stop sends SIGTERM, waits a bounded
// grace period and escalates to SIGKILL.
//
// Data flow:
//
//	Service              Supervisor{script}         child process
//	   |                       |                        |
//	StartRun -> register ----->| start ---------------->| exec.Start
//	   |                       | stdout/stderr scanners |
//	   |                       | wait goroutine         |
//	   |   LogBook <- entries  |                        |
//	   |   Bus     <- events   |<------- exit ----------|
//	StopRun -> SIGTERM ------->| grace 5s, then SIGKILL |
//
// Invariants:
//   - At most one active run per script identifier.
//   - Within one stream entries keep the order they were produced in.
//   - started precedes every log event of a run; exactly one stopped
//     event ends it no matter how the process died.
//   - A failing supervisor still unregisters its run; nothing is ever
//     left behind in the registry.
package runner
