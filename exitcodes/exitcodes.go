// Package exitcodes defines the exit codes used by picofuzz.
package exitcodes

// Exit code constants used by picofuzz:
//
// * Success (0): every file was replayed and answered
// * RunFailure (1): a file could not be replayed or the target misbehaved
// * RuntimeErr (2): setup failed, e.g. the socket is unreachable or the directory is missing
// * UsageErr (3): invalid command line
const (
	Success    = 0
	RunFailure = 1
	RuntimeErr = 2
	UsageErr   = 3
)
