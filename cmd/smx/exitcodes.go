package main

// Exit codes. Driver scripts branch on these, so they are stable.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration or pre-flight error (bad config, malformed vocabulary)
	ExitDataError   = 3 // Data error (unreadable index, missing plan)
	ExitPartial     = 4 // Partial success (failed units within tolerance, excluded shards)
	ExitIncomplete  = 5 // Extraction incomplete (failed units exceeded tolerance)
)
