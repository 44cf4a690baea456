package sandbox

import "time"

const (
	helperArg = "sandtrace_unwind_helper"

	helperMaxProc = 1

	stagingPrefix = ".sandtrace_unwind_"

	// limits applied to the unwind helper
	helperCPULimit  = 10 // s
	helperWallLimit = 5 * time.Second
)
