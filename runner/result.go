package runner

import (
	"fmt"
	"time"
)

// Result is the final result of a confined process
type Result struct {
	Status            // final status
	ExitStatus int    // exit status (signal number if signalled)
	Error      string // detailed error message for runner errors

	RunningTime time.Duration // wall clock from launch to termination
}

func (r Result) String() string {
	switch r.Status {
	case StatusNormal:
		return fmt.Sprintf("Result[OK][%v]", r.RunningTime)

	case StatusSignalled:
		return fmt.Sprintf("Result[Signalled(%d)][%v]", r.ExitStatus, r.RunningTime)

	case StatusRunnerError:
		return fmt.Sprintf("Result[RunnerFailed(%s)][%v]", r.Error, r.RunningTime)

	default:
		return fmt.Sprintf("Result[%v(%s %d)][%v]", r.Status, r.Error, r.ExitStatus, r.RunningTime)
	}
}
