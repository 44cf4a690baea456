// Package runner provides the common vocabulary for the final disposition of
// a confined process: its status, exit code and wall-clock running time.
package runner

// Status is the final disposition of a confined process
type Status int

const (
	StatusInvalid Status = iota // 0 not initialized
	StatusNormal                // 1 clean exit

	StatusTimeLimitExceeded // 2 killed by the wall-clock watchdog or CPU rlimit

	StatusSignalled         // 3 terminated by a signal
	StatusNonzeroExitStatus // 4 exited with a nonzero status

	StatusRunnerError // 5 controller-side failure
)

var statusString = []string{
	"Invalid",
	"",
	"Time Limit Exceeded",
	"Signalled",
	"Nonzero Exit Status",
	"Runner Error",
}

func (t Status) String() string {
	i := int(t)
	if i >= 0 && i < len(statusString) {
		return statusString[i]
	}
	return statusString[0]
}

func (t Status) Error() string {
	return t.String()
}
