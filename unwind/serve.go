package unwind

import "fmt"

// Transport is the typed control channel between the controller and the
// helper. Implementations must preserve message boundaries.
type Transport interface {
	Send(v any) error
	Recv(v any) error
}

// Serve handles exactly one unwind exchange: receive the request, unwind,
// send the result. Any error aborts the helper, which the controller
// observes as a non-clean final status.
func Serve(tr Transport) error {
	var req Request
	if err := tr.Recv(&req); err != nil {
		return fmt.Errorf("unwind: failed to receive request: %w", err)
	}
	frames, err := Unwind(req.Pid, req.Regs, req.MaxFrames)
	if err != nil {
		return err
	}
	if err := tr.Send(&Result{Frames: frames}); err != nil {
		return fmt.Errorf("unwind: failed to send result: %w", err)
	}
	return nil
}
