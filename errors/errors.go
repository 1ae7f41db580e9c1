package errors

import "fmt"

var (
	// ErrNoRoomAvailable aborts the whole run: there is nothing to join.
	ErrNoRoomAvailable = fmt.Errorf("no room available to join")

	// ErrAuthFailure is fatal to one user only.
	ErrAuthFailure = fmt.Errorf("login failed")

	ErrRegistrationRejected = fmt.Errorf("registration rejected")
	ErrConnectFailure       = fmt.Errorf("websocket connect failed")
	ErrTransportError       = fmt.Errorf("websocket transport error")

	// ErrFailureThreshold is returned by the run when too many sessions errored.
	ErrFailureThreshold = fmt.Errorf("session failure ratio above threshold")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
