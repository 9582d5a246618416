package stream

import (
	"errors"
	"fmt"
)

// FatalAuthError means the provider rejected the session. It is never
// retried; the owning task must stop and report.
type FatalAuthError struct {
	Reason string
}

func (e *FatalAuthError) Error() string {
	return fmt.Sprintf("authentication rejected: %s", e.Reason)
}

// TransientError wraps I/O failures that the reconnect controller may
// retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrHeartbeatTimeout is raised when the server stops acknowledging
// liveness probes. Treated as transient.
var ErrHeartbeatTimeout = errors.New("heartbeat ack timeout")

// ErrNotConnected is returned for commands issued without an open socket.
var ErrNotConnected = errors.New("stream not connected")

// IsFatal reports whether err must not be retried.
func IsFatal(err error) bool {
	var fa *FatalAuthError
	return errors.As(err, &fa)
}

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
