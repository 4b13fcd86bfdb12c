package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrGateway matches any *GatewayError via errors.Is.
	ErrGateway = errors.New("model gateway call failed")

	// ErrStateInvariant matches any *InvariantError via errors.Is.
	ErrStateInvariant = errors.New("conversation state invariant violated")
)

// GatewayError reports a failed model call. The pass that hit it stops;
// nothing is retried.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: gateway: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func (e *GatewayError) Is(target error) bool { return target == ErrGateway }

// InvariantError reports conversation state that cannot be trusted, such as a
// duplicated summary marker or a removal naming an unknown turn.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "state invariant violation: " + e.Reason
}

func (e *InvariantError) Is(target error) bool { return target == ErrStateInvariant }

func invariantf(format string, args ...any) error {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}
