package routing

import (
	"errors"
	"fmt"

	"github.com/michaelpento.lv/swaprouter/types"
)

var (
	// ErrInvalidRequest is returned for malformed routing requests
	ErrInvalidRequest = errors.New("invalid routing request")

	// ErrRoutingFailed is returned when every enabled generator failed
	ErrRoutingFailed = errors.New("routing failed")

	// ErrTimeout is returned when a request exceeds the configured timeout
	ErrTimeout = errors.New("routing timed out")
)

// GeneratorError records the failure of a single route generator
type GeneratorError struct {
	Strategy types.Strategy
	Err      error
}

func (e *GeneratorError) Error() string {
	return fmt.Sprintf("%s generator: %v", e.Strategy, e.Err)
}

func (e *GeneratorError) Unwrap() error {
	return e.Err
}
