package pagestate

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation reports an orchestrator state that cannot be
	// reached by a correct sequence of events. The cycle is aborted.
	ErrProtocolViolation = errors.New("pagestate: protocol violation")

	// ErrUnhandledResult reports a result that matched no active step and
	// has no fallback registered.
	ErrUnhandledResult = errors.New("pagestate: unhandled result")

	// ErrUnknownState reports a lookup for a PageState that was never
	// registered.
	ErrUnknownState = errors.New("pagestate: unknown page state")

	// ErrUnknownStep reports conditions revealed for a step that does not
	// exist or takes no conditions.
	ErrUnknownStep = errors.New("pagestate: unknown conditional step")
)

func violation(step QueryStep, format string, args ...any) error {
	return fmt.Errorf("%w: step %q in state %s: %s",
		ErrProtocolViolation, step.Name, step.State, fmt.Sprintf(format, args...))
}
