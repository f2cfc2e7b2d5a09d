package page

import (
	"errors"

	"github.com/a-h/templ"

	"github.com/leapstack-labs/ballotbox/internal/rpc"
)

// ErrorView renders err as an alert. Backend errors show the backend's
// message; anything else shows a generic one.
func ErrorView(err error) templ.Component {
	msg := "Something went wrong. Please try again."
	var serverErr *rpc.ServerError
	if errors.As(err, &serverErr) {
		msg = serverErr.Message
	} else if errors.Is(err, ErrNotReady) {
		msg = err.Error()
	}
	return Alert(msg)
}
