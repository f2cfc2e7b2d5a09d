package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/ballotbox/pkg/core"
)

// ErrMalformedEnvelope reports a response body that is not a JSON object.
var ErrMalformedEnvelope = errors.New("rpc: malformed envelope")

// ServerError is an envelope carrying the backend's error marker. It is
// shown to the user and never correlated with a query step.
type ServerError struct {
	Query   string
	Ticket  string
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error on %s (%s): %s", e.Query, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error on %s: %s", e.Query, e.Message)
}

type envelope struct {
	Query string `mapstructure:"query"`
	UUID  string `mapstructure:"uuid"`
	Error any    `mapstructure:"error"`

	core.Payload `mapstructure:",squash"`
}

// DecodeEnvelope decodes one backend response. An envelope carrying an
// error marker yields a *ServerError.
func DecodeEnvelope(body []byte) (core.Result, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return core.Result{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if raw == nil {
		return core.Result{}, fmt.Errorf("%w: null body", ErrMalformedEnvelope)
	}

	var env envelope
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &env,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return core.Result{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return core.Result{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if env.Error != nil {
		return core.Result{}, serverError(env, raw["error"])
	}

	env.Payload.Raw = raw
	return core.Result{Query: env.Query, Ticket: env.UUID, Payload: env.Payload}, nil
}

func serverError(env envelope, marker any) *ServerError {
	e := &ServerError{Query: env.Query, Ticket: env.UUID}
	switch m := marker.(type) {
	case string:
		e.Message = m
	case map[string]any:
		if msg, ok := m["message"].(string); ok {
			e.Message = msg
		}
		if code, ok := m["code"]; ok && code != nil {
			e.Code = fmt.Sprintf("%v", code)
		}
	default:
		e.Message = fmt.Sprintf("%v", m)
	}
	if e.Message == "" {
		e.Message = "unknown error"
	}
	return e
}
