// Package errs provides structured error types shared across the bridge.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies a failure category.
type Code string

const (
	// CodeNetwork indicates a transport failure (dial, poll, query timeout).
	CodeNetwork Code = "network"
	// CodeDecode indicates an undecodable venue payload.
	CodeDecode Code = "decode"
	// CodeVenue indicates a venue-side refusal carried in the response retType.
	CodeVenue Code = "venue_error"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNotFound indicates a missing resource (account, order, instrument).
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates the gateway is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the bridge.
type E struct {
	Component string
	Code      Code
	RetType   int32
	ProtoID   uint32
	RawMsg    string
	Message   string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the component and failure code.
func New(component string, code Code, opts ...Option) *E {
	e := &E{Component: strings.TrimSpace(component), Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRetType records the venue response retType that signalled the failure.
func WithRetType(retType int32) Option {
	return func(e *E) {
		e.RetType = retType
	}
}

// WithProtoID records the protocol number of the failing request or push.
func WithProtoID(protoID uint32) Option {
	return func(e *E) {
		e.ProtoID = protoID
	}
}

// WithRawMessage captures the raw venue error message.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	component := strings.TrimSpace(e.Component)
	if component == "" {
		component = "unknown"
	}
	parts = append(parts, "component="+component)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.ProtoID > 0 {
		parts = append(parts, "proto="+strconv.FormatUint(uint64(e.ProtoID), 10))
	}
	if e.RetType != 0 {
		parts = append(parts, "ret_type="+strconv.FormatInt(int64(e.RetType), 10))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// IsTransient reports whether the error is worth an automatic retry:
// transport failures and temporary gateway unavailability qualify,
// venue refusals and caller mistakes do not.
func IsTransient(err error) bool {
	var e *E
	if !errors.As(err, &e) || e == nil {
		return false
	}
	switch e.Code {
	case CodeNetwork, CodeUnavailable:
		return true
	default:
		return false
	}
}
