// Package channel implements the asynchronous method channel between the
// application layer and the bridge.
//
// Inbound traffic is a stream of MethodCalls answered by a Handler. Outbound
// traffic is a stream of Events raised by the bridge and delivered, in order,
// to a Sink by the Outbox.
package channel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/reloved/flutter-openwrap-sdk/internal/metrics"
	"github.com/reloved/flutter-openwrap-sdk/pkg/logger"
)

// Error codes carried by PlatformError
const (
	CodePlatformException = "OpenWrapPlatformException"
	CodeMissingParameters = "Missing parameter/s"
)

var (
	// ErrNotImplemented answers a call whose route is unknown
	ErrNotImplemented = errors.New("method not implemented")

	// ErrNoReply marks a call that was accepted but deliberately left unanswered
	ErrNoReply = errors.New("call dropped without reply")
)

// PlatformError is a caller-visible failure of a method call
type PlatformError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewPlatformError creates a PlatformError
func NewPlatformError(code, message string, details any) *PlatformError {
	return &PlatformError{Code: code, Message: message, Details: details}
}

func (e *PlatformError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MethodCall is one inbound call: a '#'-delimited method name and its arguments.
// Arguments is either a map[string]any or a single primitive.
type MethodCall struct {
	Method    string
	Arguments any
}

// Handler answers inbound method calls.
//
// A handler returns ErrNotImplemented for unknown routes, ErrNoReply when the
// call must be dropped silently, or a *PlatformError for caller-visible failures.
type Handler interface {
	HandleMethodCall(ctx context.Context, call *MethodCall) (any, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, call *MethodCall) (any, error)

// HandleMethodCall calls f(ctx, call)
func (f HandlerFunc) HandleMethodCall(ctx context.Context, call *MethodCall) (any, error) {
	return f(ctx, call)
}

// Messenger sends outward events to the application layer
type Messenger interface {
	InvokeMethod(method string, arguments map[string]any)
}

// Event is one outward method invocation
type Event struct {
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments"`
}

// Reply is the transport-neutral outcome of one inbound call
type Reply struct {
	Result         any
	Error          *PlatformError
	NotImplemented bool
	Dropped        bool
}

// Outcome returns the metrics label for the reply
func (r Reply) Outcome() string {
	switch {
	case r.Dropped:
		return metrics.OutcomeDropped
	case r.NotImplemented:
		return metrics.OutcomeNotImplemented
	case r.Error != nil:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeSuccess
	}
}

// Invoke runs one call through h and classifies the result.
// Panics in the handler are recovered and answered as a platform exception.
func Invoke(ctx context.Context, h Handler, call *MethodCall, m *metrics.Metrics) (reply Reply) {
	start := time.Now()
	log := logger.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("method", call.Method).
				Bytes("stack", debug.Stack()).
				Msg("Method call handler panicked")
			reply = Reply{Error: NewPlatformError(CodePlatformException,
				fmt.Sprintf("Error while calling %s.", call.Method), fmt.Sprint(r))}
		}
		m.RecordCall(Route(call.Method), reply.Outcome(), time.Since(start))
	}()

	result, err := h.HandleMethodCall(ctx, call)
	if err == nil {
		return Reply{Result: result}
	}

	var perr *PlatformError
	switch {
	case errors.Is(err, ErrNoReply):
		return Reply{Dropped: true}
	case errors.Is(err, ErrNotImplemented):
		return Reply{NotImplemented: true}
	case errors.As(err, &perr):
		return Reply{Error: perr}
	default:
		log.Warn().Err(err).Str("method", call.Method).Msg("Method call failed")
		return Reply{Error: NewPlatformError(CodePlatformException,
			fmt.Sprintf("Error while calling %s.", call.Method), err.Error())}
	}
}

// Route returns the first segment of a '#'-delimited method name
func Route(method string) string {
	for i := 0; i < len(method); i++ {
		if method[i] == '#' {
			return method[:i]
		}
	}
	return method
}
