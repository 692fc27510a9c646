// Built-in extension point names and their payload types.
//
// Handler signatures are untyped (any), but every built-in point constructs
// exactly one payload type, so handlers can assert without a type switch.
package hooks

import (
	"net/http"
	"time"
)

// Extension points dispatched by the fetch client and socket manager.
const (
	// PointBeforeRequest fires before each network attempt.
	// Payload: *RequestPayload. Handlers may mutate the outgoing request.
	PointBeforeRequest = "beforeApiRequest"

	// PointAfterResponse fires after a response is received.
	// Payload: *ResponsePayload.
	PointAfterResponse = "afterApiResponse"

	// PointRetry fires before each retry attempt is scheduled.
	// Payload: *RetryPayload.
	PointRetry = "onRetryAttempt"

	// PointError receives handler failures from every other point.
	// Payload: *ErrorPayload.
	PointError = "onError"

	// PointSocketConnected fires when the socket manager (re)connects.
	// Payload: *SocketPayload.
	PointSocketConnected = "socketConnected"

	// PointSocketDisconnected fires when the socket connection drops.
	// Payload: *SocketPayload.
	PointSocketDisconnected = "socketDisconnected"

	// PointSocketMessage fires for each inbound socket message.
	// Payload: *SocketMessagePayload.
	PointSocketMessage = "socketMessage"
)

// RequestPayload carries an outgoing request. Handlers registered on
// PointBeforeRequest may mutate Request (headers, query) before it is sent.
type RequestPayload struct {
	RequestID string
	Key       string
	Attempt   int
	Request   *http.Request
}

// ResponsePayload carries the outcome of a network attempt.
type ResponsePayload struct {
	RequestID string
	Key       string
	Status    int
	Body      []byte
	Latency   time.Duration
}

// RetryPayload describes a scheduled retry.
type RetryPayload struct {
	RequestID string
	Key       string
	Attempt   int
	Delay     time.Duration
	Err       error
}

// ErrorPayload wraps a handler failure forwarded to PointError.
type ErrorPayload struct {
	FailingPoint string
	Payload      any
	Err          error
}

// SocketPayload describes a socket lifecycle transition.
type SocketPayload struct {
	SessionID string
	URL       string
	Attempt   int
	Err       error
}

// SocketMessagePayload carries one inbound socket message.
type SocketMessagePayload struct {
	SessionID string
	Data      []byte
}
