package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Response body keys. /login and /sensor-data report under "message",
// /upload_data reports failures under "error".
const (
	keyMessage = "message"
	keyError   = "error"
)

// msgInternal is the body text for store failures.
const msgInternal = "Internal server error"

// Kind classifies a handler failure.
type Kind int

const (
	// KindValidation is malformed or incomplete input (400).
	KindValidation Kind = iota + 1

	// KindUnauthorized is a credential mismatch (401).
	KindUnauthorized

	// KindNotFound is a lookup with no result (404).
	KindNotFound

	// KindTooLarge is a request body over the size limit (413).
	KindTooLarge

	// KindStore is a failure reaching or querying the store (500).
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindTooLarge:
		return "too_large"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is a handler failure with the HTTP status and JSON body it maps to.
// The body is {Key: Message}. Err holds the cause for logging and is never
// written to the client.
type Error struct {
	Kind    Kind
	Status  int
	Key     string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func badRequest(key, message string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Key: key, Message: message}
}

func unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Key: keyMessage, Message: message}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Status: http.StatusNotFound, Key: keyMessage, Message: message}
}

func tooLarge(key string) *Error {
	return &Error{Kind: KindTooLarge, Status: http.StatusRequestEntityTooLarge, Key: key, Message: "Request body too large"}
}

func storeFailure(key string, err error) *Error {
	return &Error{Kind: KindStore, Status: http.StatusInternalServerError, Key: key, Message: msgInternal, Err: err}
}

// response is a successful handler result.
type response struct {
	status int
	body   any
}

// handlerFunc is a handler that returns its result instead of writing it.
type handlerFunc func(r *http.Request) (*response, error)

// handle adapts a handlerFunc to net/http. Errors that are not *Error are
// treated as store failures.
func (s *Server) handle(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, resp.status, resp.body)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = storeFailure(failureKey(r.URL.Path), err)
	}

	if apiErr.Kind == KindStore {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", apiErr.Err,
			"request_id", requestIDFrom(r.Context()),
		)
	}

	writeJSON(w, apiErr.Status, map[string]string{apiErr.Key: apiErr.Message})
}

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}
