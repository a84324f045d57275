package rest

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a request failure. It is the stable public vocabulary of
// the engine; callers branch on kinds, never on internal error values.
type Kind string

const (
	// KindInvalidURL marks a request whose URL could not be parsed or
	// whose path template could not be expanded.
	KindInvalidURL Kind = "invalid_url"

	// KindInvalidRequest marks a request whose body could not be encoded
	// or that an interceptor refused to send.
	KindInvalidRequest Kind = "invalid_request"

	// KindRequestFailed marks a response with a non-2xx status code.
	KindRequestFailed Kind = "request_failed"

	// KindDecoding marks a response body that could not be decoded into
	// the requested type.
	KindDecoding Kind = "decoding"

	// KindNoData marks a response with an empty body where one was
	// required.
	KindNoData Kind = "no_data"

	// KindNoConnection marks a request aborted because the reachability
	// signal reported no connectivity. It is terminal and never retried.
	KindNoConnection Kind = "no_connection"

	// KindDownloadFailed marks a download task that reached a terminal
	// failure.
	KindDownloadFailed Kind = "download_failed"

	// KindUploadFailed marks an upload task that reached a terminal
	// failure.
	KindUploadFailed Kind = "upload_failed"

	// KindTimeout marks a request that exceeded the transport's deadline.
	KindTimeout Kind = "timeout"

	// KindUnknown marks any other transport-level failure.
	KindUnknown Kind = "unknown"
)

// Error is the structured error surfaced by every public entry point.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Method and URL identify the logical request, when one was built.
	Method string
	URL    string

	// StatusCode and Body carry the server response for
	// KindRequestFailed. Header carries the response headers so retry
	// policies can honor Retry-After.
	StatusCode int
	Header     http.Header
	Body       []byte

	// Attempt is the zero-based attempt index at which the failure
	// occurred.
	Attempt int

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := string(e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.StatusCode)
	}
	if e.Method != "" || e.URL != "" {
		msg = fmt.Sprintf("%s: %s %s", msg, e.Method, e.URL)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches errors of the same Kind, so callers can write
// errors.Is(err, &rest.Error{Kind: rest.KindNoConnection}).
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*Error)
	return ok && e.Kind == t.Kind
}

// IsKind reports whether err is (or wraps) a rest.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	return errors.As(err, &re) && re.Kind == kind
}

func newError(kind Kind, method, url string, cause error) *Error {
	return &Error{Kind: kind, Method: method, URL: url, Cause: cause}
}

func statusError(req *http.Request, status int, header http.Header, body []byte, attempt int) *Error {
	return &Error{
		Kind:       KindRequestFailed,
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: status,
		Header:     header,
		Body:       body,
		Attempt:    attempt,
	}
}
