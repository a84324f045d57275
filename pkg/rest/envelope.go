package rest

import "net/http"

// Response is the immutable result carrier delivered once per logical call.
// Either Err is nil and Value holds the decoded result, or Err is non-nil
// and Value is the zero value. Raw response metadata is populated whenever
// the transport produced a response, success or not.
type Response[T any] struct {
	// Request is the final wire request of the last attempt, when one was
	// built.
	Request *http.Request

	// StatusCode and Header are the raw response metadata. StatusCode is
	// zero when no response was received (build failures, connectivity
	// gate, transport errors).
	StatusCode int
	Header     http.Header

	// Body is the raw response body.
	Body []byte

	// Value is the decoded result on success.
	Value T

	// Err is the failure, always a *Error.
	Err error
}

// IsSuccess reports whether the call produced a decoded result.
func (r Response[T]) IsSuccess() bool { return r.Err == nil }

// Void is the marker type for calls whose response body is irrelevant.
// Decoding into Void always succeeds without invoking the JSON decoder.
type Void struct{}

func failure[T any](err *Error) Response[T] {
	return Response[T]{
		StatusCode: err.StatusCode,
		Header:     err.Header,
		Body:       err.Body,
		Err:        err,
	}
}
