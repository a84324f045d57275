package stream

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/osvaldn/go-httpcore/pkg/rest"
)

const _readChunkSize = 4 * 1024

// Runner drives a streaming request over a transport, feeding body bytes
// into a Decoder as they arrive.
type Runner struct {
	requester rest.Requester
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRequester replaces the transport used for streaming calls.
func WithRequester(r rest.Requester) RunnerOption {
	return func(ru *Runner) { ru.requester = r }
}

// NewRunner builds a Runner. By default it streams over a plain
// http.Client with no overall timeout, since a stream stays open for as
// long as the server keeps writing; cancel through the context instead.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		requester: &http.Client{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes spec and pumps the response body through dec in chunks.
// It blocks until the body is drained, the context is cancelled, or the
// transport fails, then delivers the decoder's terminal event. A non-2xx
// status finishes the stream with a request failure carrying the full
// body; no chunks are emitted for it.
func Run[T any](ctx context.Context, r *Runner, spec rest.Spec, dec *Decoder[T]) error {
	req, err := spec.HTTPRequest(ctx)
	if err != nil {
		dec.Finish(err)
		return err
	}

	res, err := r.requester.Do(req)
	if err != nil {
		ferr := &rest.Error{Kind: kindForTransport(ctx, err), Method: req.Method, URL: req.URL.String(), Cause: err}
		dec.Finish(ferr)
		return ferr
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(res.Body)
		ferr := &rest.Error{
			Kind:       rest.KindRequestFailed,
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: res.StatusCode,
			Header:     res.Header,
			Body:       body,
		}
		dec.Finish(ferr)
		return ferr
	}

	buf := make([]byte, _readChunkSize)
	for {
		n, rerr := res.Body.Read(buf)
		if n > 0 {
			dec.Append(buf[:n])
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				dec.Finish(nil)
				return nil
			}
			ferr := &rest.Error{Kind: kindForTransport(ctx, rerr), Method: req.Method, URL: req.URL.String(), Cause: rerr}
			dec.Finish(ferr)
			return ferr
		}
	}
}

func kindForTransport(ctx context.Context, err error) rest.Kind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return rest.KindTimeout
	}
	return rest.KindUnknown
}
