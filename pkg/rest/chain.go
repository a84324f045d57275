package rest

import (
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding"

	"github.com/osvaldn/go-httpcore/pkg/cache"
)

// Request is a deferred call: it captures a Spec plus per-call options and
// executes nothing until one of its terminal projections is invoked. Each
// projection triggers exactly one executor invocation.
type Request struct {
	c        *Client
	spec     Spec
	callOpts []CallOption
}

// RequestOption configures a deferred Request.
type RequestOption func(*Request)

// Via sets the request method.
func Via(m Method) RequestOption {
	return func(r *Request) { r.spec.Method = m }
}

// QueryParam appends one ordered query parameter.
func QueryParam(name string, value any) RequestOption {
	return func(r *Request) { r.spec.Query = append(r.spec.Query, Param{Name: name, Value: value}) }
}

// BodyParam adds one JSON body parameter.
func BodyParam(name string, value any) RequestOption {
	return func(r *Request) {
		if r.spec.Body == nil {
			r.spec.Body = make(map[string]any)
		}
		r.spec.Body[name] = value
	}
}

// HeaderValue sets one request header, replacing a case-insensitive match.
func HeaderValue(name, value string) RequestOption {
	return func(r *Request) { r.spec.Header.Set(name, value) }
}

// PathParam fills one {name} placeholder in the URL.
func PathParam(name, value string) RequestOption {
	return func(r *Request) {
		if r.spec.PathParams == nil {
			r.spec.PathParams = make(map[string]string)
		}
		r.spec.PathParams[name] = value
	}
}

// Retries advertises a retry budget for the call.
func Retries(n int) RequestOption {
	return func(r *Request) { r.callOpts = append(r.callOpts, WithRetryCount(n)) }
}

// Cached sets the cache policy for the call.
func Cached(p cache.Policy) RequestOption {
	return func(r *Request) { r.callOpts = append(r.callOpts, WithCachePolicy(p)) }
}

// NewRequest builds a deferred Request against url.
func (c *Client) NewRequest(url string, opts ...RequestOption) *Request {
	return c.NewSpecRequest(Spec{URL: url}, opts...)
}

// NewSpecRequest builds a deferred Request from a pre-built Spec.
func (c *Client) NewSpecRequest(spec Spec, opts ...RequestOption) *Request {
	r := &Request{c: c, spec: spec}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DecodeJSON executes the request and decodes the body as JSON into T.
func DecodeJSON[T any](ctx context.Context, r *Request) Response[T] {
	return Execute[T](ctx, r.c, r.spec, r.callOpts...)
}

// AsVoid executes the request and discards the body, mapping success to
// the unit type.
func (r *Request) AsVoid(ctx context.Context) Response[Void] {
	return Execute[Void](ctx, r.c, r.spec, r.callOpts...)
}

// AsBytes executes the request and returns the raw body, bypassing generic
// JSON decoding. An empty body is a KindNoData failure.
func (r *Request) AsBytes(ctx context.Context) Response[[]byte] {
	resp := Execute[[]byte](ctx, r.c, r.spec, r.callOpts...)
	if resp.IsSuccess() && len(resp.Body) == 0 {
		resp.Value = nil
		resp.Err = &Error{Kind: KindNoData, Method: r.spec.method(), URL: r.spec.URL, StatusCode: resp.StatusCode}
	}
	return resp
}

// AsString executes the request and decodes the raw body as text under the
// given encoding. A nil encoding means UTF-8. An empty body is a
// KindNoData failure; a body that is not valid under the encoding is a
// KindDecoding failure.
func (r *Request) AsString(ctx context.Context, enc encoding.Encoding) Response[string] {
	raw := r.AsBytes(ctx)
	out := Response[string]{
		Request:    raw.Request,
		StatusCode: raw.StatusCode,
		Header:     raw.Header,
		Body:       raw.Body,
		Err:        raw.Err,
	}
	if raw.Err != nil {
		return out
	}

	if enc == nil {
		if !utf8.Valid(raw.Body) {
			out.Err = &Error{Kind: KindDecoding, Method: r.spec.method(), URL: r.spec.URL, StatusCode: raw.StatusCode, Body: raw.Body}
			return out
		}
		out.Value = string(raw.Body)
		return out
	}

	decoded, err := enc.NewDecoder().Bytes(raw.Body)
	if err != nil {
		out.Err = &Error{Kind: KindDecoding, Method: r.spec.method(), URL: r.spec.URL, StatusCode: raw.StatusCode, Body: raw.Body, Cause: err}
		return out
	}
	out.Value = string(decoded)
	return out
}
