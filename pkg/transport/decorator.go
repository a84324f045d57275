package transport

import "net/http"

// RoundTripDecorator is any function wrapping one RoundTripper in another.
type RoundTripDecorator func(http.RoundTripper) http.RoundTripper

// RoundTripChain is an ordered collection of RoundTripDecorator.
type RoundTripChain []RoundTripDecorator

// Apply wraps base with the chain; the first decorator becomes the
// outermost layer.
func (c RoundTripChain) Apply(base http.RoundTripper) http.RoundTripper {
	for x := len(c) - 1; x >= 0; x-- {
		base = c[x](base)
	}
	return base
}

// RequestHook runs before each request. It may only safely mutate the
// request context and headers.
type RequestHook func(*http.Request) error

// ResponseHook runs after each completed transaction, successful or not.
type ResponseHook func(*http.Request, *http.Response, error)

// HookDecorator returns a decorator running the given hooks around every
// round trip. A request hook error aborts the request.
func HookDecorator(req []RequestHook, res []ResponseHook) RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return &hookRoundTripper{transport: base, requestHooks: req, responseHooks: res}
	}
}

type hookRoundTripper struct {
	transport     http.RoundTripper
	requestHooks  []RequestHook
	responseHooks []ResponseHook
}

func (t *hookRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for _, hook := range t.requestHooks {
		if err := hook(req); err != nil {
			return nil, err
		}
	}

	res, err := t.transport.RoundTrip(req)

	for _, hook := range t.responseHooks {
		hook(req, res, err)
	}

	return res, err
}
