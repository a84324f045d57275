package transport

import (
	"net/http"

	"github.com/osvaldn/go-httpcore/pkg/internal"
)

// UserAgentDecorator returns a decorator that sets a default User-Agent on
// requests that don't carry one.
func UserAgentDecorator() RoundTripDecorator {
	return func(base http.RoundTripper) http.RoundTripper {
		return &userAgentRoundTripper{transport: base}
	}
}

type userAgentRoundTripper struct {
	transport http.RoundTripper
}

func (t *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.UserAgent() == "" {
		req.Header.Set("User-Agent", "httpcore-go/"+internal.Version)
	}

	return t.transport.RoundTrip(req)
}
