package rest

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
)

// Method is an HTTP request method.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodHead    Method = http.MethodHead
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodPatch   Method = http.MethodPatch
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
	MethodTrace   Method = http.MethodTrace
	MethodConnect Method = http.MethodConnect
)

// queryInURL reports whether query parameters of a Spec with this method
// are appended to the URL. Methods that customarily carry a body keep the
// URL untouched.
func (m Method) queryInURL() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch:
		return false
	default:
		return true
	}
}

// Param is one ordered query parameter. Values are rendered with the same
// rules as path parameters (strings, integers, bool, time.Time, Stringer).
type Param struct {
	Name  string
	Value any
}

// Spec is the immutable description of one logical request. It is consumed
// to build exactly one wire request per attempt; the Spec itself is never
// mutated by the engine.
type Spec struct {
	// URL is the target. It may contain {name} placeholders expanded from
	// PathParams.
	URL string `validate:"required"`

	// Method defaults to GET when empty.
	Method Method `validate:"omitempty,oneof=GET HEAD POST PUT PATCH DELETE OPTIONS TRACE CONNECT"`

	// PathParams fill {name} placeholders in URL.
	PathParams map[string]string

	// Query parameters are appended to the URL in order for query-bearing
	// methods.
	Query []Param

	// Body parameters are JSON-encoded into the request body for any
	// method, setting a JSON content type unless Header overrides it.
	Body map[string]any

	// Header carries the request headers.
	Header HeaderSet
}

var _validate = validator.New()

// method returns the effective method.
func (s Spec) method() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return string(s.Method)
}

// HTTPRequest builds the wire request this Spec describes. It is the same
// construction the executor performs per attempt, exposed for callers that
// drive a transport directly (streaming, transfers).
func (s Spec) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, _, err := s.newRequest(ctx)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// newRequest builds the wire request for one attempt and returns it along
// with the final URL used as the cache key. All failures here are terminal:
// no attempt is consumed and no retry occurs.
func (s Spec) newRequest(ctx context.Context) (*http.Request, string, *Error) {
	if err := _validate.Struct(s); err != nil {
		kind := KindInvalidRequest
		if errs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range errs {
				if fe.Field() == "URL" {
					kind = KindInvalidURL
				}
			}
		}
		return nil, "", newError(kind, s.method(), s.URL, err)
	}

	u, err := url.Parse(s.URL)
	if err != nil {
		return nil, "", newError(KindInvalidURL, s.method(), s.URL, err)
	}

	u, err = expandTemplate(u, s.PathParams)
	if err != nil {
		return nil, "", newError(KindInvalidURL, s.method(), s.URL, err)
	}

	if len(s.Query) > 0 && s.Method.queryInURL() {
		var sb strings.Builder
		sb.WriteString(u.RawQuery)
		for _, p := range s.Query {
			if sb.Len() > 0 {
				sb.WriteByte('&')
			}
			sb.WriteString(url.QueryEscape(p.Name))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(ParamString(p.Value)))
		}
		u.RawQuery = sb.String()
	}

	var body *bytes.Reader
	if s.Body != nil {
		encoded, err := sonic.Marshal(s.Body)
		if err != nil {
			return nil, "", newError(KindInvalidRequest, s.method(), u.String(), err)
		}
		body = bytes.NewReader(encoded)
	}

	var req *http.Request
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, s.method(), u.String(), body)
	} else {
		req, err = http.NewRequestWithContext(ctx, s.method(), u.String(), nil)
	}
	if err != nil {
		return nil, "", newError(KindInvalidURL, s.method(), u.String(), err)
	}

	s.Header.apply(req.Header)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	return req, u.String(), nil
}

// ParamString renders a query, path or form parameter value.
func ParamString(value any) string {
	switch t := value.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}
