package rest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/uuid"

	"github.com/osvaldn/go-httpcore/pkg/cache"
	"github.com/osvaldn/go-httpcore/pkg/log"
	"github.com/osvaldn/go-httpcore/pkg/transport"
)

// Requester exposes the http.Client.Do method, the minimum surface the
// executor needs from a transport. Trust decisions (certificate pinning,
// proxies) belong to the Requester implementation.
type Requester interface {
	Do(*http.Request) (*http.Response, error)
}

// Reachability is the connectivity signal consulted before contacting the
// transport. When it reports false the call fails with KindNoConnection
// without consuming an attempt; retrying without connectivity would be
// equivalent cost with equivalent failure.
type Reachability interface {
	IsReachable() bool
}

// ReachabilityFunc adapts a plain function to the Reachability interface.
type ReachabilityFunc func() bool

// IsReachable implements Reachability.
func (f ReachabilityFunc) IsReachable() bool { return f() }

// DefaultTimeout is the per-request timeout of the default Requester.
// Timeouts are owned by the transport, never by the executor.
var DefaultTimeout = 30 * time.Second

// Client executes request Specs against a Requester, applying the cache,
// connectivity, and interceptor gates. It is safe for concurrent use;
// distinct calls proceed fully in parallel.
type Client struct {
	requester   Requester
	interceptor Interceptor
	store       cache.Store
	reach       Reachability
	logger      log.Logger
	metrics     *Collector
}

// Option configures a Client.
type Option func(*Client)

// WithRequester replaces the default pooled HTTP client.
func WithRequester(r Requester) Option {
	return func(c *Client) { c.requester = r }
}

// WithInterceptor installs the request interceptor. Without one, every
// send or validation failure is terminal.
func WithInterceptor(i Interceptor) Option {
	return func(c *Client) { c.interceptor = i }
}

// WithCacheStore installs the response cache store. Without one, cache
// policies are inert.
func WithCacheStore(s cache.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithReachability installs the connectivity signal. Without one, the
// connectivity gate is skipped.
func WithReachability(r Reachability) Option {
	return func(c *Client) { c.reach = r }
}

// WithLogger installs the logger. The default discards everything.
func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics installs the prometheus collector.
func WithMetrics(m *Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// New builds a Client. The default Requester keeps TCP connections to
// destination servers and times out requests after DefaultTimeout.
func New(opts ...Option) *Client {
	c := &Client{
		logger: log.Discard,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.requester == nil {
		chain := transport.RoundTripChain{transport.UserAgentDecorator()}
		c.requester = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: chain.Apply(transport.NewPooled("httpcore-default")),
		}
	}

	return c
}

type callOptions struct {
	policy     cache.Policy
	retryCount int
}

// CallOption configures one logical call.
type CallOption func(*callOptions)

// WithCachePolicy sets the per-call cache directives.
func WithCachePolicy(p cache.Policy) CallOption {
	return func(o *callOptions) { o.policy = p }
}

// WithRetryCount advertises a retry budget to the interceptor via the
// request context. The engine itself never bounds attempts; interceptors
// that ignore the advertised count own their termination.
func WithRetryCount(n int) CallOption {
	return func(o *callOptions) { o.retryCount = n }
}

type retryCountKey struct{}

func withRetryCount(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, retryCountKey{}, n)
}

// RetryCountFromContext returns the retry budget advertised by the call
// site through WithRetryCount, or zero.
func RetryCountFromContext(ctx context.Context) int {
	n, _ := ctx.Value(retryCountKey{}).(int)
	return n
}

func retryCountFromContext(ctx context.Context) int {
	return RetryCountFromContext(ctx)
}

// Execute runs one logical call decoding the response body as JSON into T.
// Exactly one outcome, success or failure, is delivered per call.
func Execute[T any](ctx context.Context, c *Client, spec Spec, opts ...CallOption) Response[T] {
	return ExecuteWith(ctx, c, spec, JSON[T](), opts...)
}

// ExecuteWith runs one logical call with a caller-supplied Decoder.
func ExecuteWith[T any](ctx context.Context, c *Client, spec Spec, decode Decoder[T], opts ...CallOption) Response[T] {
	var options callOptions
	for _, opt := range opts {
		opt(&options)
	}

	raw := c.do(ctx, spec, options)
	if raw.err != nil {
		resp := failure[T](raw.err)
		resp.Request = raw.req
		return resp
	}

	v, err := decodeBody(raw.body, decode)
	if err != nil {
		return Response[T]{
			Request:    raw.req,
			StatusCode: raw.status,
			Header:     raw.header,
			Body:       raw.body,
			Err: &Error{
				Kind:       KindDecoding,
				Method:     raw.req.Method,
				URL:        raw.req.URL.String(),
				StatusCode: raw.status,
				Body:       raw.body,
				Cause:      err,
			},
		}
	}

	return Response[T]{
		Request:    raw.req,
		StatusCode: raw.status,
		Header:     raw.header,
		Body:       raw.body,
		Value:      v,
	}
}

// ExecuteAsync runs Execute on its own goroutine and returns a buffered
// channel that delivers exactly one Response and is then closed.
func ExecuteAsync[T any](ctx context.Context, c *Client, spec Spec, opts ...CallOption) <-chan Response[T] {
	ch := make(chan Response[T], 1)
	go func() {
		defer close(ch)
		ch <- Execute[T](ctx, c, spec, opts...)
	}()
	return ch
}

// rawResult is the transport-level outcome of one logical call, before
// decoding.
type rawResult struct {
	req       *http.Request
	status    int
	header    http.Header
	body      []byte
	fromCache bool
	err       *Error
}

// do runs the attempt pipeline: build, cache read, connectivity gate,
// adapt, send, validate, cache write, retry decision. Attempt n+1 never
// begins before attempt n's failure and decision are fully resolved.
func (c *Client) do(ctx context.Context, spec Spec, opts callOptions) rawResult {
	callID := ""
	if id, err := uuid.NewV4(); err == nil {
		callID = id.String()
	}
	logger := c.logger.With(
		log.String("call_id", callID),
		log.String("method", spec.method()),
		log.String("url", spec.URL),
	)

	ctx = withRetryCount(ctx, opts.retryCount)
	ctx, span := newSpan(ctx, spec.method(), spec.URL)

	for attempt := 0; ; attempt++ {
		req, key, berr := spec.newRequest(ctx)
		if berr != nil {
			berr.Attempt = attempt
			logger.Warn("request build failed", log.Err(berr))
			endSpan(span, attempt, 0, berr)
			return rawResult{err: berr}
		}

		if opts.policy.Use && c.store != nil {
			if b, ok := c.store.Get(key); ok {
				logger.Debug("cache hit", log.Int("attempt", attempt))
				c.metrics.cacheHit(req.Method)
				endSpan(span, attempt, http.StatusOK, nil)
				return rawResult{req: req, status: http.StatusOK, body: b, fromCache: true}
			}
			c.metrics.cacheMiss(req.Method)
		}

		if c.reach != nil && !c.reach.IsReachable() {
			err := &Error{Kind: KindNoConnection, Method: req.Method, URL: key, Attempt: attempt}
			logger.Warn("unreachable, request aborted")
			endSpan(span, attempt, 0, err)
			return rawResult{req: req, err: err}
		}

		if c.interceptor != nil {
			adapted, aerr := c.interceptor.Adapt(req)
			if aerr != nil {
				err := newError(KindInvalidRequest, req.Method, key, aerr)
				err.Attempt = attempt
				logger.Warn("interceptor refused request", log.Err(aerr))
				endSpan(span, attempt, 0, err)
				return rawResult{req: req, err: err}
			}
			if adapted != nil {
				req = adapted
			}
		}

		res, failure := c.send(req, attempt, opts, key)
		if failure == nil {
			logger.Debug("request succeeded",
				log.Int("attempt", attempt),
				log.Int("status", res.status),
			)
			endSpan(span, attempt, res.status, nil)
			res.req = req
			return res
		}

		c.metrics.requestError(req.Method, failure.Kind)

		if c.interceptor == nil {
			endSpan(span, attempt, failure.StatusCode, failure)
			return rawResult{req: req, status: failure.StatusCode, header: failure.Header, body: failure.Body, err: failure}
		}

		decision := c.interceptor.Retry(req, failure, attempt)

		var wait time.Duration
		switch decision.kind {
		case retryStop:
			endSpan(span, attempt, failure.StatusCode, failure)
			return rawResult{req: req, status: failure.StatusCode, header: failure.Header, body: failure.Body, err: failure}
		case retryNow:
			wait = 0
		case retryAfter:
			wait = decision.delay
		case retryBackoff:
			wait = Backoff{Base: decision.base, Multiplier: decision.multiplier}.Delay(attempt)
		}

		logger.Info("retry scheduled",
			log.Int("attempt", attempt+1),
			log.Duration("backoff", wait),
			log.Err(failure),
		)
		c.metrics.retry(req.Method)

		if wait > 0 {
			if werr := sleep(ctx, wait); werr != nil {
				err := &Error{Kind: ctxKind(werr), Method: req.Method, URL: key, Attempt: attempt, Cause: werr}
				endSpan(span, attempt, 0, err)
				return rawResult{req: req, err: err}
			}
		}
	}
}

// send performs the transport call and status validation for one attempt.
// On success the rawResult carries the response; on failure the *Error is
// the cause offered to the retry decision.
func (c *Client) send(req *http.Request, attempt int, opts callOptions, key string) (rawResult, *Error) {
	res, sendErr := c.requester.Do(req)
	if sendErr != nil {
		kind := KindUnknown
		if isTimeout(sendErr) {
			kind = KindTimeout
		}
		return rawResult{}, &Error{Kind: kind, Method: req.Method, URL: req.URL.String(), Attempt: attempt, Cause: sendErr}
	}

	body, readErr := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if readErr != nil {
		return rawResult{}, &Error{Kind: KindUnknown, Method: req.Method, URL: req.URL.String(), Attempt: attempt, Cause: readErr}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return rawResult{}, statusError(req, res.StatusCode, res.Header, body, attempt)
	}

	if opts.policy.Store && c.store != nil {
		c.store.Set(key, body, opts.policy.ExpireAt)
	}

	c.metrics.request(req.Method, res.StatusCode)
	return rawResult{status: res.StatusCode, header: res.Header, body: body}, nil
}

// sleep suspends until d elapses or ctx is done. A cancelled await never
// resumes the retry chain.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isTimeout(err error) bool {
	return os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded)
}

func ctxKind(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}
