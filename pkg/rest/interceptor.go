package rest

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Interceptor is the caller-supplied policy object consulted by the
// executor. Adapt may rewrite the outgoing request before every send; a
// non-nil error means the request cannot be sent and is returned to the
// caller without a transport call. Retry is consulted only after a
// transport send or status validation failure, never after build, cache,
// connectivity, or decode failures.
//
// The engine imposes no maximum attempt count: an interceptor that never
// returns Stop retries forever. Bounding attempts is the interceptor's
// responsibility.
type Interceptor interface {
	Adapt(req *http.Request) (*http.Request, error)
	Retry(req *http.Request, err error, attempt int) RetryDecision
}

type retryKind int

const (
	retryStop retryKind = iota
	retryNow
	retryAfter
	retryBackoff
)

// RetryDecision is produced fresh per failed attempt and never persisted.
type RetryDecision struct {
	kind       retryKind
	delay      time.Duration
	base       time.Duration
	multiplier float64
}

// Stop returns the failure to the caller.
func Stop() RetryDecision { return RetryDecision{kind: retryStop} }

// RetryNow re-enters the pipeline immediately with the next attempt index.
func RetryNow() RetryDecision { return RetryDecision{kind: retryNow} }

// RetryAfter suspends the caller for d before re-entering the pipeline.
func RetryAfter(d time.Duration) RetryDecision {
	return RetryDecision{kind: retryAfter, delay: d}
}

// RetryWithBackoff suspends the caller for base * multiplier^attempt before
// re-entering the pipeline.
func RetryWithBackoff(base time.Duration, multiplier float64) RetryDecision {
	return RetryDecision{kind: retryBackoff, base: base, multiplier: multiplier}
}

// Backoff computes exponential retry delays. It has no internal state and
// is safe to share across concurrent calls.
type Backoff struct {
	Base       time.Duration
	Multiplier float64
}

// Delay returns Base * Multiplier^attempt. Attempt index 0 yields Base.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Guard against overflow for hostile attempt counts.
	if attempt > 62 {
		attempt = 62
	}

	d := float64(b.Base) * math.Pow(b.Multiplier, float64(attempt))
	if d < 0 || d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// StatusRetryPolicy is the stock Interceptor: it sends requests unmodified
// and retries transport errors, HTTP 429 and 5xx responses with exponential
// backoff, honoring a Retry-After header (seconds form) when the server
// provides one.
//
// MaxAttempts bounds the total number of sends. When zero, the per-call
// retry count (WithRetryCount) bounds attempts instead; if neither is set a
// single attempt is made.
type StatusRetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
}

var _ Interceptor = StatusRetryPolicy{}

// Adapt returns the request unchanged.
func (p StatusRetryPolicy) Adapt(req *http.Request) (*http.Request, error) {
	return req, nil
}

// Retry implements the Interceptor retry decision.
func (p StatusRetryPolicy) Retry(req *http.Request, err error, attempt int) RetryDecision {
	budget := p.MaxAttempts
	if budget == 0 {
		budget = retryCountFromContext(req.Context()) + 1
	}
	if attempt+1 >= budget {
		return Stop()
	}

	base := p.Backoff.Base
	if base == 0 {
		base = 100 * time.Millisecond
	}
	multiplier := p.Backoff.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	var re *Error
	if errors.As(err, &re) && re.Kind == KindRequestFailed {
		if re.StatusCode != http.StatusTooManyRequests && re.StatusCode < 500 {
			return Stop()
		}
		if d := parseRetryAfter(re.Header.Get("Retry-After")); d > 0 {
			return RetryAfter(d)
		}
		return RetryWithBackoff(base, multiplier)
	}

	if IsKind(err, KindTimeout) || IsKind(err, KindUnknown) {
		return RetryWithBackoff(base, multiplier)
	}

	return Stop()
}

// parseRetryAfter understands the delay-seconds form of the Retry-After
// header, capped at one hour. Unparseable values yield zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds <= 0 {
		return 0
	}
	d := time.Duration(seconds) * time.Second
	if d > time.Hour {
		d = time.Hour
	}
	return d
}
