package rest

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: 100 * time.Millisecond, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, b.Delay(0))
	assert.Equal(t, 200*time.Millisecond, b.Delay(1))
	assert.Equal(t, 400*time.Millisecond, b.Delay(2))
	assert.Equal(t, 100*time.Millisecond, b.Delay(-1))
}

func TestBackoffDelayMonotonic(t *testing.T) {
	b := Backoff{Base: 50 * time.Millisecond, Multiplier: 1.5}

	prev := time.Duration(0)
	for attempt := 0; attempt < 20; attempt++ {
		d := b.Delay(attempt)
		assert.Greater(t, d, prev)
		prev = d
	}
}

func TestBackoffDelayOverflowClamped(t *testing.T) {
	b := Backoff{Base: time.Hour, Multiplier: 10}

	d := b.Delay(1000)
	assert.Equal(t, time.Duration(1<<63-1), d)
	assert.Positive(t, d)
}

func statusFailure(t *testing.T, status int, header http.Header) (*http.Request, *Error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	require.NoError(t, err)
	return req, &Error{Kind: KindRequestFailed, StatusCode: status, Header: header}
}

func TestStatusRetryPolicyRetries5xx(t *testing.T) {
	p := StatusRetryPolicy{MaxAttempts: 3}
	req, ferr := statusFailure(t, http.StatusInternalServerError, nil)

	d := p.Retry(req, ferr, 0)
	assert.Equal(t, retryBackoff, d.kind)

	d = p.Retry(req, ferr, 2)
	assert.Equal(t, retryStop, d.kind, "the budget bounds total sends")
}

func TestStatusRetryPolicyStopsOn4xx(t *testing.T) {
	p := StatusRetryPolicy{MaxAttempts: 5}
	req, ferr := statusFailure(t, http.StatusNotFound, nil)

	assert.Equal(t, retryStop, p.Retry(req, ferr, 0).kind)
}

func TestStatusRetryPolicyHonorsRetryAfter(t *testing.T) {
	p := StatusRetryPolicy{MaxAttempts: 5}
	header := http.Header{"Retry-After": []string{"2"}}
	req, ferr := statusFailure(t, http.StatusTooManyRequests, header)

	d := p.Retry(req, ferr, 0)
	assert.Equal(t, retryAfter, d.kind)
	assert.Equal(t, 2*time.Second, d.delay)
}

func TestStatusRetryPolicyRetriesTransportErrors(t *testing.T) {
	p := StatusRetryPolicy{MaxAttempts: 2}
	req, _ := statusFailure(t, 0, nil)

	d := p.Retry(req, &Error{Kind: KindTimeout, Cause: errors.New("deadline")}, 0)
	assert.Equal(t, retryBackoff, d.kind)

	d = p.Retry(req, &Error{Kind: KindUnknown, Cause: errors.New("conn reset")}, 0)
	assert.Equal(t, retryBackoff, d.kind)
}

func TestStatusRetryPolicyBudgetFromContext(t *testing.T) {
	p := StatusRetryPolicy{}
	req, ferr := statusFailure(t, http.StatusInternalServerError, nil)

	// Without an advertised count a single attempt is made.
	assert.Equal(t, retryStop, p.Retry(req, ferr, 0).kind)

	req = req.WithContext(withRetryCount(context.Background(), 2))
	assert.Equal(t, retryBackoff, p.Retry(req, ferr, 0).kind)
	assert.Equal(t, retryBackoff, p.Retry(req, ferr, 1).kind)
	assert.Equal(t, retryStop, p.Retry(req, ferr, 2).kind)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
	assert.Equal(t, 30*time.Second, parseRetryAfter(" 30 "))
	assert.Equal(t, time.Hour, parseRetryAfter("86400"), "delays are capped at one hour")
}
