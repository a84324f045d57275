package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldn/go-httpcore/pkg/cache"
)

type item struct {
	ID int `json:"id"`
}

// countingHandler wraps a handler and counts how many requests reached it.
type countingHandler struct {
	calls   atomic.Int32
	handler http.HandlerFunc
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.calls.Add(1)
	h.handler(w, r)
}

// scripted is a test Interceptor with canned retry decisions consumed in
// order, stopping once the script runs out.
type scripted struct {
	adapt     func(*http.Request) (*http.Request, error)
	decisions []RetryDecision
	retries   atomic.Int32
}

func (s *scripted) Adapt(req *http.Request) (*http.Request, error) {
	if s.adapt != nil {
		return s.adapt(req)
	}
	return req, nil
}

func (s *scripted) Retry(req *http.Request, err error, attempt int) RetryDecision {
	i := int(s.retries.Add(1)) - 1
	if i >= len(s.decisions) {
		return Stop()
	}
	return s.decisions[i]
}

func TestExecuteSuccess(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":7}`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New()
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL + "/ok"})

	require.NoError(t, res.Err)
	assert.True(t, res.IsSuccess())
	assert.Equal(t, 7, res.Value.ID)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"id":7}`, string(res.Body))
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestExecuteOffline(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New(WithReachability(ReachabilityFunc(func() bool { return false })))
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindNoConnection))
	assert.EqualValues(t, 0, h.calls.Load(), "offline calls must never reach the transport")
}

func TestExecuteRetryThenSuccess(t *testing.T) {
	h := &countingHandler{}
	h.handler = func(w http.ResponseWriter, r *http.Request) {
		if h.calls.Load() == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"id":1}`))
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New(WithInterceptor(&scripted{decisions: []RetryDecision{RetryNow()}}))
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Value.ID)
	assert.EqualValues(t, 2, h.calls.Load())
}

func TestExecuteStopAfterFirstFailure(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New(WithInterceptor(&scripted{}))
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL}, WithRetryCount(5))

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindRequestFailed))
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Equal(t, "upstream down", string(res.Body))
	assert.EqualValues(t, 1, h.calls.Load(), "a Stop decision ends the call after one send")
}

func TestExecuteWithoutInterceptorIsTerminal(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New()
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindRequestFailed))
	assert.EqualValues(t, 1, h.calls.Load())
}

func TestExecuteAdaptFailureIsTerminal(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New(WithInterceptor(BearerAuth{Store: NewMemorySecrets(), Key: "api"}))
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindInvalidRequest))
	assert.ErrorIs(t, res.Err, ErrMissingCredential)
	assert.EqualValues(t, 0, h.calls.Load())
}

func TestExecuteDecodeFailureNotRetried(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := New(WithInterceptor(&scripted{decisions: []RetryDecision{RetryNow(), RetryNow()}}))
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindDecoding))
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "not json", string(res.Body))
	assert.EqualValues(t, 1, h.calls.Load(), "decode failures must never re-enter the pipeline")
}

func TestExecuteCacheHitSkipsTransport(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":42}`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	store := cache.NewMemory(1)
	defer store.Close()

	c := New(WithCacheStore(store))
	policy := cache.ReadWrite(time.Now().Add(time.Minute))

	for i := 0; i < 3; i++ {
		res := Execute[item](context.Background(), c, Spec{URL: srv.URL}, WithCachePolicy(policy))
		require.NoError(t, res.Err)
		assert.Equal(t, 42, res.Value.ID)
	}

	assert.EqualValues(t, 1, h.calls.Load(), "repeat reads must be served from the cache")
}

func TestExecuteCacheDisabledByDefault(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1}`))
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	store := cache.NewMemory(1)
	defer store.Close()

	c := New(WithCacheStore(store))
	for i := 0; i < 2; i++ {
		res := Execute[item](context.Background(), c, Spec{URL: srv.URL})
		require.NoError(t, res.Err)
	}

	assert.EqualValues(t, 2, h.calls.Load())
}

func TestExecuteRetryAfterHonorsDelay(t *testing.T) {
	h := &countingHandler{}
	h.handler = func(w http.ResponseWriter, r *http.Request) {
		if h.calls.Load() == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"id":2}`))
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	delay := 50 * time.Millisecond
	c := New(WithInterceptor(&scripted{decisions: []RetryDecision{RetryAfter(delay)}}))

	start := time.Now()
	res := Execute[item](context.Background(), c, Spec{URL: srv.URL})

	require.NoError(t, res.Err)
	assert.GreaterOrEqual(t, time.Since(start), delay)
	assert.EqualValues(t, 2, h.calls.Load())
}

func TestExecuteRetryWaitCancelled(t *testing.T) {
	h := &countingHandler{handler: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}}
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	c := New(WithInterceptor(&scripted{decisions: []RetryDecision{RetryAfter(time.Minute)}}))
	res := Execute[item](ctx, c, Spec{URL: srv.URL})

	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindUnknown))
	assert.EqualValues(t, 1, h.calls.Load(), "a cancelled wait must not resume the retry chain")
}

func TestExecuteBuildErrorTerminal(t *testing.T) {
	c := New(WithRequester(requesterFunc(func(*http.Request) (*http.Response, error) {
		t.Fatal("transport must not be reached")
		return nil, nil
	})))

	res := Execute[item](context.Background(), c, Spec{})
	require.Error(t, res.Err)
	assert.True(t, IsKind(res.Err, KindInvalidURL))
}

func TestExecuteAsyncDeliversOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":9}`))
	}))
	defer srv.Close()

	c := New()
	ch := ExecuteAsync[item](context.Background(), c, Spec{URL: srv.URL})

	res, ok := <-ch
	require.True(t, ok)
	require.NoError(t, res.Err)
	assert.Equal(t, 9, res.Value.ID)

	_, ok = <-ch
	assert.False(t, ok, "the channel closes after the single delivery")
}

func TestExecuteVoidIgnoresBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`definitely not json`))
	}))
	defer srv.Close()

	c := New()
	res := Execute[Void](context.Background(), c, Spec{URL: srv.URL})
	require.NoError(t, res.Err)
}

type requesterFunc func(*http.Request) (*http.Response, error)

func (f requesterFunc) Do(req *http.Request) (*http.Response, error) { return f(req) }
