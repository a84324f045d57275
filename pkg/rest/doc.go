// Package rest turns declarative request Specs into executed HTTP calls
// with caching, retry policy, interception, and typed decoding.
//
// The executor pipeline per attempt is: build the wire request from the
// Spec, consult the cache (a hit short-circuits everything), check
// connectivity, let the interceptor adapt the request, send, validate the
// status, store to cache on success, decode. Send and validation failures
// are offered to the interceptor for a retry decision; every other failure
// is terminal.
//
// Typical use:
//
//	client := rest.New(
//		rest.WithCacheStore(cache.NewMemory(64)),
//		rest.WithInterceptor(rest.StatusRetryPolicy{MaxAttempts: 3}),
//	)
//
//	resp := rest.Execute[User](ctx, client, rest.Spec{
//		URL:        "https://api.example.com/users/{id}",
//		PathParams: map[string]string{"id": "7"},
//	})
//	if !resp.IsSuccess() {
//		return resp.Err
//	}
//
// Deferred requests compose the same executor with typed projections:
//
//	body := client.NewRequest(url, rest.Via(rest.MethodGet)).AsBytes(ctx)
package rest
