package rest

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerAuthInjectsToken(t *testing.T) {
	store := NewMemorySecrets()
	store.Set("api", "s3cret")

	req, err := http.NewRequest(http.MethodGet, "http://api.test/v1", nil)
	require.NoError(t, err)

	adapted, err := BearerAuth{Store: store, Key: "api"}.Adapt(req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", adapted.Header.Get("Authorization"))
}

func TestBearerAuthMissingCredential(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "http://api.test/v1", nil)
	require.NoError(t, err)

	_, err = BearerAuth{Store: NewMemorySecrets(), Key: "api"}.Adapt(req)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestBearerAuthDelegatesRetry(t *testing.T) {
	store := NewMemorySecrets()
	store.Set("api", "tok")

	req, err := http.NewRequest(http.MethodGet, "http://api.test/v1", nil)
	require.NoError(t, err)
	ferr := &Error{Kind: KindRequestFailed, StatusCode: http.StatusInternalServerError}

	bare := BearerAuth{Store: store, Key: "api"}
	assert.Equal(t, retryStop, bare.Retry(req, ferr, 0).kind)

	chained := BearerAuth{Store: store, Key: "api", Next: StatusRetryPolicy{MaxAttempts: 3}}
	assert.Equal(t, retryBackoff, chained.Retry(req, ferr, 0).kind)
}

func TestMemorySecretsRemove(t *testing.T) {
	store := NewMemorySecrets()
	store.Set("k", "v")
	store.Remove("k")

	_, ok := store.Get("k")
	assert.False(t, ok)
}
