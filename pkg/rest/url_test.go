package rest

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandTemplateQueryPlaceholders(t *testing.T) {
	u, err := url.Parse("http://api.test/search?q={term}&page={page}")
	require.NoError(t, err)

	out, err := expandTemplate(u, map[string]string{"term": "a b&c", "page": "2"})
	require.NoError(t, err)
	assert.Equal(t, "q=a+b%26c&page=2", out.RawQuery)
}

func TestExpandTemplateEmptyQueryValueAllowed(t *testing.T) {
	u, err := url.Parse("http://api.test/search?q={term}")
	require.NoError(t, err)

	out, err := expandTemplate(u, map[string]string{"term": ""})
	require.NoError(t, err)
	assert.Equal(t, "q=", out.RawQuery)
}

func TestExpandTemplateNoPlaceholders(t *testing.T) {
	u, err := url.Parse("http://api.test/plain?x=1")
	require.NoError(t, err)

	out, err := expandTemplate(u, nil)
	require.NoError(t, err)
	assert.Same(t, u, out)
}
