package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "pubmed.ncbi.nlm.nih.gov,.fda.gov")

	tests := []struct {
		url  string
		want string
	}{
		{"http://tto.example.edu/tech/1", "http://proxy.internal:3128"},
		{"https://tto.example.edu/tech/1", "http://proxy.internal:3128"},
		{"https://pubmed.ncbi.nlm.nih.gov/123", ""},
		{"https://www.accessdata.fda.gov/x", ""},
	}
	for _, tt := range tests {
		req, err := http.NewRequest(http.MethodGet, tt.url, nil)
		require.NoError(t, err)

		got, err := proxy(req)
		require.NoError(t, err)
		if tt.want == "" {
			assert.Nil(t, got, tt.url)
			continue
		}
		require.NotNil(t, got, tt.url)
		assert.Equal(t, tt.want, got.String(), tt.url)
	}
}

func TestNewProxyFunc_SeparateHTTPS(t *testing.T) {
	proxy := NewProxyFunc("http://plain:8080", "http://secure:8443", "")

	req, _ := http.NewRequest(http.MethodGet, "https://example.org", nil)
	got, err := proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "http://secure:8443", got.String())

	req, _ = http.NewRequest(http.MethodGet, "http://example.org", nil)
	got, err = proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "http://plain:8080", got.String())
}

func TestNewTransport(t *testing.T) {
	transport := NewTransport("", "", "")
	assert.NotNil(t, transport.Proxy)
}

func TestNormalizeUserAgent(t *testing.T) {
	assert.Equal(t, "ipdd", NormalizeUserAgent("ipdd/0.1 (+https://github.com/ppiankov/ipdd)"))
	assert.Equal(t, "curl", NormalizeUserAgent("curl"))
	assert.Equal(t, "", NormalizeUserAgent(""))
}

func TestRobotsChecker(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fetches.Add(1)
		_, _ = fmt.Fprint(w, "User-agent: ipdd\nDisallow: /private/\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n")
	}))
	defer server.Close()

	checker := NewRobotsChecker("ipdd/0.1", 5*time.Second, server.Client())
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/tech/42")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 2*time.Second, delay)

	assert.False(t, checker.IsAllowed(ctx, server.URL+"/private/doc"))
	assert.Equal(t, int32(1), fetches.Load(), "robots.txt is fetched once per host")

	other := NewRobotsChecker("somebot/1.0", 5*time.Second, server.Client())
	assert.False(t, other.IsAllowed(ctx, server.URL+"/tech/42"))
}

func TestRobotsChecker_MissingFileAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	checker := NewRobotsChecker("ipdd/0.1", 5*time.Second, server.Client())
	assert.True(t, checker.IsAllowed(context.Background(), server.URL+"/anything"))
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	checker := NewRobotsChecker("ipdd/0.1", 200*time.Millisecond, nil)
	allowed, _, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/tech")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobotsChecker_BadURL(t *testing.T) {
	checker := NewRobotsChecker("ipdd/0.1", time.Second, nil)
	_, _, err := checker.CanFetch(context.Background(), "not a url")
	assert.Error(t, err)
}
