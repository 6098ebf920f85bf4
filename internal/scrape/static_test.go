package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/resilience"
)

func newTestStatic() *StaticFetcher {
	return NewStaticFetcher(StaticOptions{UserAgent: "TangoBot/1.0", Timeout: 5 * time.Second})
}

func TestStaticFetcher_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TangoBot/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		assert.Equal(t, acceptLanguageHeader, r.Header.Get("Accept-Language"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><main><h1>Practica</h1><p>Sunday</p></main></body></html>"))
	}))
	defer srv.Close()

	text, err := newTestStatic().Fetch(context.Background(), srv.URL, model.ParserConfig{})
	require.NoError(t, err)
	assert.Equal(t, "Practica Sunday", text)
}

func TestStaticFetcher_TransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestStatic().Fetch(context.Background(), srv.URL, model.ParserConfig{})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestStaticFetcher_PermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestStatic().Fetch(context.Background(), srv.URL, model.ParserConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.False(t, resilience.IsTransient(err))
}

func TestStaticFetcher_Blocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("cf-ray", "123")
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestStatic().Fetch(context.Background(), srv.URL, model.ParserConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked (cloudflare)")
}

func TestStaticFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<body>late</body>"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestStatic().Fetch(ctx, srv.URL, model.ParserConfig{})
	assert.Error(t, err)
}
