package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

func TestHandle_AcquireAfterClose(t *testing.T) {
	h := NewHandle(Options{Headless: true})
	require.NoError(t, h.Close(context.Background()))

	assert.ErrorIs(t, h.Acquire(), ErrClosed)

	_, _, err := h.Tab(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestHandle_CloseIdempotent(t *testing.T) {
	h := NewHandle(Options{})
	require.NoError(t, h.Close(context.Background()))
	require.NoError(t, h.Close(context.Background()))
}

func TestHandle_CloseWaitsForRelease(t *testing.T) {
	h := NewHandle(Options{})
	require.NoError(t, h.Acquire())

	done := make(chan error, 1)
	go func() { done <- h.Close(context.Background()) }()

	select {
	case <-done:
		t.Fatal("close returned while a page was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	h.Release()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not return after release")
	}
}

func TestHandle_CloseHonoursDeadline(t *testing.T) {
	h := NewHandle(Options{})
	require.NoError(t, h.Acquire())
	defer h.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := h.Close(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in-flight")
}

func TestFetcher_ClosedHandle(t *testing.T) {
	h := NewHandle(Options{})
	require.NoError(t, h.Close(context.Background()))

	f := NewFetcher(h, FetcherOptions{})
	assert.Equal(t, "browser", f.Name())

	_, err := f.Fetch(context.Background(), "https://example.com", model.ParserConfig{Strategy: model.FetchDynamic})
	assert.ErrorIs(t, err, ErrClosed)
}
