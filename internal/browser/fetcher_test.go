package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

// chromePath returns a local Chrome or Chromium binary, or skips the test.
func chromePath(t *testing.T) string {
	t.Helper()
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	t.Skip("no chrome executable found")
	return ""
}

const listingPage = `<!doctype html>
<html><body>
<div id="consent"><button id="onetrust-accept-btn-handler" onclick="document.getElementById('consent').remove()">Accept</button></div>
<main><ul id="events"></ul></main>
<script>
  setTimeout(function () {
    var li = document.createElement('li');
    li.textContent = 'Milonga La Viruta Saturday';
    document.getElementById('events').appendChild(li);
  }, 300);
  window.addEventListener('scroll', function () {
    if (document.getElementById('more')) return;
    var li = document.createElement('li');
    li.id = 'more';
    li.textContent = 'Practica Sunday';
    document.getElementById('events').appendChild(li);
  });
  document.body.style.height = '5000px';
</script>
</body></html>`

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	h := NewHandle(Options{ExecPath: chromePath(t), Headless: true})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Close(ctx)
	})
	return NewFetcher(h, FetcherOptions{Timeout: 15 * time.Second})
}

func TestFetch_RendersSelectorConsentAndScroll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()
	f := newTestFetcher(t)

	// Fetch must finish on its own timeouts even when the caller sets none.
	done := make(chan struct{})
	var (
		text string
		err  error
	)
	go func() {
		defer close(done)
		text, err = f.Fetch(context.Background(), srv.URL, model.ParserConfig{
			Strategy:        model.FetchDynamic,
			WaitForSelector: "#events li",
			Pagination:      &model.Pagination{Type: model.PaginationInfiniteScroll, MaxPages: 2},
		})
	}()

	select {
	case <-done:
	case <-time.After(60 * time.Second):
		t.Fatal("fetch did not return")
	}
	require.NoError(t, err)
	assert.Contains(t, text, "Milonga La Viruta Saturday")
	assert.Contains(t, text, "Practica Sunday")
	assert.NotContains(t, text, "Accept")
}

func TestFetch_SequentialTabsReuseBrowser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><main>Tango shoes on sale</main></body></html>`)
	}))
	defer srv.Close()
	f := newTestFetcher(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	for range 2 {
		text, err := f.Fetch(ctx, srv.URL, model.ParserConfig{Strategy: model.FetchDynamic})
		require.NoError(t, err)
		assert.Contains(t, text, "Tango shoes on sale")
	}
}
