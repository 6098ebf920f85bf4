package scrape

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/resilience"
)

const (
	acceptHeader         = "text/html,application/xhtml+xml"
	acceptLanguageHeader = "en-US,en;q=0.9,es;q=0.8,ko;q=0.7"
	maxBodyBytes         = 5 << 20
)

// StaticOptions configures a StaticFetcher.
type StaticOptions struct {
	UserAgent string
	Timeout   time.Duration
	MaxChars  int
}

// StaticFetcher issues a single GET and cleans the returned HTML.
type StaticFetcher struct {
	client    *http.Client
	userAgent string
	maxChars  int
}

// NewStaticFetcher creates a StaticFetcher with bounded timeouts.
func NewStaticFetcher(opts StaticOptions) *StaticFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &StaticFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: opts.UserAgent,
		maxChars:  opts.MaxChars,
	}
}

func (s *StaticFetcher) Name() string { return "static" }

// Fetch retrieves targetURL. Non-2xx statuses and detected blocks are errors;
// throttling and server errors are marked transient.
func (s *StaticFetcher) Fetch(ctx context.Context, targetURL string, _ model.ParserConfig) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "static: create request")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguageHeader)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "static: fetch %s", targetURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", eris.Wrap(err, "static: read body")
	}

	if blocked, blockType := DetectBlock(resp, body); blocked {
		return "", eris.Errorf("static: blocked (%s) at %s", blockType, targetURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", resilience.HTTPStatus(targetURL, resp.StatusCode)
	}

	return Clean(string(body), s.maxChars)
}
