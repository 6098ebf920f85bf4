package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/internal/scrape"
)

const (
	selectorWait = 10 * time.Second
	dismissWait  = 3 * time.Second
	settleDelay  = 2 * time.Second
	scrollPause  = 1500 * time.Millisecond
	// actionWait bounds a single scroll or DOM read beyond its own pauses.
	actionWait = 10 * time.Second
)

// consentButtons are clicked, when visible, to clear cookie walls.
var consentButtons = []string{
	"#onetrust-accept-btn-handler",
	`button[id*="accept"]`,
	`button[class*="accept"]`,
	`[data-testid="accept-cookie"]`,
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Timeout  time.Duration
	MaxChars int
}

// Fetcher renders a page in a browser tab and returns its cleaned text.
type Fetcher struct {
	handle   *Handle
	timeout  time.Duration
	maxChars int
}

var _ scrape.Fetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher that opens tabs on handle.
func NewFetcher(handle *Handle, opts FetcherOptions) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Fetcher{handle: handle, timeout: opts.Timeout, maxChars: opts.MaxChars}
}

func (f *Fetcher) Name() string { return "browser" }

// Fetch navigates to url, waits for the configured selector, dismisses
// consent dialogs, scrolls infinite listings and returns the cleaned DOM text.
func (f *Fetcher) Fetch(ctx context.Context, url string, cfg model.ParserConfig) (string, error) {
	if err := f.handle.Acquire(); err != nil {
		return "", err
	}
	defer f.handle.Release()

	tabCtx, cancel, err := f.handle.Tab(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	log := zap.L().With(zap.String("component", "browser"), zap.String("url", url))

	navCtx, navCancel := context.WithTimeout(tabCtx, f.timeout)
	err = chromedp.Run(navCtx, chromedp.Navigate(url))
	navCancel()
	if err != nil {
		return "", eris.Wrapf(err, "browser: navigate %s", url)
	}

	if cfg.WaitForSelector != "" {
		waitCtx, waitCancel := context.WithTimeout(tabCtx, selectorWait)
		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(cfg.WaitForSelector, chromedp.ByQuery)); err != nil {
			log.Warn("browser: selector did not appear",
				zap.String("selector", cfg.WaitForSelector), zap.Error(err))
		}
		waitCancel()
	}

	dismissConsent(tabCtx)

	if cfg.Pagination != nil && cfg.Pagination.Type == model.PaginationInfiniteScroll {
		for i := 1; i < cfg.MaxPages(); i++ {
			scrollCtx, scrollCancel := context.WithTimeout(tabCtx, scrollPause+actionWait)
			err := chromedp.Run(scrollCtx,
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
				chromedp.Sleep(scrollPause),
			)
			scrollCancel()
			if err != nil {
				log.Warn("browser: scroll failed", zap.Int("step", i), zap.Error(err))
				break
			}
		}
	}

	var html string
	readCtx, readCancel := context.WithTimeout(tabCtx, settleDelay+actionWait)
	defer readCancel()
	if err := chromedp.Run(readCtx,
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", eris.Wrapf(err, "browser: read dom %s", url)
	}

	return scrape.Clean(html, f.maxChars)
}

func dismissConsent(tabCtx context.Context) {
	for _, sel := range consentButtons {
		clickCtx, cancel := context.WithTimeout(tabCtx, dismissWait)
		err := chromedp.Run(clickCtx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
		cancel()
		if err == nil {
			return
		}
	}
}
