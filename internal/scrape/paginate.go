package scrape

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

// DefaultPageParam is the query parameter used when a url_param source does
// not name one.
const DefaultPageParam = "page"

// Page is one fetched listing page.
type Page struct {
	Number int
	URL    string
	Text   string
}

// Paginator fetches every page of a source's listing.
type Paginator struct {
	fetcher Fetcher
	pacer   Pacer
}

// NewPaginator wraps fetcher with pacer between page requests. The first page
// is fetched without waiting.
func NewPaginator(fetcher Fetcher, pacer Pacer) *Paginator {
	return &Paginator{fetcher: fetcher, pacer: pacer}
}

// PageURL returns the URL of page n. Page 1 is always base; later pages set
// the pagination parameter for url_param sources.
func PageURL(base string, p *model.Pagination, n int) (string, error) {
	if n <= 1 || p == nil || p.Type != model.PaginationURLParam {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "scrape: parse base url %q", base)
	}
	param := p.Param
	if param == "" {
		param = DefaultPageParam
	}
	q := u.Query()
	q.Set(param, strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// FetchPages fetches pages 1..MaxPages of src. Only url_param listings get
// more than one request; infinite scroll is handled inside the browser
// fetcher. On error the pages fetched so far are returned with it.
func (p *Paginator) FetchPages(ctx context.Context, src model.CrawlSource) ([]Page, error) {
	cfg := src.ParserConfig
	total := 1
	if cfg.Pagination != nil && cfg.Pagination.Type == model.PaginationURLParam {
		total = cfg.MaxPages()
	}

	pages := make([]Page, 0, total)
	for n := 1; n <= total; n++ {
		pageURL, err := PageURL(src.BaseURL, cfg.Pagination, n)
		if err != nil {
			return pages, err
		}

		if n > 1 && p.pacer != nil {
			if err := p.pacer.Wait(ctx); err != nil {
				return pages, eris.Wrap(err, "scrape: wait for pacer")
			}
		}

		zap.L().Debug("scrape: fetching page",
			zap.String("source_id", src.ID),
			zap.Int("page", n),
			zap.String("url", pageURL),
		)
		text, err := p.fetcher.Fetch(ctx, pageURL, cfg)
		if err != nil {
			return pages, eris.Wrapf(err, "scrape: page %d", n)
		}
		pages = append(pages, Page{Number: n, URL: pageURL, Text: text})
	}
	return pages, nil
}
