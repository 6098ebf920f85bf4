package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Lane identifies an independent crawl task pipeline.
type Lane string

const (
	LaneEvents   Lane = "events"
	LaneProducts Lane = "products"
	LaneHotels   Lane = "hotels"
)

// AllLanes lists lanes in full-cycle order. Hotels run last because they
// enrich freshly crawled events.
var AllLanes = []Lane{LaneEvents, LaneProducts, LaneHotels}

// ParseLane converts a string into a Lane.
func ParseLane(s string) (Lane, error) {
	switch Lane(s) {
	case LaneEvents, LaneProducts, LaneHotels:
		return Lane(s), nil
	default:
		return "", eris.Errorf("unknown lane: %q (valid: events, products, hotels)", s)
	}
}

// Frequency is how often a source should be polled.
type Frequency string

const (
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Interval returns the nominal polling interval. Unknown values are treated as daily.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// FetchStrategy selects how a source's pages are retrieved.
type FetchStrategy string

const (
	// FetchStatic issues a plain HTTP GET and parses the returned HTML.
	FetchStatic FetchStrategy = "static"
	// FetchDynamic renders the page in a headless browser first.
	FetchDynamic FetchStrategy = "dynamic"
)

// UnmarshalText accepts the strategy names and the legacy engine names
// ("cheerio", "playwright") still stored in older crawl_sources rows.
func (s *FetchStrategy) UnmarshalText(text []byte) error {
	switch v := strings.ToLower(strings.TrimSpace(string(text))); v {
	case "", string(FetchStatic), "cheerio":
		*s = FetchStatic
	case string(FetchDynamic), "playwright":
		*s = FetchDynamic
	default:
		return eris.Errorf("unknown fetch strategy: %q", v)
	}
	return nil
}

// PaginationType describes how a listing exposes further pages.
type PaginationType string

const (
	PaginationURLParam       PaginationType = "url_param"
	PaginationInfiniteScroll PaginationType = "infinite_scroll"
	PaginationNextButton     PaginationType = "next_button"
)

// Pagination bounds a paged listing.
type Pagination struct {
	Type     PaginationType `json:"type" yaml:"type"`
	Param    string         `json:"param,omitempty" yaml:"param,omitempty"`
	MaxPages int            `json:"maxPages,omitempty" yaml:"max_pages,omitempty"`
}

// Selectors are CSS hints about where listing content lives.
type Selectors struct {
	List          string `json:"eventList,omitempty" yaml:"list,omitempty"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	Date          string `json:"date,omitempty" yaml:"date,omitempty"`
	Content       string `json:"content,omitempty" yaml:"content,omitempty"`
	Price         string `json:"price,omitempty" yaml:"price,omitempty"`
	OriginalPrice string `json:"originalPrice,omitempty" yaml:"original_price,omitempty"`
	Image         string `json:"image,omitempty" yaml:"image,omitempty"`
	Link          string `json:"link,omitempty" yaml:"link,omitempty"`
}

// ParserConfig is the retrieval configuration of a source.
type ParserConfig struct {
	Strategy        FetchStrategy `json:"scraper" yaml:"strategy"`
	Selectors       *Selectors    `json:"selectors,omitempty" yaml:"selectors,omitempty"`
	Pagination      *Pagination   `json:"pagination,omitempty" yaml:"pagination,omitempty"`
	Language        string        `json:"language,omitempty" yaml:"language,omitempty"`
	WaitForSelector string        `json:"waitForSelector,omitempty" yaml:"wait_for_selector,omitempty"`
}

// MaxPages returns the number of pages to fetch, at least 1.
func (p ParserConfig) MaxPages() int {
	if p.Pagination == nil || p.Pagination.MaxPages < 1 {
		return 1
	}
	return p.Pagination.MaxPages
}

// CrawlSource is a configured origin to poll.
type CrawlSource struct {
	ID            string       `json:"id" yaml:"id"`
	Name          string       `json:"name" yaml:"name"`
	BaseURL       string       `json:"base_url" yaml:"base_url"`
	Frequency     Frequency    `json:"crawl_frequency" yaml:"crawl_frequency"`
	Active        bool         `json:"is_active" yaml:"is_active"`
	LastCrawledAt *time.Time   `json:"last_crawled_at,omitempty" yaml:"-"`
	ParserConfig  ParserConfig `json:"parser_config" yaml:"parser_config"`

	// Product sources only.
	AffiliateProvider AffiliateProvider `json:"affiliate_provider,omitempty" yaml:"affiliate_provider,omitempty"`
	ProductCategory   ProductCategory   `json:"product_category,omitempty" yaml:"product_category,omitempty"`
}

// Due reports whether the source's frequency interval has elapsed since its
// last crawl. A source that was never crawled is always due.
func (s CrawlSource) Due(now time.Time) bool {
	if s.LastCrawledAt == nil {
		return true
	}
	return !now.Before(s.LastCrawledAt.Add(s.Frequency.Interval()))
}
