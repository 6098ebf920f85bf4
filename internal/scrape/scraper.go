// Package scrape retrieves listing pages and reduces them to cleaned text.
package scrape

import (
	"context"

	"github.com/tangocommunity/crawler/internal/model"
)

// Fetcher retrieves one URL and returns its cleaned plain text.
type Fetcher interface {
	Fetch(ctx context.Context, url string, cfg model.ParserConfig) (string, error)
	Name() string
}

// DefaultMaxChars caps cleaned text when no limit is configured.
const DefaultMaxChars = 100_000
