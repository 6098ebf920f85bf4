package registry

import (
	"bytes"
	"context"
	_ "embed"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tangocommunity/crawler/internal/model"
)

//go:embed products.yaml
var embeddedProducts []byte

// StaticRegistry serves a fixed list of sources loaded from YAML.
type StaticRegistry struct {
	sources []model.CrawlSource
}

// NewStaticRegistry wraps sources. Order is preserved.
func NewStaticRegistry(sources []model.CrawlSource) *StaticRegistry {
	return &StaticRegistry{sources: sources}
}

// ActiveSources returns the active sources in registration order.
func (r *StaticRegistry) ActiveSources(_ context.Context) ([]model.CrawlSource, error) {
	out := make([]model.CrawlSource, 0, len(r.sources))
	for _, s := range r.sources {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

// All returns every configured source, active or not.
func (r *StaticRegistry) All() []model.CrawlSource {
	return append([]model.CrawlSource(nil), r.sources...)
}

// Products returns the built-in product source catalogue.
func Products() (*StaticRegistry, error) {
	return LoadStatic(bytes.NewReader(embeddedProducts))
}

// ProductsFromFile loads product sources from path, or the built-in
// catalogue when path is empty.
func ProductsFromFile(path string) (*StaticRegistry, error) {
	if path == "" {
		return Products()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	defer func() { _ = f.Close() }()
	return LoadStatic(f)
}

// LoadStatic decodes a YAML list of product sources and checks that each
// has an ID, a base URL and a known affiliate provider.
func LoadStatic(r io.Reader) (*StaticRegistry, error) {
	var sources []model.CrawlSource
	if err := yaml.NewDecoder(r).Decode(&sources); err != nil && err != io.EOF {
		return nil, eris.Wrap(err, "registry: decode product sources")
	}

	seen := make(map[string]bool, len(sources))
	for i, s := range sources {
		switch {
		case s.ID == "":
			return nil, eris.Errorf("registry: source %d has no id", i)
		case seen[s.ID]:
			return nil, eris.Errorf("registry: duplicate source id %q", s.ID)
		case s.BaseURL == "":
			return nil, eris.Errorf("registry: source %q has no base_url", s.ID)
		}
		switch s.AffiliateProvider {
		case model.ProviderAmazon, model.ProviderCoupang, model.ProviderAliExpress:
		default:
			return nil, eris.Errorf("registry: source %q has unknown affiliate_provider %q", s.ID, s.AffiliateProvider)
		}
		if s.ParserConfig.Strategy == "" {
			sources[i].ParserConfig.Strategy = model.FetchStatic
		}
		if s.ProductCategory == "" {
			sources[i].ProductCategory = model.CategoryOther
		}
		seen[s.ID] = true
	}
	return &StaticRegistry{sources: sources}, nil
}
