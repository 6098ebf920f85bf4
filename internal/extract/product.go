package extract

import (
	"fmt"
	"strings"

	"github.com/tangocommunity/crawler/internal/model"
)

// LinkBuilder turns canonical URLs into tracked affiliate links.
type LinkBuilder interface {
	Build(canonicalURL string, provider model.AffiliateProvider) string
	AffiliateID(provider model.AffiliateProvider) string
	HotelURL(provider model.AffiliateProvider, hotelName string) string
}

const productSystem = `You extract Argentine tango product deals from the text of online shop search result pages.

CATEGORIES:
- shoes: tango dance shoes (heels, practice shoes, men's dance shoes)
- clothing: dance wear (dresses, skirts, trousers, tops, suits)
- accessories: shoe bags, dance socks, insoles, ties, fans
- music: tango CDs, vinyl, downloads, instructional video
- other: tango-related items outside those groups (books, decorations)

PRICES:
1. Give both the original (list or crossed-out) price and the current deal price.
2. When only one price is shown, use it for both.
3. Return plain numbers with no currency symbols.
4. Infer currency from the locale or symbol: $ USD, ₩ KRW, ¥ CNY, € EUR, £ GBP.
5. Korean Won amounts are large (for example 59000); never divide them.

RELEVANCE:
- Only include products with some sign of tango relevance (tango, dance, milonga, vals in title or description).

FIELDS:
- source_url is the absolute product detail URL; build it from the base URL when the page only has a relative link.
- Keep the title in its original language.
- confidence: 1.0 clear tango product with clear prices, 0.7 likely tango, 0.5 uncertain.
- expires_at is the sale end date in ISO 8601 when shown, otherwise null.
- image_urls lists absolute image URLs.
- Leave out affiliate_url and affiliate_id.

OUTPUT:
- Return ONLY a JSON array with no markdown and no commentary.
- Return [] when nothing relevant is found.
- Never invent prices, URLs or product details.`

// ProductDomain extracts product deals for one registry source.
type ProductDomain struct {
	Source model.CrawlSource
	Links  LinkBuilder
}

func (ProductDomain) Name() string   { return "products" }
func (ProductDomain) System() string { return productSystem }

func (d ProductDomain) Prompt(text string, src SourceContext) string {
	var b strings.Builder
	b.WriteString("Extract all tango product deals from this shopping search result page.\n\n")
	fmt.Fprintf(&b, "Source URL: %s\n", src.URL)
	fmt.Fprintf(&b, "Affiliate Provider: %s\n", d.Source.AffiliateProvider)
	fmt.Fprintf(&b, "Target Product Category: %s\n", d.Source.ProductCategory)
	if src.Language != "" {
		fmt.Fprintf(&b, "Page Language: %s\n", src.Language)
	}
	b.WriteString("\n---PAGE CONTENT START---\n")
	b.WriteString(text)
	b.WriteString("\n---PAGE CONTENT END---\n\n")
	b.WriteString("Return a JSON array of products. Each product must have: title, product_category, original_price, deal_price, currency, affiliate_provider, source_url.")
	return b.String()
}

func (d ProductDomain) Defaults() model.ExtractedProduct {
	return model.ExtractedProduct{
		Currency:          "USD",
		AffiliateProvider: d.Source.AffiliateProvider,
		ProductCategory:   d.Source.ProductCategory,
		Confidence:        model.DefaultConfidence,
	}
}

// Finish pins the source's provider and attaches the tracked link. A link
// that cannot be built falls back to the canonical URL inside the builder,
// so this never drops a record.
func (d ProductDomain) Finish(p *model.ExtractedProduct, _ SourceContext) error {
	p.Currency = strings.ToUpper(p.Currency)
	if d.Source.AffiliateProvider != "" {
		p.AffiliateProvider = d.Source.AffiliateProvider
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if d.Links == nil {
		p.AffiliateURL = p.SourceURL
		return nil
	}
	p.AffiliateURL = d.Links.Build(p.SourceURL, p.AffiliateProvider)
	if id := d.Links.AffiliateID(p.AffiliateProvider); id != "" {
		p.AffiliateID = &id
	}
	return nil
}
