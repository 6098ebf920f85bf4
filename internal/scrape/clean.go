package scrape

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"
)

// boilerplateSelectors are removed before text extraction.
const boilerplateSelectors = `script, style, noscript, iframe, svg, link, meta, ` +
	`nav, footer, header, .cookie-banner, .ad, .advertisement, .sidebar, ` +
	`[class*="cookie"], [class*="popup"], [class*="modal"], [id*="cookie"]`

// mainContentSelectors are tried in order; the first match wins.
var mainContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".content",
	"#content",
	".main-content",
}

// blockElements get a separator around their text so adjacent blocks do not
// run together.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"hr": true, "li": true, "main": true, "ol": true, "p": true, "pre": true,
	"section": true, "table": true, "td": true, "th": true, "tr": true, "ul": true,
}

// Clean strips boilerplate from html, keeps the main content region (or the
// whole body), NFC-normalizes and collapses whitespace, and truncates the
// result to limit runes. A non-positive limit uses DefaultMaxChars.
func Clean(html string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxChars
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", eris.Wrap(err, "scrape: parse html")
	}

	doc.Find(boilerplateSelectors).Remove()

	region := doc.Find("body").First()
	for _, sel := range mainContentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			region = s
			break
		}
	}
	if region.Length() == 0 {
		region = doc.Selection
	}

	var b strings.Builder
	collectText(region, &b)

	text := strings.Join(strings.Fields(norm.NFC.String(b.String())), " ")
	return truncateRunes(text, limit), nil
}

func collectText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		switch {
		case name == "#text":
			b.WriteString(c.Text())
		case name == "#comment":
		case blockElements[name]:
			b.WriteByte(' ')
			collectText(c, b)
			b.WriteByte(' ')
		default:
			collectText(c, b)
		}
	})
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
