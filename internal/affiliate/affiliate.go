// Package affiliate turns canonical product and hotel URLs into tracked
// outbound links. Everything here is pure; a URL that cannot be rewritten is
// returned unchanged.
package affiliate

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tangocommunity/crawler/internal/config"
	"github.com/tangocommunity/crawler/internal/model"
)

const (
	coupangRedirect   = "https://partners.coupang.com/products/redirect"
	aliexpressDeep    = "https://s.click.aliexpress.com/deep_link.htm"
	aliexpressFSK     = "tango"
	bookingSearchBase = "https://www.booking.com/search.html"
	agodaSearchBase   = "https://www.agoda.com/search"
)

// amazonHosts maps a marketplace code to its storefront host. Associate tags
// are issued per marketplace and only credit on that storefront.
var amazonHosts = map[string]string{
	"US": "www.amazon.com",
	"CA": "www.amazon.ca",
	"UK": "www.amazon.co.uk",
	"DE": "www.amazon.de",
	"FR": "www.amazon.fr",
	"ES": "www.amazon.es",
	"IT": "www.amazon.it",
	"JP": "www.amazon.co.jp",
	"BR": "www.amazon.com.br",
	"MX": "www.amazon.com.mx",
}

// Builder rewrites URLs with the configured tracking identifiers.
type Builder struct {
	cfg config.AffiliateConfig
}

// New returns a Builder for cfg.
func New(cfg config.AffiliateConfig) *Builder {
	return &Builder{cfg: cfg}
}

// Build returns the tracked link for canonicalURL. Unknown providers and
// URLs that are not absolute http(s) URLs come back unchanged.
func (b *Builder) Build(canonicalURL string, provider model.AffiliateProvider) string {
	u, ok := parseAbsolute(canonicalURL)
	if !ok {
		return canonicalURL
	}

	switch provider {
	case model.ProviderAmazon:
		q := u.Query()
		q.Del("tag")
		if b.cfg.Amazon.AssociateTag != "" && b.onMarketplace(u.Host) {
			q.Set("tag", b.cfg.Amazon.AssociateTag)
		}
		q.Del("ref")
		q.Del("linkCode")
		q.Del("ascsubtag")
		u.RawQuery = q.Encode()
		return u.String()

	case model.ProviderCoupang:
		q := url.Values{"url": {canonicalURL}}
		if b.cfg.Coupang.PartnerID != "" {
			q.Set("partnersApiId", b.cfg.Coupang.PartnerID)
		}
		if b.cfg.Coupang.SubID != "" {
			q.Set("subId", b.cfg.Coupang.SubID)
		}
		return coupangRedirect + "?" + q.Encode()

	case model.ProviderAliExpress:
		q := url.Values{"dl_target_url": {canonicalURL}, "aff_fsk": {aliexpressFSK}}
		if b.cfg.AliExpress.TrackingID != "" {
			q.Set("aff_fcid", b.cfg.AliExpress.TrackingID)
		}
		return aliexpressDeep + "?" + q.Encode()

	case model.ProviderBooking:
		q := u.Query()
		q.Set("aid", b.cfg.Booking.AID)
		q.Del("label")
		u.RawQuery = q.Encode()
		return u.String()

	case model.ProviderAgoda:
		q := u.Query()
		q.Set("cid", b.cfg.Agoda.CID)
		q.Del("tag")
		u.RawQuery = q.Encode()
		return u.String()

	default:
		return canonicalURL
	}
}

// AffiliateID returns the partner identifier stored alongside a link.
func (b *Builder) AffiliateID(provider model.AffiliateProvider) string {
	switch provider {
	case model.ProviderAmazon:
		return b.cfg.Amazon.AssociateTag
	case model.ProviderCoupang:
		if b.cfg.Coupang.PartnerID != "" {
			return b.cfg.Coupang.PartnerID
		}
		return b.cfg.Coupang.SubID
	case model.ProviderAliExpress:
		return b.cfg.AliExpress.TrackingID
	case model.ProviderBooking:
		return b.cfg.Booking.AID
	case model.ProviderAgoda:
		return b.cfg.Agoda.CID
	default:
		return ""
	}
}

// SearchURL builds a hotel search for query with a one-night stay starting
// on checkIn's calendar date. It returns "" for non-hotel providers.
func (b *Builder) SearchURL(provider model.AffiliateProvider, query string, checkIn time.Time) string {
	ci := checkIn.UTC().Format(time.DateOnly)
	co := checkIn.UTC().AddDate(0, 0, 1).Format(time.DateOnly)

	switch provider {
	case model.ProviderBooking:
		q := url.Values{
			"ss":           {query},
			"checkin":      {ci},
			"checkout":     {co},
			"group_adults": {"2"},
			"no_rooms":     {"1"},
			"aid":          {b.cfg.Booking.AID},
		}
		return bookingSearchBase + "?" + q.Encode()
	case model.ProviderAgoda:
		q := url.Values{
			"city":     {query},
			"checkIn":  {ci},
			"checkOut": {co},
			"adults":   {"2"},
			"rooms":    {"1"},
			"cid":      {b.cfg.Agoda.CID},
		}
		return agodaSearchBase + "?" + q.Encode()
	default:
		return ""
	}
}

// HotelURL builds a deep link from a hotel name, used when the extracted
// link is missing or not an https URL. Names with no ASCII letters or
// digits fall back to a name search.
func (b *Builder) HotelURL(provider model.AffiliateProvider, hotelName string) string {
	slug := Slug(hotelName)

	switch provider {
	case model.ProviderBooking:
		if slug == "" {
			return bookingSearchBase + "?" + url.Values{"ss": {hotelName}, "aid": {b.cfg.Booking.AID}}.Encode()
		}
		return "https://www.booking.com/hotel/xx/" + slug + ".html?" + url.Values{"aid": {b.cfg.Booking.AID}}.Encode()
	case model.ProviderAgoda:
		if slug == "" {
			return agodaSearchBase + "?" + url.Values{"city": {hotelName}, "cid": {b.cfg.Agoda.CID}}.Encode()
		}
		return "https://www.agoda.com/hotel/" + slug + "?" + url.Values{"cid": {b.cfg.Agoda.CID}}.Encode()
	default:
		return ""
	}
}

// onMarketplace reports whether host is the configured Amazon storefront.
// An empty or unknown marketplace code accepts every host.
func (b *Builder) onMarketplace(host string) bool {
	want, ok := amazonHosts[strings.ToUpper(strings.TrimSpace(b.cfg.Amazon.Marketplace))]
	if !ok {
		return true
	}
	host = strings.ToLower(host)
	return host == want || "www."+host == want
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and joins its ASCII alphanumeric runs with hyphens.
func Slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func parseAbsolute(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}
