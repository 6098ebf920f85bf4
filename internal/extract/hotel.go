package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
	"github.com/tangocommunity/crawler/pkg/anthropic"
)

// HotelDomain extracts hotel listings from a provider search page.
type HotelDomain struct {
	Provider  model.AffiliateProvider
	Event     model.EventForEnrichment
	MaxHotels int
	Links     LinkBuilder
}

func (HotelDomain) Name() string { return "hotels" }

func (d HotelDomain) System() string {
	return fmt.Sprintf(`You extract hotel listings from the text of a hotel search result page.

Return a JSON array of at most %[1]d objects. Each object has:
- hotel_name: string (required)
- hotel_address: string or null
- latitude: number or null
- longitude: number or null
- price_per_night_min: number or null, no currency symbol
- currency: ISO 4217 code, default "USD"
- rating: number 0-10 or null
- review_count: integer, default 0
- affiliate_provider: "%[2]s"
- affiliate_url: absolute https:// URL of the hotel page
- affiliate_id: string or null
- image_url: string or null
- amenities: array of strings
- confidence: number 0-1

Rules:
- Return ONLY a JSON array with no markdown and no explanation.
- Return fewer than %[1]d hotels when fewer are clearly listed, and [] when none are.`, d.MaxHotels, d.Provider)
}

func (d HotelDomain) Prompt(text string, _ SourceContext) string {
	near := d.Event.City
	if d.Event.VenueName != nil && *d.Event.VenueName != "" {
		near = *d.Event.VenueName
	} else if d.Event.Address != nil && *d.Event.Address != "" {
		near = *d.Event.Address
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract hotels from this %s search result page.\n", providerLabel(d.Provider))
	fmt.Fprintf(&b, "The search was for hotels near: %s, %s, %s\n", near, d.Event.City, d.Event.CountryCode)
	b.WriteString("\n---PAGE TEXT START---\n")
	b.WriteString(text)
	b.WriteString("\n---PAGE TEXT END---\n\n")
	b.WriteString("Return a JSON array of hotel objects.")
	return b.String()
}

func (d HotelDomain) Defaults() model.ExtractedHotel {
	return model.ExtractedHotel{
		Currency:          "USD",
		AffiliateProvider: d.Provider,
		Confidence:        model.DefaultConfidence,
	}
}

// Finish replaces unusable links with a provider deep link and tags usable
// ones with the affiliate identifier.
func (d HotelDomain) Finish(h *model.ExtractedHotel, _ SourceContext) error {
	h.HotelName = strings.TrimSpace(h.HotelName)
	h.Currency = strings.ToUpper(h.Currency)
	if h.Amenities == nil {
		h.Amenities = []string{}
	}
	if d.Links == nil {
		return nil
	}
	if strings.HasPrefix(h.AffiliateURL, "https://") {
		h.AffiliateURL = d.Links.Build(h.AffiliateURL, h.AffiliateProvider)
	} else {
		h.AffiliateURL = d.Links.HotelURL(h.AffiliateProvider, h.HotelName)
	}
	if id := d.Links.AffiliateID(h.AffiliateProvider); id != "" {
		h.AffiliateID = &id
	}
	return nil
}

func providerLabel(p model.AffiliateProvider) string {
	switch p {
	case model.ProviderBooking:
		return "Booking.com"
	case model.ProviderAgoda:
		return "Agoda"
	default:
		return string(p)
	}
}

const maxQueryRunes = 60

// HotelSearchQuery asks the model for a short hotel search query near the
// event venue. Any failure falls back to "<city> hotels".
func HotelSearchQuery(ctx context.Context, completer anthropic.Completer, ev model.EventForEnrichment) string {
	fallback := ev.City + " hotels"

	var venue strings.Builder
	if ev.VenueName != nil && *ev.VenueName != "" {
		venue.WriteString(*ev.VenueName + ", ")
	}
	if ev.Address != nil && *ev.Address != "" {
		venue.WriteString(*ev.Address + ", ")
	}
	fmt.Fprintf(&venue, "%s, %s", ev.City, ev.CountryCode)

	prompt := fmt.Sprintf(`Generate a concise hotel search query (max %d characters) for guests attending a tango event at:
Venue: %s

The query should work in the Booking.com or Agoda search box.
Return ONLY the search query string, nothing else.`, maxQueryRunes, venue.String())

	out, err := completer.Complete(ctx, "", prompt, 100)
	if err != nil {
		zap.L().Warn("extract: hotel search query failed, using fallback",
			zap.String("event_id", ev.ID), zap.Error(err))
		return fallback
	}

	q := strings.Trim(strings.TrimSpace(out), "\"'`")
	if idx := strings.IndexByte(q, '\n'); idx >= 0 {
		q = strings.TrimSpace(q[:idx])
	}
	if q == "" {
		return fallback
	}
	if utf8.RuneCountInString(q) > maxQueryRunes {
		q = string([]rune(q)[:maxQueryRunes])
	}
	return q
}
