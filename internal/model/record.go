package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultConfidence is assigned to records whose source does not state one.
const DefaultConfidence = 0.5

// Record is implemented by every extracted record variant.
type Record interface {
	// Label is the human identity of the record (title or hotel name).
	Label() string
	// Score is the extraction confidence in [0,1].
	Score() float64
}

// EventType classifies a tango event.
type EventType string

const (
	EventMilonga  EventType = "milonga"
	EventFestival EventType = "festival"
	EventWorkshop EventType = "workshop"
	EventClass    EventType = "class"
	EventPractica EventType = "practica"
)

// ExtractedEvent is a candidate tango event produced by extraction.
type ExtractedEvent struct {
	Title          string    `json:"title" validate:"required"`
	TitleOriginal  string    `json:"title_original,omitempty"`
	Description    *string   `json:"description,omitempty"`
	EventType      EventType `json:"event_type" validate:"required,oneof=milonga festival workshop class practica"`
	VenueName      *string   `json:"venue_name,omitempty"`
	Address        *string   `json:"address,omitempty"`
	City           string    `json:"city" validate:"required"`
	CountryCode    string    `json:"country_code" validate:"len=2"`
	Latitude       *float64  `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude      *float64  `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	StartDatetime  string    `json:"start_datetime" validate:"required"`
	EndDatetime    *string   `json:"end_datetime,omitempty"`
	RecurrenceRule *string   `json:"recurrence_rule,omitempty"`
	OrganizerName  *string   `json:"organizer_name,omitempty"`
	PriceInfo      *string   `json:"price_info,omitempty"`
	Currency       *string   `json:"currency,omitempty" validate:"omitempty,len=3"`
	ImageURLs      []string  `json:"image_urls"`
	Confidence     float64   `json:"confidence" validate:"gte=0,lte=1"`
}

func (e ExtractedEvent) Label() string  { return e.Title }
func (e ExtractedEvent) Score() float64 { return e.Confidence }

// StartTime parses StartDatetime.
func (e ExtractedEvent) StartTime() (time.Time, error) {
	return ParseDatetime(e.StartDatetime)
}

// EndTime parses EndDatetime, returning nil when absent.
func (e ExtractedEvent) EndTime() (*time.Time, error) {
	if e.EndDatetime == nil || strings.TrimSpace(*e.EndDatetime) == "" {
		return nil, nil
	}
	t, err := ParseDatetime(*e.EndDatetime)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDatetime accepts RFC 3339, local ISO 8601 without zone, or a bare date.
// Values without a zone are interpreted as UTC.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, eris.Errorf("model: unparseable datetime %q", s)
}

// ProductCategory buckets affiliate products.
type ProductCategory string

const (
	CategoryShoes       ProductCategory = "shoes"
	CategoryClothing    ProductCategory = "clothing"
	CategoryAccessories ProductCategory = "accessories"
	CategoryMusic       ProductCategory = "music"
	CategoryOther       ProductCategory = "other"
)

// AffiliateProvider names a tracking-link provider.
type AffiliateProvider string

const (
	ProviderAmazon     AffiliateProvider = "amazon"
	ProviderCoupang    AffiliateProvider = "coupang"
	ProviderAliExpress AffiliateProvider = "aliexpress"
	ProviderBooking    AffiliateProvider = "booking_com"
	ProviderAgoda      AffiliateProvider = "agoda"
)

// ExtractedProduct is a candidate affiliate deal produced by extraction.
type ExtractedProduct struct {
	Title             string            `json:"title" validate:"required,max=500"`
	Description       *string           `json:"description,omitempty"`
	ProductCategory   ProductCategory   `json:"product_category" validate:"required,oneof=shoes clothing accessories music other"`
	OriginalPrice     float64           `json:"original_price" validate:"gt=0"`
	DealPrice         float64           `json:"deal_price" validate:"gt=0"`
	Currency          string            `json:"currency" validate:"len=3"`
	AffiliateProvider AffiliateProvider `json:"affiliate_provider" validate:"required,oneof=coupang amazon aliexpress"`
	SourceURL         string            `json:"source_url" validate:"required,url"`
	AffiliateURL      string            `json:"affiliate_url,omitempty"`
	AffiliateID       *string           `json:"affiliate_id,omitempty"`
	ImageURLs         []string          `json:"image_urls"`
	ExpiresAt         *string           `json:"expires_at,omitempty"`
	Confidence        float64           `json:"confidence" validate:"gte=0,lte=1"`
}

func (p ExtractedProduct) Label() string  { return p.Title }
func (p ExtractedProduct) Score() float64 { return p.Confidence }

// ExpiryTime parses ExpiresAt, returning nil when absent or unparseable.
func (p ExtractedProduct) ExpiryTime() *time.Time {
	if p.ExpiresAt == nil {
		return nil
	}
	t, err := ParseDatetime(*p.ExpiresAt)
	if err != nil {
		return nil
	}
	return &t
}

// ExtractedHotel is a candidate hotel near an event.
type ExtractedHotel struct {
	HotelName               string            `json:"hotel_name" validate:"required"`
	HotelAddress            *string           `json:"hotel_address,omitempty"`
	Latitude                *float64          `json:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude               *float64          `json:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	PricePerNightMin        *float64          `json:"price_per_night_min,omitempty" validate:"omitempty,gte=0"`
	Currency                string            `json:"currency" validate:"len=3"`
	Rating                  *float64          `json:"rating,omitempty" validate:"omitempty,gte=0,lte=10"`
	ReviewCount             int               `json:"review_count" validate:"gte=0"`
	AffiliateProvider       AffiliateProvider `json:"affiliate_provider" validate:"required,oneof=booking_com agoda"`
	AffiliateURL            string            `json:"affiliate_url"`
	AffiliateID             *string           `json:"affiliate_id,omitempty"`
	ImageURL                *string           `json:"image_url,omitempty"`
	Amenities               []string          `json:"amenities"`
	DistanceFromEventMeters *int              `json:"distance_from_event_meters,omitempty"`
	Confidence              float64           `json:"confidence" validate:"gte=0,lte=1"`
}

func (h ExtractedHotel) Label() string  { return h.HotelName }
func (h ExtractedHotel) Score() float64 { return h.Confidence }

// HasCoordinates reports whether both latitude and longitude are set.
func (h ExtractedHotel) HasCoordinates() bool {
	return h.Latitude != nil && h.Longitude != nil
}

// EventForEnrichment is a persisted event that still lacks hotel affiliates.
type EventForEnrichment struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	VenueName     *string   `json:"venue_name,omitempty"`
	Address       *string   `json:"address,omitempty"`
	City          string    `json:"city"`
	CountryCode   string    `json:"country_code"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	StartDatetime time.Time `json:"start_datetime"`
}
