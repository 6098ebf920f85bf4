package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

func productSource() model.CrawlSource {
	return model.CrawlSource{
		ID:                "amazon-us-tango-shoes",
		BaseURL:           "https://www.amazon.com/s?k=tango+shoes",
		AffiliateProvider: model.ProviderAmazon,
		ProductCategory:   model.CategoryShoes,
	}
}

func TestProductDomain(t *testing.T) {
	d := ProductDomain{Source: productSource(), Links: fakeLinks{}}
	raw := `[
  {"title":"Tango Heels","original_price":89.99,"deal_price":59.99,"source_url":"https://www.amazon.com/dp/B01","confidence":0.9},
  {"title":"Practice Shoe","product_category":"shoes","original_price":59000,"deal_price":49000,"currency":"krw","affiliate_provider":"coupang","source_url":"https://www.amazon.com/dp/B02"},
  {"title":"No price","original_price":0,"deal_price":10,"source_url":"https://www.amazon.com/dp/B03"},
  {"title":"Relative","original_price":10,"deal_price":10,"source_url":"/dp/B04"}
]`

	recs, rejected := ParseRecords(raw, d, SourceContext{URL: d.Source.BaseURL})
	require.Len(t, recs, 2)
	assert.Len(t, rejected, 2)

	first := recs[0]
	assert.Equal(t, model.CategoryShoes, first.ProductCategory, "category defaults to the source's")
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, model.ProviderAmazon, first.AffiliateProvider)
	assert.Equal(t, "https://www.amazon.com/dp/B01#amazon", first.AffiliateURL)
	require.NotNil(t, first.AffiliateID)
	assert.Equal(t, "id-amazon", *first.AffiliateID)
	assert.NotNil(t, first.ImageURLs)

	second := recs[1]
	assert.Equal(t, "KRW", second.Currency)
	assert.Equal(t, model.ProviderAmazon, second.AffiliateProvider, "source provider wins")
	assert.InDelta(t, 0.5, second.Confidence, 1e-9)
}

func TestProductDomain_NoAffiliateID(t *testing.T) {
	src := productSource()
	src.AffiliateProvider = model.ProviderAliExpress
	d := ProductDomain{Source: src, Links: fakeLinks{}}

	recs, _ := ParseRecords(`[{"title":"Fan","original_price":5,"deal_price":4,"source_url":"https://www.aliexpress.com/item/1.html"}]`, d, SourceContext{})
	require.Len(t, recs, 1)
	assert.Nil(t, recs[0].AffiliateID)
}

func TestProductPrompt(t *testing.T) {
	d := ProductDomain{Source: productSource()}
	p := d.Prompt("listing", SourceContext{URL: "https://www.amazon.com/s?k=tango+shoes&page=2", Language: "en"})
	assert.Contains(t, p, "Source URL: https://www.amazon.com/s?k=tango+shoes&page=2")
	assert.Contains(t, p, "Affiliate Provider: amazon")
	assert.Contains(t, p, "Target Product Category: shoes")
	assert.Contains(t, p, "Page Language: en")
}

func hotelEvent() model.EventForEnrichment {
	venue := "Club Sunset"
	return model.EventForEnrichment{
		ID:            "ev-1",
		Title:         "Friday Milonga",
		VenueName:     &venue,
		City:          "Seoul",
		CountryCode:   "KR",
		Latitude:      37.5665,
		Longitude:     126.978,
		StartDatetime: time.Date(2025, 3, 15, 21, 0, 0, 0, time.UTC),
	}
}

func TestHotelDomain(t *testing.T) {
	d := HotelDomain{Provider: model.ProviderBooking, Event: hotelEvent(), MaxHotels: 5, Links: fakeLinks{}}
	raw := `[
  {"hotel_name":"Grand Seoul","latitude":37.57,"longitude":126.98,"price_per_night_min":120,"rating":8.7,"review_count":1200,"affiliate_url":"https://www.booking.com/hotel/kr/grand-seoul.html"},
  {"hotel_name":"Hostel Myeong","affiliate_url":"/hotel/kr/hostel.html","currency":"krw"},
  {"hotel_name":"Too Good","rating":11},
  {"hotel_name":"Wrong provider","affiliate_provider":"expedia"}
]`

	recs, rejected := ParseRecords(raw, d, SourceContext{})
	require.Len(t, recs, 2)
	assert.Len(t, rejected, 2)

	assert.Equal(t, "https://www.booking.com/hotel/kr/grand-seoul.html#booking_com", recs[0].AffiliateURL)
	assert.Equal(t, model.ProviderBooking, recs[0].AffiliateProvider)
	assert.True(t, recs[0].HasCoordinates())
	require.NotNil(t, recs[0].AffiliateID)
	assert.Equal(t, "id-booking_com", *recs[0].AffiliateID)

	assert.Equal(t, "https://booking_com.example/hotel/hostel-myeong", recs[1].AffiliateURL)
	assert.Equal(t, "KRW", recs[1].Currency)
	assert.NotNil(t, recs[1].Amenities)
}

func TestHotelDomainPromptAndSystem(t *testing.T) {
	d := HotelDomain{Provider: model.ProviderAgoda, Event: hotelEvent(), MaxHotels: 3}
	assert.Contains(t, d.System(), "at most 3 objects")
	assert.Contains(t, d.System(), `"agoda"`)

	p := d.Prompt("hotel page", SourceContext{})
	assert.Contains(t, p, "this Agoda search result page")
	assert.Contains(t, p, "near: Club Sunset, Seoul, KR")
	assert.Contains(t, p, "---PAGE TEXT START---\nhotel page\n---PAGE TEXT END---")
}

func TestHotelSearchQuery(t *testing.T) {
	ev := hotelEvent()

	c := &fakeCompleter{out: "  \"Hotels near Club Sunset Seoul\"\n"}
	assert.Equal(t, "Hotels near Club Sunset Seoul", HotelSearchQuery(context.Background(), c, ev))
	assert.Contains(t, c.lastPrompt, "Venue: Club Sunset, Seoul, KR")
	assert.Empty(t, c.lastSystem)
	assert.Equal(t, int64(100), c.lastMax)

	c = &fakeCompleter{err: errors.New("timeout")}
	assert.Equal(t, "Seoul hotels", HotelSearchQuery(context.Background(), c, ev))

	c = &fakeCompleter{out: "   "}
	assert.Equal(t, "Seoul hotels", HotelSearchQuery(context.Background(), c, ev))

	long := "Hotels within walking distance of Club Sunset in central Seoul South Korea for tango dancers"
	c = &fakeCompleter{out: long}
	got := HotelSearchQuery(context.Background(), c, ev)
	assert.Equal(t, long[:60], got)
}
