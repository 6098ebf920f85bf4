package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatetime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2025-03-15T21:00:00+09:00", time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)},
		{"2025-03-15T21:00:00", time.Date(2025, 3, 15, 21, 0, 0, 0, time.UTC)},
		{"2025-03-15T21:00", time.Date(2025, 3, 15, 21, 0, 0, 0, time.UTC)},
		{"2025-03-15", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
		{" 2025-03-15 21:30 ", time.Date(2025, 3, 15, 21, 30, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDatetime(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	_, err := ParseDatetime("next friday")
	assert.Error(t, err)
}

func TestExtractedEventTimes(t *testing.T) {
	t.Parallel()

	end := "2025-03-16"
	ev := ExtractedEvent{Title: "Friday Milonga", StartDatetime: "2025-03-15T21:00:00", EndDatetime: &end}

	start, err := ev.StartTime()
	require.NoError(t, err)
	assert.Equal(t, 15, start.Day())

	got, err := ev.EndTime()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 16, got.Day())

	ev.EndDatetime = nil
	got, err = ev.EndTime()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordInterface(t *testing.T) {
	t.Parallel()

	records := []Record{
		ExtractedEvent{Title: "Milonga", Confidence: 0.8},
		ExtractedProduct{Title: "Shoes", Confidence: 0.7},
		ExtractedHotel{HotelName: "Hotel", Confidence: 0.6},
	}
	assert.Equal(t, "Milonga", records[0].Label())
	assert.InDelta(t, 0.7, records[1].Score(), 1e-9)
	assert.Equal(t, "Hotel", records[2].Label())
}

func TestProductExpiryTime(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ExtractedProduct{}.ExpiryTime())

	bad := "soon"
	assert.Nil(t, ExtractedProduct{ExpiresAt: &bad}.ExpiryTime())

	ok := "2025-04-01T00:00:00Z"
	got := ExtractedProduct{ExpiresAt: &ok}.ExpiryTime()
	require.NotNil(t, got)
	assert.Equal(t, time.April, got.Month())
}

func TestHotelHasCoordinates(t *testing.T) {
	t.Parallel()

	lat, lng := 37.5, 127.0
	assert.True(t, ExtractedHotel{Latitude: &lat, Longitude: &lng}.HasCoordinates())
	assert.False(t, ExtractedHotel{Latitude: &lat}.HasCoordinates())
}
