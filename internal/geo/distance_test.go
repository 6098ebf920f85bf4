package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tangocommunity/crawler/internal/model"
)

func TestDistanceMeters_SamePointIsZero(t *testing.T) {
	points := [][2]float64{
		{37.5665, 126.978},
		{-34.6037, -58.3816},
		{0, 0},
		{89.9, 179.9},
	}
	for _, p := range points {
		assert.InDelta(t, 0, DistanceMeters(p[0], p[1], p[0], p[1]), 1e-6)
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	pairs := [][4]float64{
		{37.5665, 126.978, 35.1796, 129.0756},
		{-34.6037, -58.3816, 48.8566, 2.3522},
		{0, 179.5, 0, -179.5},
	}
	for _, p := range pairs {
		ab := DistanceMeters(p[0], p[1], p[2], p[3])
		ba := DistanceMeters(p[2], p[3], p[0], p[1])
		assert.InDelta(t, ab, ba, 1e-6)
	}
}

func TestDistanceMeters_KnownDistances(t *testing.T) {
	// Seoul to Busan is roughly 325 km.
	assert.InDelta(t, 325_000, DistanceMeters(37.5665, 126.978, 35.1796, 129.0756), 5_000)
	// One degree of latitude is about 111.2 km.
	assert.InDelta(t, 111_195, DistanceMeters(0, 0, 1, 0), 10)
	// Across the antimeridian stays short.
	assert.InDelta(t, 111_195, DistanceMeters(0, 179.5, 0, -179.5), 10)
	// Antipodal points are half the circumference.
	assert.InDelta(t, 20_015_087, DistanceMeters(0, 0, 0, 180), 1)
}

func TestAnnotate(t *testing.T) {
	lat, lng := 37.5700, 126.9830
	h := model.ExtractedHotel{HotelName: "Near", Latitude: &lat, Longitude: &lng}
	Annotate(&h, 37.5665, 126.978)
	require.NotNil(t, h.DistanceFromEventMeters)
	assert.InDelta(t, 590, *h.DistanceFromEventMeters, 20)

	noCoords := model.ExtractedHotel{HotelName: "Unknown", Latitude: &lat}
	Annotate(&noCoords, 37.5665, 126.978)
	assert.Nil(t, noCoords.DistanceFromEventMeters)
}

func TestPointEWKB_RoundTrip(t *testing.T) {
	data, err := PointEWKB(37.5665, 126.978)
	require.NoError(t, err)
	// Little-endian byte order marker.
	assert.Equal(t, byte(0x01), data[0])

	lat, lng, err := DecodePoint(data)
	require.NoError(t, err)
	assert.InDelta(t, 37.5665, lat, 1e-9)
	assert.InDelta(t, 126.978, lng, 1e-9)
}

func TestDecodePoint_Garbage(t *testing.T) {
	_, _, err := DecodePoint([]byte{0x01, 0x02})
	assert.Error(t, err)
}
