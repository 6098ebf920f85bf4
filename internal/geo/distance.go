// Package geo holds great-circle distance and point encoding helpers.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/tangocommunity/crawler/internal/model"
)

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6_371_000.0

// SRID is the spatial reference of every stored point (WGS 84).
const SRID = 4326

// DistanceMeters returns the haversine distance between two coordinates.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	// Rounding can push a a hair past 1 for antipodal points.
	a = math.Min(1, a)
	return EarthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Annotate sets the hotel's rounded distance from the event. Hotels without
// coordinates are left unannotated.
func Annotate(h *model.ExtractedHotel, eventLat, eventLng float64) {
	if !h.HasCoordinates() {
		return
	}
	d := int(math.Round(DistanceMeters(eventLat, eventLng, *h.Latitude, *h.Longitude)))
	h.DistanceFromEventMeters = &d
}

// PointEWKB encodes a coordinate as a little-endian EWKB point with SRID 4326.
func PointEWKB(lat, lng float64) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode point")
	}
	return data, nil
}

// DecodePoint is the inverse of PointEWKB.
func DecodePoint(data []byte) (lat, lng float64, err error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geo: decode point")
	}
	p, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("geo: decode point: got %T", g)
	}
	return p.Y(), p.X(), nil
}
