package domain

import (
	"fmt"
	"math"
	"strconv"
)

// Point sources recorded in the coordinates table.
const (
	SourcePostcode = "postcode"
	SourceGrid     = "grid"
	SourceCenter   = "center"
)

// LatLon is a WGS-84 coordinate pair.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the pair the way travel-time requests expect it. Values are
// always plain decimals; the API does not accept exponent notation.
func (l LatLon) String() string {
	return strconv.FormatFloat(l.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(l.Lon, 'f', -1, 64)
}

// SamplePoint is a location whose travel time from the city centre is wanted.
type SamplePoint struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Source string  `json:"source,omitempty"`
}

// NewSamplePoint validates the coordinates and builds a SamplePoint.
func NewSamplePoint(lat, lon float64, source string) (SamplePoint, error) {
	if err := validateCoord(lat, lon); err != nil {
		return SamplePoint{}, err
	}
	return SamplePoint{Lat: lat, Lon: lon, Source: source}, nil
}

// Key returns the identity of the point.
func (p SamplePoint) Key() CoordKey {
	return KeyOf(p.Lat, p.Lon)
}

// LatLon drops the source tag.
func (p SamplePoint) LatLon() LatLon {
	return LatLon{Lat: p.Lat, Lon: p.Lon}
}

// CoordKey identifies a point by its coordinates at table precision.
type CoordKey struct {
	Lat int64
	Lon int64
}

// keyScale is the table precision: six decimal places.
const keyScale = 1e6

// KeyOf rounds a coordinate pair to table precision.
func KeyOf(lat, lon float64) CoordKey {
	return CoordKey{
		Lat: int64(math.Round(lat * keyScale)),
		Lon: int64(math.Round(lon * keyScale)),
	}
}

func validateCoord(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return fmt.Errorf("coordinate (%v, %v) is not finite", lat, lon)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("longitude %v out of range", lon)
	}
	return nil
}
