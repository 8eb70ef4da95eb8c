package domain

import "math"

// TravelTimeRecord holds the resolved travel time for one sample point.
// Minutes is nil when the service returned no usable duration.
type TravelTimeRecord struct {
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	Minutes *float64 `json:"travel_time_mins"`
}

// NewTravelTimeRecord builds a record with a known duration in seconds.
func NewTravelTimeRecord(p SamplePoint, seconds float64) TravelTimeRecord {
	m := seconds / 60
	return TravelTimeRecord{Lat: p.Lat, Lon: p.Lon, Minutes: &m}
}

// AbsentRecord builds a record for a point the service could not resolve.
func AbsentRecord(p SamplePoint) TravelTimeRecord {
	return TravelTimeRecord{Lat: p.Lat, Lon: p.Lon}
}

// Key returns the identity of the record's point.
func (r TravelTimeRecord) Key() CoordKey {
	return KeyOf(r.Lat, r.Lon)
}

// Valid reports whether the record carries a finite travel time.
func (r TravelTimeRecord) Valid() bool {
	return r.Minutes != nil && !math.IsNaN(*r.Minutes) && !math.IsInf(*r.Minutes, 0)
}

// ValidRecords filters out records without a travel time.
func ValidRecords(records []TravelTimeRecord) []TravelTimeRecord {
	out := make([]TravelTimeRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}
