package domain

import "context"

// TravelTimeProvider resolves travel times from one origin to many destinations.
type TravelTimeProvider interface {
	// TravelTimes returns exactly one record per destination, in order.
	// Destinations the service could not route get a record with nil Minutes.
	// A failure of the whole request is returned as an error wrapping ErrService.
	TravelTimes(ctx context.Context, origin LatLon, destinations []SamplePoint) ([]TravelTimeRecord, error)
}

// PostcodeLocation is the result of resolving one postcode.
type PostcodeLocation struct {
	Postcode string
	Lat      float64
	Lon      float64
	Found    bool
}

// PostcodeGeocoder looks up UK postcodes and their coordinates.
type PostcodeGeocoder interface {
	// Search returns postcodes matching a district prefix such as "LS6".
	Search(ctx context.Context, prefix string) ([]string, error)

	// BulkGeocode resolves postcodes to coordinates, one result per input.
	BulkGeocode(ctx context.Context, postcodes []string) ([]PostcodeLocation, error)
}
