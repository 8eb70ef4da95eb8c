// Package sampling chooses the points whose travel times are fetched: postcodes
// sampled per district, plus grid, centre and jittered points that fill the
// city's bounding box.
package sampling

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
)

// bulkLimit is the most postcodes resolved per geocoding request.
const bulkLimit = 100

// AugmentOptions controls the synthetic points added around the geocoded ones.
type AugmentOptions struct {
	NoiseMode  string
	NoiseLevel float64
}

// DefaultAugmentOptions returns uniform noise of 0.05 degrees.
func DefaultAugmentOptions() AugmentOptions {
	return AugmentOptions{NoiseMode: NoiseUniform, NoiseLevel: 0.05}
}

// Augment adds synthetic points in a fixed order: a dense 20x20 grid (90%),
// ten centre copies, noise over everything so far, one exact centre, and a
// full 10x10 grid over the jittered bounding box.
func Augment(points []domain.SamplePoint, center domain.LatLon, opts AugmentOptions, rng *rand.Rand) ([]domain.SamplePoint, error) {
	out := append([]domain.SamplePoint(nil), points...)
	out = append(out, GridPoints(out, 20, 0.9)...)
	out = append(out, CenterPoints(center, 10)...)
	out, err := AddNoise(out, center, opts.NoiseMode, opts.NoiseLevel, rng)
	if err != nil {
		return nil, err
	}
	out = append(out, CenterPoints(center, 1)...)
	out = append(out, GridPoints(out, 10, 1.0)...)
	return out, nil
}

// Sampler geocodes a random subset of each district's postcodes.
type Sampler struct {
	geocoder    domain.PostcodeGeocoder
	logger      *slog.Logger
	perDistrict int
	rng         *rand.Rand
}

// NewSampler creates a Sampler picking up to perDistrict postcodes per district.
func NewSampler(geocoder domain.PostcodeGeocoder, logger *slog.Logger, perDistrict int, rng *rand.Rand) *Sampler {
	return &Sampler{
		geocoder:    geocoder,
		logger:      logger,
		perDistrict: perDistrict,
		rng:         rng,
	}
}

// Sample returns the geocoded postcode points for the districts. Districts or
// chunks whose lookups fail are logged and skipped; if nothing resolves the
// result is ErrMissingInput.
func (s *Sampler) Sample(ctx context.Context, districts []string) ([]domain.SamplePoint, error) {
	var picked []string
	for _, d := range districts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sample postcodes: %w", err)
		}
		all, err := s.geocoder.Search(ctx, d)
		if err != nil {
			s.logger.Warn("postcode search failed, skipping district", "district", d, "error", err)
			continue
		}
		chosen := s.pick(all)
		s.logger.Debug("postcodes sampled", "district", d, "available", len(all), "chosen", len(chosen))
		picked = append(picked, chosen...)
	}

	var points []domain.SamplePoint
	for start := 0; start < len(picked); start += bulkLimit {
		chunk := picked[start:min(start+bulkLimit, len(picked))]
		locs, err := s.geocoder.BulkGeocode(ctx, chunk)
		if err != nil {
			s.logger.Warn("bulk geocode failed, skipping chunk", "postcodes", len(chunk), "error", err)
			continue
		}
		for _, loc := range locs {
			if !loc.Found {
				continue
			}
			p, err := domain.NewSamplePoint(loc.Lat, loc.Lon, domain.SourcePostcode)
			if err != nil {
				s.logger.Warn("geocoded postcode out of range", "postcode", loc.Postcode, "error", err)
				continue
			}
			points = append(points, p)
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("sample postcodes: %w: no valid geocoded data for districts %v", domain.ErrMissingInput, districts)
	}
	s.logger.Info("postcodes geocoded", "requested", len(picked), "resolved", len(points))
	return points, nil
}

func (s *Sampler) pick(all []string) []string {
	n := min(s.perDistrict, len(all))
	out := make([]string, n)
	for i, j := range s.rng.Perm(len(all))[:n] {
		out[i] = all[j]
	}
	return out
}
