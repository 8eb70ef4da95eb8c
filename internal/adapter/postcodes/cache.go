package postcodes

import (
	"context"
	"errors"

	"github.com/bluele/gcache"
	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/couchcryptid/commute-heatmap/internal/observability"
)

// CachedGeocoder wraps a PostcodeGeocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.PostcodeGeocoder
	cache   gcache.Cache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.PostcodeGeocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   gcache.New(maxEntries).LRU().Build(),
		metrics: metrics,
	}
}

// Search returns cached district results when present. Empty results are not cached
// so a transient miss can be retried.
func (c *CachedGeocoder) Search(ctx context.Context, district string) ([]string, error) {
	key := "search:" + district
	if v, ok := c.get(key); ok {
		return v.([]string), nil
	}
	result, err := c.inner.Search(ctx, district)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		_ = c.cache.Set(key, result)
	}
	return result, nil
}

// BulkGeocode serves cached postcodes and forwards only the misses, preserving input order.
func (c *CachedGeocoder) BulkGeocode(ctx context.Context, postcodes []string) ([]domain.PostcodeLocation, error) {
	out := make([]domain.PostcodeLocation, len(postcodes))
	var misses []string
	missIdx := make(map[string][]int)
	for i, pc := range postcodes {
		if v, ok := c.get("bulk:" + pc); ok {
			out[i] = v.(domain.PostcodeLocation)
			continue
		}
		if _, seen := missIdx[pc]; !seen {
			misses = append(misses, pc)
		}
		missIdx[pc] = append(missIdx[pc], i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	resolved, err := c.inner.BulkGeocode(ctx, misses)
	if err != nil {
		return nil, err
	}
	for _, loc := range resolved {
		for _, i := range missIdx[loc.Postcode] {
			out[i] = loc
		}
		delete(missIdx, loc.Postcode)
		if loc.Found {
			_ = c.cache.Set("bulk:"+loc.Postcode, loc)
		}
	}
	// Postcodes the service did not echo back stay unresolved.
	for pc, idxs := range missIdx {
		for _, i := range idxs {
			out[i] = domain.PostcodeLocation{Postcode: pc}
		}
	}
	return out, nil
}

func (c *CachedGeocoder) get(key string) (any, bool) {
	v, err := c.cache.Get(key)
	if errors.Is(err, gcache.KeyNotFoundError) {
		c.metrics.GeocodeCache.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		return nil, false
	}
	c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
	return v, true
}
