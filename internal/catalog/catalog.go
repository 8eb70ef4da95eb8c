// Package catalog loads the list of cities the pipeline and map server know about.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/commute-heatmap/internal/domain"
	"github.com/go-playground/validator/v10"
)

// ErrUnknownCity is returned by Find for a name not in the catalog.
var ErrUnknownCity = errors.New("unknown city")

var validate = validator.New()

// City is one catalog entry. Center is [lat, lon]. Either Districts or
// DataFile must be given.
type City struct {
	Name      string    `json:"name" validate:"required"`
	Center    []float64 `json:"center" validate:"len=2"`
	Districts []string  `json:"districts,omitempty" validate:"required_without=DataFile,dive,required"`
	DataFile  string    `json:"data_file,omitempty" validate:"required_without=Districts"`
}

// Origin returns the city centre.
func (c City) Origin() domain.LatLon {
	return domain.LatLon{Lat: c.Center[0], Lon: c.Center[1]}
}

// Slug is the lower-case name used in data and artifact file names.
func (c City) Slug() string {
	return strings.ToLower(strings.TrimSpace(c.Name))
}

func (c City) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := domain.NewSamplePoint(c.Center[0], c.Center[1], domain.SourceCenter); err != nil {
		return fmt.Errorf("center: %w", err)
	}
	return nil
}

// Catalog is a validated, immutable set of cities.
type Catalog struct {
	cities []City
	bySlug map[string]int
}

// New validates cities and builds a Catalog. Names must be unique ignoring case.
func New(cities []City) (*Catalog, error) {
	c := &Catalog{
		cities: make([]City, 0, len(cities)),
		bySlug: make(map[string]int, len(cities)),
	}
	for i, city := range cities {
		if err := city.validate(); err != nil {
			return nil, fmt.Errorf("city %d (%q): %w", i, city.Name, err)
		}
		if _, dup := c.bySlug[city.Slug()]; dup {
			return nil, fmt.Errorf("city %d: duplicate name %q", i, city.Name)
		}
		c.bySlug[city.Slug()] = len(c.cities)
		c.cities = append(c.cities, city)
	}
	return c, nil
}

// Load reads a JSON array of cities from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w: %w", path, domain.ErrMissingInput, err)
	}
	var cities []City
	if err := json.Unmarshal(data, &cities); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w: %w", path, domain.ErrMissingInput, err)
	}
	c, err := New(cities)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w: %w", path, domain.ErrMissingInput, err)
	}
	return c, nil
}

// Find looks a city up by name, ignoring case.
func (c *Catalog) Find(name string) (City, error) {
	i, ok := c.bySlug[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return City{}, fmt.Errorf("%w: %q", ErrUnknownCity, name)
	}
	return c.cities[i], nil
}

// Names returns the city names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.cities))
	for i, city := range c.cities {
		names[i] = city.Name
	}
	sort.Strings(names)
	return names
}

// Len returns the number of cities.
func (c *Catalog) Len() int { return len(c.cities) }
