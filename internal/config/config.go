package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// MaxBatchSize is the Distance Matrix limit on destinations per request.
const MaxBatchSize = 25

// Config holds all pipeline and server settings, populated from environment
// variables (and a .env file when present).
type Config struct {
	DataDir     string
	OutputDir   string
	CatalogFile string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Travel-time acquisition.
	GoogleMapsAPIKey  string
	TravelMode        string
	BatchSize         int
	BatchDelay        time.Duration
	HTTPTimeout       time.Duration
	CheckpointBackend string

	// Point sampling.
	PostcodesBaseURL   string
	PostcodesCacheSize int
	PerDistrictSample  int

	// Interpolation and rendering.
	GridResolution      int
	InterpolationMethod string
	SmoothingSigma      float64
	ColorMap            string
	LogScale            bool
	ContourLevels       []float64

	// Artifact notifications; disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	// Map server. Artifacts are served from StaticDir/preprocessing, the
	// default OutputDir.
	HTTPAddr              string
	StaticDir             string
	CatalogReloadInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := envInt("BATCH_SIZE", MaxBatchSize)
	if err != nil {
		return nil, err
	}
	batchDelay, err := envDuration("BATCH_DELAY", "100ms", true)
	if err != nil {
		return nil, err
	}
	httpTimeout, err := envDuration("HTTP_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}
	reloadInterval, err := envDuration("CATALOG_RELOAD_INTERVAL", "5m", false)
	if err != nil {
		return nil, err
	}
	cacheSize, err := envInt("POSTCODES_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	perDistrict, err := envInt("PER_DISTRICT_SAMPLE", 3)
	if err != nil {
		return nil, err
	}
	resolution, err := envInt("GRID_RESOLUTION", 200)
	if err != nil {
		return nil, err
	}
	sigma, err := envFloat("SMOOTHING_SIGMA", 1)
	if err != nil {
		return nil, err
	}
	logScale, err := envBool("LOG_SCALE", false)
	if err != nil {
		return nil, err
	}
	levels, err := ParseLevels(sharedcfg.EnvOrDefault("CONTOUR_LEVELS", "15,30,45,60"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONTOUR_LEVELS: %w", err)
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DataDir:         sharedcfg.EnvOrDefault("DATA_DIR", "data"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "backend/static/preprocessing"),
		CatalogFile:     sharedcfg.EnvOrDefault("CATALOG_FILE", "data/cities.json"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		GoogleMapsAPIKey:  os.Getenv("GOOGLE_MAPS_API_KEY"),
		TravelMode:        sharedcfg.EnvOrDefault("TRAVEL_MODE", "transit"),
		BatchSize:         batchSize,
		BatchDelay:        batchDelay,
		HTTPTimeout:       httpTimeout,
		CheckpointBackend: sharedcfg.EnvOrDefault("CHECKPOINT_BACKEND", "csv"),

		PostcodesBaseURL:   sharedcfg.EnvOrDefault("POSTCODES_BASE_URL", "https://api.postcodes.io"),
		PostcodesCacheSize: cacheSize,
		PerDistrictSample:  perDistrict,

		GridResolution:      resolution,
		InterpolationMethod: sharedcfg.EnvOrDefault("INTERPOLATION_METHOD", "linear"),
		SmoothingSigma:      sigma,
		ColorMap:            sharedcfg.EnvOrDefault("COLOR_MAP", "viridis"),
		LogScale:            logScale,
		ContourLevels:       levels,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "heatmap-artifacts"),

		HTTPAddr:              sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		StaticDir:             sharedcfg.EnvOrDefault("STATIC_DIR", "backend/static"),
		CatalogReloadInterval: reloadInterval,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.BatchSize < 1 || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("BATCH_SIZE must be between 1 and %d", MaxBatchSize)
	}
	switch c.TravelMode {
	case "driving", "walking", "bicycling", "transit":
	default:
		return fmt.Errorf("invalid TRAVEL_MODE %q", c.TravelMode)
	}
	switch c.CheckpointBackend {
	case "csv", "sqlite":
	default:
		return fmt.Errorf("invalid CHECKPOINT_BACKEND %q", c.CheckpointBackend)
	}
	switch c.InterpolationMethod {
	case "linear", "cubic", "nearest":
	default:
		return fmt.Errorf("invalid INTERPOLATION_METHOD %q", c.InterpolationMethod)
	}
	if c.GridResolution < 2 {
		return errors.New("GRID_RESOLUTION must be at least 2")
	}
	if c.SmoothingSigma < 0 {
		return errors.New("SMOOTHING_SIGMA must not be negative")
	}
	if c.PostcodesCacheSize <= 0 {
		return errors.New("POSTCODES_CACHE_SIZE must be positive")
	}
	if c.PerDistrictSample <= 0 {
		return errors.New("PER_DISTRICT_SAMPLE must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// ParseLevels parses a comma-separated list of contour levels in minutes.
// An empty string yields no levels.
func ParseLevels(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	levels := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", p, err)
		}
		levels = append(levels, v)
	}
	return levels, nil
}

func envInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key, def string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
