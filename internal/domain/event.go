package domain

import "time"

// HeatmapRendered announces that a city's artifacts were regenerated.
type HeatmapRendered struct {
	RunID      string    `json:"run_id"`
	City       string    `json:"city"`
	Method     string    `json:"method"`
	Samples    int       `json:"samples"`
	Levels     []float64 `json:"levels,omitempty"`
	Files      []string  `json:"files"`
	RenderedAt time.Time `json:"rendered_at"`
}
