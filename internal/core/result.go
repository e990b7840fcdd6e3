package core

import "time"

// ModelResult is the measured performance of a single candidate model.
type ModelResult struct {
	Name        string  `json:"name" yaml:"name"`
	Accuracy    float64 `json:"accuracy" yaml:"accuracy"`
	LatencyMS   int     `json:"latency_ms" yaml:"latency_ms"`
	SizeMB      int     `json:"size_mb" yaml:"size_mb"`
	CostPerHour float64 `json:"cost_per_hour" yaml:"cost_per_hour"`
}

// Result is the payload stored on a completed job.
type Result struct {
	Dataset        string        `json:"dataset"`
	Kind           JobKind       `json:"kind"`
	Models         []ModelResult `json:"models"`
	Recommendation string        `json:"recommendation"`
	IssuedAt       time.Time     `json:"issued_at"`
	ProcessingTime string        `json:"processing_time"`
}

// Best returns the model with the highest accuracy, or false if there are none.
func (r *Result) Best() (ModelResult, bool) {
	if r == nil || len(r.Models) == 0 {
		return ModelResult{}, false
	}
	best := r.Models[0]
	for _, m := range r.Models[1:] {
		if m.Accuracy > best.Accuracy {
			best = m
		}
	}
	return best, true
}
