// Package scorer simulates benchmark runs against a fixed catalog of datasets.
package scorer

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
)

const (
	accuracyJitter = 0.02
	latencyJitter  = 2
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Dataset is one catalog entry.
type Dataset struct {
	Title          string             `yaml:"title"`
	Recommendation string             `yaml:"recommendation"`
	Models         []core.ModelResult `yaml:"models"`
}

// Catalog maps dataset keys to their reference numbers.
type Catalog struct {
	Datasets map[string]Dataset `yaml:"datasets"`
}

// ParseCatalog decodes a YAML catalog and checks that every dataset has models.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse dataset catalog: %w", err)
	}
	if len(c.Datasets) == 0 {
		return nil, errors.New("dataset catalog is empty")
	}
	for name, ds := range c.Datasets {
		if len(ds.Models) == 0 {
			return nil, fmt.Errorf("dataset %q has no models", name)
		}
	}
	return &c, nil
}

// DefaultCatalog returns the catalog compiled into the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// Scorer implements core.Scorer by sleeping for a configured latency and
// returning jittered catalog numbers.
type Scorer struct {
	catalog         *Catalog
	names           []string
	reports         *Reports
	quickLatency    time.Duration
	advancedLatency time.Duration
	logger          *slog.Logger
	now             func() time.Time
	jitter          func(lo, hi float64) float64
}

var _ core.Scorer = (*Scorer)(nil)

// New builds a Scorer over the embedded catalog.
func New(cfg *config.ScorerConfig, logger *slog.Logger) (*Scorer, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewWithCatalog(catalog, cfg, logger)
}

// NewWithCatalog builds a Scorer over a caller supplied catalog.
func NewWithCatalog(catalog *Catalog, cfg *config.ScorerConfig, logger *slog.Logger) (*Scorer, error) {
	reports, err := LoadReports()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(catalog.Datasets))
	for name := range catalog.Datasets {
		names = append(names, name)
	}
	slices.Sort(names)

	return &Scorer{
		catalog:         catalog,
		names:           names,
		reports:         reports,
		quickLatency:    cfg.QuickLatency,
		advancedLatency: cfg.AdvancedLatency,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
		jitter: func(lo, hi float64) float64 {
			return lo + rand.Float64()*(hi-lo) //nolint:gosec // simulated numbers
		},
	}, nil
}

// Datasets lists the catalog keys in sorted order.
func (s *Scorer) Datasets() []string {
	return slices.Clone(s.names)
}

// HasDataset reports whether the catalog knows the dataset.
func (s *Scorer) HasDataset(dataset string) bool {
	_, ok := s.catalog.Datasets[dataset]
	return ok
}

// Title returns the human readable dataset name.
func (s *Scorer) Title(dataset string) string {
	if ds, ok := s.catalog.Datasets[dataset]; ok && ds.Title != "" {
		return ds.Title
	}
	return dataset
}

// Score waits for the kind's latency, then returns a fresh result. It gives up
// early when ctx is cancelled.
func (s *Scorer) Score(ctx context.Context, dataset string, kind core.JobKind) (*core.Result, error) {
	ds, ok := s.catalog.Datasets[dataset]
	if !ok {
		return nil, fmt.Errorf("%w: unknown dataset %q", core.ErrValidation, dataset)
	}

	latency := s.latency(kind)
	s.logger.Debug("scoring dataset", "dataset", dataset, "kind", kind, "latency", latency)

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("scoring %s interrupted: %w", dataset, ctx.Err())
		case <-timer.C:
		}
	}

	models := make([]core.ModelResult, len(ds.Models))
	for i, m := range ds.Models {
		m.Accuracy = clamp(round3(m.Accuracy+s.jitter(-accuracyJitter, accuracyJitter)), 0, 1)
		m.LatencyMS = max(1, m.LatencyMS+int(math.Round(s.jitter(-latencyJitter, latencyJitter))))
		models[i] = m
	}

	recommendation, err := s.reports.Recommendation(ds, kind, models)
	if err != nil {
		return nil, fmt.Errorf("failed to render recommendation for %s: %w", dataset, err)
	}

	return &core.Result{
		Dataset:        dataset,
		Kind:           kind,
		Models:         models,
		Recommendation: recommendation,
		IssuedAt:       s.now(),
		ProcessingTime: latency.String(),
	}, nil
}

func (s *Scorer) latency(kind core.JobKind) time.Duration {
	if kind == core.JobKindAdvanced {
		return s.advancedLatency
	}
	return s.quickLatency
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
