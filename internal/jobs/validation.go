package jobs

import (
	"fmt"
	"maps"
	"strings"

	"github.com/sevigo/archnet/internal/core"
)

// DefaultDataset is substituted when a submission leaves the dataset empty.
const DefaultDataset = "pneumonia"

// maxExtraParams bounds the free-form settings stored with a job.
const maxExtraParams = 32

// ValidateSubmission checks a submission against the scorer catalog and
// returns the params that will be stored. Unknown datasets are rejected.
func ValidateSubmission(scorer core.Scorer, kind core.JobKind, params core.JobParams) (core.JobParams, error) {
	if !kind.Valid() {
		return core.JobParams{}, fmt.Errorf("%w: unknown job kind %q", core.ErrValidation, kind)
	}

	dataset := strings.TrimSpace(strings.ToLower(params.Dataset))
	if dataset == "" {
		dataset = DefaultDataset
	}
	if !scorer.HasDataset(dataset) {
		return core.JobParams{}, fmt.Errorf("%w: unknown dataset %q (available: %s)",
			core.ErrValidation, params.Dataset, strings.Join(scorer.Datasets(), ", "))
	}

	if len(params.Extra) > maxExtraParams {
		return core.JobParams{}, fmt.Errorf("%w: at most %d extra params are allowed", core.ErrValidation, maxExtraParams)
	}

	return core.JobParams{Dataset: dataset, Extra: maps.Clone(params.Extra)}, nil
}
