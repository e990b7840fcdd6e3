package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from JobStatus
		to   JobStatus
		want bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusCompleted, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusPending, JobStatusPending, false},
		{JobStatusProcessing, JobStatusProcessing, false},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusCompleted, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusFailed, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusFailed, JobStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestSourceStatusesIsACopy(t *testing.T) {
	src := SourceStatuses(JobStatusCompleted)
	src[0] = JobStatusFailed
	assert.True(t, CanTransition(JobStatusPending, JobStatusCompleted))
	assert.Nil(t, SourceStatuses(JobStatusPending))
}

func TestJobKindCost(t *testing.T) {
	assert.Equal(t, 0, JobKindQuick.Cost())
	assert.Equal(t, 1, JobKindAdvanced.Cost())
	assert.False(t, JobKind("premium").Valid())
}

func TestJobFilterNormalize(t *testing.T) {
	assert.Equal(t, DefaultJobListLimit, JobFilter{}.Normalize().Limit)
	assert.Equal(t, MaxJobListLimit, JobFilter{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 7, JobFilter{Limit: 7}.Normalize().Limit)
}

func TestFindCreditPackage(t *testing.T) {
	p, err := FindCreditPackage(DefaultCreditPackages, 25)
	assert.NoError(t, err)
	assert.Equal(t, int64(990), p.PriceCents)

	_, err = FindCreditPackage(DefaultCreditPackages, 7)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResultBest(t *testing.T) {
	r := &Result{Models: []ModelResult{
		{Name: "a", Accuracy: 0.81},
		{Name: "b", Accuracy: 0.93},
		{Name: "c", Accuracy: 0.88},
	}}
	best, ok := r.Best()
	assert.True(t, ok)
	assert.Equal(t, "b", best.Name)

	_, ok = (&Result{}).Best()
	assert.False(t, ok)
}
