package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/mocks"
)

func TestValidateSubmission(t *testing.T) {
	known := map[string]bool{"pneumonia": true, "covid_19": true}

	tooMany := map[string]any{}
	for i := range maxExtraParams + 1 {
		tooMany[string(rune('a'+i%26))+string(rune('A'+i/26))] = i
	}

	tests := []struct {
		name        string
		kind        core.JobKind
		params      core.JobParams
		wantDataset string
		wantErr     bool
	}{
		{name: "Known dataset", kind: core.JobKindQuick, params: core.JobParams{Dataset: "covid_19"}, wantDataset: "covid_19"},
		{name: "Empty dataset uses default", kind: core.JobKindAdvanced, params: core.JobParams{}, wantDataset: DefaultDataset},
		{name: "Dataset is normalized", kind: core.JobKindQuick, params: core.JobParams{Dataset: "  COVID_19 "}, wantDataset: "covid_19"},
		{name: "Unknown dataset", kind: core.JobKindQuick, params: core.JobParams{Dataset: "diabetes"}, wantErr: true},
		{name: "Unknown kind", kind: core.JobKind("premium"), params: core.JobParams{Dataset: "pneumonia"}, wantErr: true},
		{name: "Too many extra params", kind: core.JobKindQuick, params: core.JobParams{Dataset: "pneumonia", Extra: tooMany}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			scorer := mocks.NewMockScorer(ctrl)
			scorer.EXPECT().HasDataset(gomock.Any()).DoAndReturn(func(d string) bool { return known[d] }).AnyTimes()
			scorer.EXPECT().Datasets().Return([]string{"covid_19", "pneumonia"}).AnyTimes()

			got, err := ValidateSubmission(scorer, tt.kind, tt.params)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDataset, got.Dataset)
		})
	}
}

func TestValidateSubmission_CopiesExtra(t *testing.T) {
	ctrl := gomock.NewController(t)
	scorer := mocks.NewMockScorer(ctrl)
	scorer.EXPECT().HasDataset("pneumonia").Return(true)

	extra := map[string]any{"epochs": 3}
	got, err := ValidateSubmission(scorer, core.JobKindQuick, core.JobParams{Extra: extra})
	require.NoError(t, err)

	extra["epochs"] = 99
	assert.Equal(t, 3, got.Extra["epochs"])
}
