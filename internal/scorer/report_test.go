package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/archnet/internal/core"
)

func TestLoadReports(t *testing.T) {
	r, err := LoadReports()
	require.NoError(t, err)

	_, err = r.Get(RecommendationReport, string(core.JobKindAdvanced))
	require.NoError(t, err)

	quick, err := r.Get(RecommendationReport, string(core.JobKindQuick))
	require.NoError(t, err)
	assert.Equal(t, "recommendation_default", quick.Name(), "quick falls back to the default variant")

	_, err = r.Get("summary", defaultVariant)
	assert.Error(t, err)
}

func TestCutLast(t *testing.T) {
	key, variant, ok := cutLast("model_card_advanced", "_")
	require.True(t, ok)
	assert.Equal(t, "model_card", key)
	assert.Equal(t, "advanced", variant)

	for _, bad := range []string{"nounderscore", "_leading", "trailing_"} {
		_, _, ok := cutLast(bad, "_")
		assert.False(t, ok, bad)
	}
}

func TestRecommendation(t *testing.T) {
	r, err := LoadReports()
	require.NoError(t, err)

	ds := Dataset{Title: "Pneumonia", Recommendation: "  Use **EfficientNet-B0**.\n"}
	models := []core.ModelResult{
		{Name: "ResNet-50", Accuracy: 0.942, LatencyMS: 45, CostPerHour: 0.12},
		{Name: "MobileNet-V3", Accuracy: 0.901, LatencyMS: 12, CostPerHour: 0.03},
		{Name: "DenseNet-121", Accuracy: 0.95, LatencyMS: 52, CostPerHour: 0.1},
	}

	quick, err := r.Recommendation(ds, core.JobKindQuick, models)
	require.NoError(t, err)
	assert.Contains(t, quick, "## Pneumonia")
	assert.Contains(t, quick, "Use **EfficientNet-B0**.")
	assert.Contains(t, quick, "**DenseNet-121** at 95.0%")
	assert.NotContains(t, quick, "| Rank |")

	advanced, err := r.Recommendation(ds, core.JobKindAdvanced, models)
	require.NoError(t, err)
	assert.Contains(t, advanced, "| 1 | DenseNet-121 | 95.0% | 52 ms | $0.10 |")
	assert.Contains(t, advanced, "| 3 | MobileNet-V3 | 90.1% | 12 ms | $0.03 |")
	assert.Contains(t, advanced, "Fastest model: **MobileNet-V3** (12 ms).")
	assert.Equal(t, "ResNet-50", models[0].Name, "input order is kept")

	empty, err := r.Recommendation(ds, core.JobKindQuick, nil)
	require.NoError(t, err)
	assert.NotContains(t, empty, "Best accuracy")
}
