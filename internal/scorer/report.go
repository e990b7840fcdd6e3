package scorer

import (
	"bytes"
	"cmp"
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
	"text/template"

	"github.com/sevigo/archnet/internal/core"
)

//go:embed reports/*.md.tmpl
var reportFiles embed.FS

// ReportKey names a report template. Each key has one variant per job kind
// plus a "default" fallback.
type ReportKey string

const (
	RecommendationReport ReportKey = "recommendation"

	defaultVariant = "default"
)

// reportData is what report templates see.
type reportData struct {
	Title   string
	Advice  string
	Kind    core.JobKind
	Models  []core.ModelResult
	Ranked  []core.ModelResult
	Best    *core.ModelResult
	Fastest *core.ModelResult
}

// Reports renders the markdown stored as a result's recommendation.
type Reports struct {
	templates map[ReportKey]map[string]*template.Template
}

var reportFuncs = template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v*100) },
	"inc":     func(i int) int { return i + 1 },
}

// LoadReports parses the embedded report templates. File names follow
// "<key>_<variant>.md.tmpl".
func LoadReports() (*Reports, error) {
	r := &Reports{templates: make(map[ReportKey]map[string]*template.Template)}

	files, err := reportFiles.ReadDir("reports")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded reports directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}

		fileName := file.Name()
		baseName := strings.TrimSuffix(fileName, ".md.tmpl")
		key, variant, ok := cutLast(baseName, "_")
		if !ok {
			return nil, fmt.Errorf("invalid report filename format: %s (expected 'key_variant.md.tmpl')", fileName)
		}

		content, err := reportFiles.ReadFile(path.Join("reports", fileName))
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded report %s: %w", fileName, err)
		}

		if err := r.register(ReportKey(key), variant, string(content)); err != nil {
			return nil, fmt.Errorf("failed to register report from file %s: %w", fileName, err)
		}
	}

	return r, nil
}

func cutLast(s, sep string) (before, after string, ok bool) {
	i := strings.LastIndex(s, sep)
	if i <= 0 || i == len(s)-len(sep) {
		return "", "", false
	}
	return s[:i], s[i+len(sep):], true
}

func (r *Reports) register(key ReportKey, variant, content string) error {
	tmpl, err := template.New(string(key) + "_" + variant).Funcs(reportFuncs).Parse(content)
	if err != nil {
		return fmt.Errorf("could not parse template: %w", err)
	}

	if _, ok := r.templates[key]; !ok {
		r.templates[key] = make(map[string]*template.Template)
	}
	r.templates[key][variant] = tmpl
	return nil
}

// Get returns the template for key and variant, falling back to the default
// variant.
func (r *Reports) Get(key ReportKey, variant string) (*template.Template, error) {
	variants, ok := r.templates[key]
	if !ok {
		return nil, fmt.Errorf("no reports found for key '%s'", key)
	}
	if tmpl, ok := variants[variant]; ok {
		return tmpl, nil
	}
	if tmpl, ok := variants[defaultVariant]; ok {
		return tmpl, nil
	}
	return nil, fmt.Errorf("no report found for key '%s' and variant '%s', and no default was available", key, variant)
}

// Recommendation renders the recommendation for a freshly scored run.
func (r *Reports) Recommendation(ds Dataset, kind core.JobKind, models []core.ModelResult) (string, error) {
	tmpl, err := r.Get(RecommendationReport, string(kind))
	if err != nil {
		return "", err
	}

	data := reportData{
		Title:  ds.Title,
		Advice: strings.TrimSpace(ds.Recommendation),
		Kind:   kind,
		Models: models,
		Ranked: slices.Clone(models),
	}
	slices.SortStableFunc(data.Ranked, func(a, b core.ModelResult) int {
		return cmp.Compare(b.Accuracy, a.Accuracy)
	})
	if len(models) > 0 {
		data.Best = &data.Ranked[0]
		fastest := slices.MinFunc(models, func(a, b core.ModelResult) int {
			return cmp.Compare(a.LatencyMS, b.LatencyMS)
		})
		data.Fastest = &fastest
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
