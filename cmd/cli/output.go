package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sevigo/archnet/internal/app"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/wire"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
	boldColor    = color.New(color.Bold)
)

// initApp wires the application without starting the HTTP server. The
// returned func drains queued jobs and closes the store.
func initApp(ctx context.Context) (*app.App, func(), error) {
	a, cleanup, err := wire.InitializeApp(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize app services: %w\n\nTip: check STORE_DRIVER and the DB_* settings", err)
	}
	return a, func() {
		a.Stop()
		cleanup()
	}, nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func statusColor(status core.JobStatus) *color.Color {
	switch status {
	case core.JobStatusCompleted:
		return successColor
	case core.JobStatusFailed:
		return errorColor
	case core.JobStatusProcessing:
		return warnColor
	default:
		return dimColor
	}
}

func printStatusBadge(status core.JobStatus) {
	switch status {
	case core.JobStatusCompleted:
		color.New(color.BgGreen, color.FgWhite, color.Bold).Printf(" %s ", status)
	case core.JobStatusFailed:
		color.New(color.BgRed, color.FgWhite, color.Bold).Printf(" %s ", status)
	case core.JobStatusProcessing:
		color.New(color.BgYellow, color.FgBlack).Printf(" %s ", status)
	default:
		color.New(color.BgWhite, color.FgBlack).Printf(" %s ", status)
	}
}
