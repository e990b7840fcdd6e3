package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sevigo/archnet/internal/core"
)

var (
	submitDataset string
	submitParams  []string
)

var submitCmd = &cobra.Command{
	Use:   "submit [quick|advanced]",
	Short: "Submit a benchmark job for the acting user",
	Long: `Submit a benchmark job for the acting user.

Quick jobs are free and scored immediately. Advanced jobs cost one credit and
are scored by the background workers; the command waits for them to finish.

Examples:
  archnet-cli submit quick --user ada@example.com
  archnet-cli submit advanced -u ada@example.com --dataset brain_tumor --param epochs=20`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(core.JobKindQuick), string(core.JobKindAdvanced)},
	RunE:      runSubmit,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	submitCmd.Flags().StringVarP(&submitDataset, "dataset", "d", "", "Dataset to benchmark (default pneumonia)")
	submitCmd.Flags().StringArrayVarP(&submitParams, "param", "p", nil, "Extra parameter as key=value, repeatable")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	email, err := actingUser()
	if err != nil {
		return err
	}
	extra, err := parseParams(submitParams)
	if err != nil {
		return err
	}

	a, cleanup, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	session, err := a.Auth.Login(ctx, email)
	if err != nil {
		return err
	}
	if session.Created {
		successColor.Printf("Registered %s with %d free credits\n", session.User.Email, session.User.Credits)
	}

	kind := core.JobKind(strings.ToLower(args[0]))
	job, err := a.Dispatcher.Submit(ctx, session.User.Email, kind, core.JobParams{Dataset: submitDataset, Extra: extra})
	switch {
	case err == nil:
	case errors.Is(err, core.ErrInsufficientBalance):
		return fmt.Errorf("%w\n\nTip: buy credits with 'archnet-cli credits buy 10'", err)
	case errors.Is(err, core.ErrExecutionFailure) && job != nil:
	default:
		return err
	}

	if job.Kind == core.JobKindAdvanced && !job.Status.Terminal() {
		dimColor.Printf("Job #%d queued, waiting for a worker...\n", job.ID)
		// Stop drains the queue, so the job has run once it returns.
		a.Executor.Stop()
		if job, err = a.Store.GetJob(ctx, job.ID); err != nil {
			return err
		}
	}

	if outputJSON {
		return printJSON(job)
	}
	return printJob(a.Scorer.Title(job.Params.Dataset), job)
}

func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	extra := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", pair)
		}
		extra[key] = parseValue(strings.TrimSpace(value))
	}
	return extra, nil
}

func parseValue(value string) any {
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	if value == "true" || value == "false" {
		return value == "true"
	}
	return value
}
