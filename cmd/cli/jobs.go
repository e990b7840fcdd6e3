package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sevigo/archnet/internal/core"
)

var (
	listStatus string
	listLimit  int
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the acting user's benchmark jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()
		email, err := actingUser()
		if err != nil {
			return err
		}

		a, cleanup, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		email, err = a.Auth.NormalizeEmail(email)
		if err != nil {
			return err
		}
		filter := core.JobFilter{Status: core.JobStatus(listStatus), Limit: listLimit}
		if filter.Status != "" && !filter.Status.Valid() {
			return fmt.Errorf("unknown status %q", listStatus)
		}

		list, err := a.Store.ListJobsByUser(ctx, email, filter.Normalize())
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		if outputJSON {
			return printJSON(list)
		}
		if len(list) == 0 {
			dimColor.Println("No jobs yet. Submit one with 'archnet-cli submit quick'.")
			return nil
		}
		fmt.Println(jobsTable(list))
		return nil
	},
}

var jobsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one job and its benchmark result",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		email, err := actingUser()
		if err != nil {
			return err
		}

		a, cleanup, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		email, err = a.Auth.NormalizeEmail(email)
		if err != nil {
			return err
		}
		job, err := a.Store.GetJob(ctx, id)
		if err == nil && job.UserEmail != email {
			err = fmt.Errorf("job %d: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(job)
		}
		return printJob(a.Scorer.Title(job.Params.Dataset), job)
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	jobsListCmd.Flags().StringVarP(&listStatus, "status", "s", "", "Only show jobs in this status")
	jobsListCmd.Flags().IntVarP(&listLimit, "limit", "n", core.DefaultJobListLimit, "Maximum number of jobs")
	jobsCmd.AddCommand(jobsListCmd, jobsShowCmd)
	rootCmd.AddCommand(jobsCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func jobsTable(list []*core.Job) string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		best := "-"
		if m, ok := job.Result.Best(); ok {
			best = fmt.Sprintf("%s (%.1f%%)", m.Name, m.Accuracy*100)
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			string(job.Kind),
			job.Params.Dataset,
			statusColor(job.Status).Sprint(job.Status),
			best,
			job.CreatedAt.Local().Format(time.RFC822),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "KIND", "DATASET", "STATUS", "BEST MODEL", "CREATED").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func modelsTable(models []core.ModelResult) string {
	rows := make([][]string, 0, len(models))
	for _, m := range models {
		rows = append(rows, []string{
			m.Name,
			fmt.Sprintf("%.1f%%", m.Accuracy*100),
			fmt.Sprintf("%d ms", m.LatencyMS),
			fmt.Sprintf("%d MB", m.SizeMB),
			fmt.Sprintf("$%.2f", m.CostPerHour),
		})
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("MODEL", "ACCURACY", "LATENCY", "SIZE", "COST/HOUR").
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}

func printJob(title string, job *core.Job) error {
	fmt.Println()
	titleColor.Printf("Job #%d  %s benchmark on %s\n", job.ID, job.Kind, title)
	printStatusBadge(job.Status)
	dimColor.Printf("  submitted %s\n", job.CreatedAt.Local().Format(time.RFC822))

	switch {
	case job.Status == core.JobStatusFailed:
		fmt.Println()
		errorColor.Printf("Error: %s\n", job.Error)
		return nil
	case job.Result == nil:
		fmt.Println()
		dimColor.Println("No result yet. Check back with 'archnet-cli jobs show'.")
		return nil
	}

	fmt.Println()
	fmt.Println(modelsTable(job.Result.Models))
	if best, ok := job.Result.Best(); ok {
		boldColor.Print("Best model: ")
		successColor.Printf("%s\n", best.Name)
	}
	dimColor.Printf("Processing time: %s\n", job.Result.ProcessingTime)

	if job.Result.Recommendation == "" {
		return nil
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	out, err := renderer.Render(job.Result.Recommendation)
	if err != nil {
		return fmt.Errorf("failed to render recommendation: %w", err)
	}
	fmt.Print(out)
	return nil
}
