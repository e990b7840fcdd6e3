package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the datasets jobs can benchmark",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, cleanup, err := initApp(context.Background())
		if err != nil {
			return err
		}
		defer cleanup()

		names := a.Scorer.Datasets()
		if outputJSON {
			return printJSON(names)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "DATASET\tTITLE")
		for _, name := range names {
			fmt.Fprintf(w, "%s\t%s\n", name, a.Scorer.Title(name))
		}
		return w.Flush()
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Register the acting user if needed and print an API token",
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

		session, err := a.Auth.Login(ctx, email)
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(session)
		}
		if session.Created {
			successColor.Printf("Registered %s with %d free credits\n", session.User.Email, session.User.Credits)
		} else {
			fmt.Printf("%s has %d credits\n", session.User.Email, session.User.Credits)
		}
		dimColor.Printf("Token (expires %s):\n", session.ExpiresAt.Local().Format("2006-01-02 15:04"))
		fmt.Println(session.Token)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(datasetsCmd, loginCmd)
}
