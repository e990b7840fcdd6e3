package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Check balances and buy credits",
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show the acting user's credit balance",
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
		user, err := a.Store.GetUser(ctx, email)
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(user)
		}
		boldColor.Printf("%s: ", user.Email)
		successColor.Printf("%d credits\n", user.Credits)
		return nil
	},
}

var creditsPackagesCmd = &cobra.Command{
	Use:   "packages",
	Short: "List the credit packages for sale",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		a, cleanup, err := initApp(context.Background())
		if err != nil {
			return err
		}
		defer cleanup()

		packages := a.Billing.Packages()
		if outputJSON {
			return printJSON(packages)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "CREDITS\tPRICE\tLABEL")
		for _, p := range packages {
			fmt.Fprintf(w, "%d\t%d.%02d %s\t%s\n", p.Credits, p.PriceCents/100, p.PriceCents%100, a.Cfg.Billing.Currency, p.Label)
		}
		return w.Flush()
	},
}

var creditsBuyCmd = &cobra.Command{
	Use:   "buy [credits]",
	Short: "Open a checkout for a credit package",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		credits, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid credit amount %q", args[0])
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
		checkout, err := a.Billing.CreateCheckout(ctx, email, credits)
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(checkout)
		}
		titleColor.Printf("Checkout %s\n", checkout.Reference)
		if checkout.CheckoutURL != "" {
			fmt.Printf("Pay at: %s\n", checkout.CheckoutURL)
		}
		dimColor.Printf("Confirm without a payment provider: archnet-cli credits complete %s\n", checkout.Reference)
		return nil
	},
}

var creditsCompleteCmd = &cobra.Command{
	Use:   "complete [reference]",
	Short: "Mark a checkout as paid and grant its credits",
	Long: `Mark a checkout as paid and grant its credits. Completing the same
checkout twice grants nothing the second time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		a, cleanup, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		checkout, applied, err := a.Billing.OnPaymentSuccess(ctx, args[0])
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(map[string]any{"checkout": checkout, "applied": applied})
		}
		if !applied {
			warnColor.Printf("Checkout %s was already applied, nothing granted\n", checkout.Reference)
			return nil
		}
		balance, err := a.Store.GetBalance(ctx, checkout.UserEmail)
		if err != nil {
			return err
		}
		successColor.Printf("Granted %d credits to %s, balance is now %d\n", checkout.Credits, checkout.UserEmail, balance)
		return nil
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant [credits]",
	Short: "Add credits to the acting user without a payment",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()
		amount, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid credit amount %q", args[0])
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
		balance, err := a.Store.Credit(ctx, email, amount)
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(map[string]any{"email": email, "credits": balance})
		}
		successColor.Printf("Granted %d credits to %s, balance is now %d\n", amount, email, balance)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra command registration
	creditsCmd.AddCommand(creditsBalanceCmd, creditsPackagesCmd, creditsBuyCmd, creditsCompleteCmd, creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}
