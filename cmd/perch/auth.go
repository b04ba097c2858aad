package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yurifrl/perch/pkg/credentials"
	"github.com/yurifrl/perch/pkg/provider"
	"github.com/yurifrl/perch/pkg/store"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Configure provider credentials",
}

var authLunchMoneyCmd = &cobra.Command{
	Use:   "lunchmoney",
	Short: "Store a LunchMoney API key and use LunchMoney",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		key, _ := cmd.Flags().GetString("key")
		key = strings.TrimSpace(key)
		if key == "" {
			return errors.New("--key is required")
		}
		if err := a.creds.Set(credentials.LunchMoneyAPIKey, key); err != nil {
			return fmt.Errorf("failed to store api key: %w", err)
		}
		if err := a.saveProvider(cmd.Context(), provider.LunchMoney); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "LunchMoney API key saved")
		return nil
	}),
}

var authYNABCmd = &cobra.Command{
	Use:   "ynab",
	Short: "Store a YNAB personal access token and use YNAB",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()
		token, _ := cmd.Flags().GetString("token")
		budget, _ := cmd.Flags().GetString("budget")
		token = strings.TrimSpace(token)
		if token == "" {
			return errors.New("--token is required")
		}
		if err := a.creds.Set(credentials.YNABToken, token); err != nil {
			return fmt.Errorf("failed to store token: %w", err)
		}
		if budget != "" {
			if err := a.store.Set(ctx, store.KeyYNABBudgetID, budget); err != nil {
				return fmt.Errorf("failed to save budget id: %w", err)
			}
		}
		if err := a.saveProvider(ctx, provider.YNAB); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "YNAB token saved")
		return nil
	}),
}

var authPlaidCmd = &cobra.Command{
	Use:   "plaid",
	Short: "Connect a bank account through the perch proxy",
}

var authPlaidLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Create a Plaid Link token to start connecting a bank",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()
		userID, err := a.userID(ctx)
		if err != nil {
			return err
		}
		token, err := a.plaidClient().CreateLinkToken(ctx, userID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "link_token: %s\nexpires:    %s\n\n", token.Token, token.Expiration)
		fmt.Fprintln(out, "Open Plaid Link with this token, then run: perch auth plaid exchange <public_token>")
		return nil
	}),
}

var authPlaidExchangeCmd = &cobra.Command{
	Use:   "exchange <public_token>",
	Short: "Finish connecting a bank with the public token from Plaid Link",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, a *app) error {
		ctx := cmd.Context()
		if err := a.plaidClient().ExchangePublicToken(ctx, args[0]); err != nil {
			return err
		}
		if err := a.saveProvider(ctx, provider.Plaid); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Bank account connected")
		return nil
	}),
}

var authPlaidDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Forget the connected bank account",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()
		if err := a.plaidClient().Disconnect(ctx); err != nil {
			return err
		}
		if a.providerName == provider.Plaid {
			if err := a.store.Delete(ctx, store.KeyProvider); err != nil {
				a.logger.Warn("failed to clear provider choice", "err", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Bank account disconnected")
		return nil
	}),
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which providers have credentials",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		out := cmd.OutOrStdout()
		for _, name := range []string{provider.LunchMoney, provider.Plaid, provider.YNAB} {
			state := "not configured"
			if credentials.HasRequiredKeys(a.creds, name) {
				state = "configured"
			}
			marker := " "
			if name == a.providerName {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %-10s %s\n", marker, name, state)
		}
		return nil
	}),
}

func init() {
	authLunchMoneyCmd.Flags().String("key", "", "LunchMoney API key")
	authYNABCmd.Flags().String("token", "", "YNAB personal access token")
	authYNABCmd.Flags().String("budget", "", "YNAB budget id (default last-used)")

	authPlaidCmd.AddCommand(authPlaidLinkCmd)
	authPlaidCmd.AddCommand(authPlaidExchangeCmd)
	authPlaidCmd.AddCommand(authPlaidDisconnectCmd)
	authPlaidCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether a bank account is connected",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
			ok, err := a.plaidClient().IsConnected(cmd.Context())
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(cmd.OutOrStdout(), "connected")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "not connected")
			}
			return nil
		}),
	})

	authCmd.AddCommand(authLunchMoneyCmd)
	authCmd.AddCommand(authYNABCmd)
	authCmd.AddCommand(authPlaidCmd)
	authCmd.AddCommand(authStatusCmd)
}
