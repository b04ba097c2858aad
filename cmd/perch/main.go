package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/yurifrl/perch/pkg/export"
)

var (
	cliFilters export.Filters
	cfgFile    string
)

var rootCmd = &cobra.Command{
	Use:           "perch",
	Short:         "Glanceable spending from LunchMoney, your bank or YNAB",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Show help when no subcommand is provided
		return cmd.Help()
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default is config.yaml)")
	rootCmd.PersistentFlags().StringP("provider", "p", "", "Data provider: lunchmoney, plaid or ynab")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", "", "Where state lives: file, redis or memory")
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address when --store=redis")
	rootCmd.PersistentFlags().String("backend-url", "", "Bank proxy base URL")
	rootCmd.PersistentFlags().Duration("http-timeout", 0, "Per-request timeout")

	// Filter flags (global)
	rootCmd.PersistentFlags().StringVar(&cliFilters.StartDate, "start", "", "Start date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().StringVar(&cliFilters.EndDate, "end", "", "End date (YYYY-MM-DD)")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.MinAmount, "min", 0, "Minimum amount")
	rootCmd.PersistentFlags().Float64Var(&cliFilters.MaxAmount, "max", 0, "Maximum amount")
	rootCmd.PersistentFlags().StringVar(&cliFilters.Payee, "payee", "", "Filter by payee (case insensitive)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(viewedCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
