package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var viewedCmd = &cobra.Command{
	Use:   "viewed",
	Short: "Inspect or reset which transactions count as seen",
}

var viewedClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every viewed transaction so all show as new",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()
		if err := a.tracker.Initialize(ctx); err != nil {
			a.logger.Warn("failed to load viewed transactions", "err", err)
		}
		n := a.tracker.Len()
		if err := a.tracker.Clear(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d viewed transaction(s)\n", n)
		return nil
	}),
}

var viewedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List viewed transaction ids, oldest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		if err := a.tracker.Initialize(cmd.Context()); err != nil {
			return err
		}
		for _, id := range a.tracker.IDs() {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}),
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		out := cmd.OutOrStdout()
		if a.cfg.File != "" {
			fmt.Fprintf(out, "# %s\n", a.cfg.File)
		}
		cfg := *a.cfg
		cfg.Provider = a.providerName
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		return enc.Close()
	}),
}

func init() {
	viewedCmd.AddCommand(viewedClearCmd)
	viewedCmd.AddCommand(viewedListCmd)
	configCmd.AddCommand(configShowCmd)
}
