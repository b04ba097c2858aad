package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yurifrl/perch/pkg/models"
	"github.com/yurifrl/perch/pkg/render"
	"github.com/yurifrl/perch/pkg/session"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show spending for a day, week, month or year",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()

		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		dump, _ := cmd.Flags().GetBool("dump")
		mark, _ := cmd.Flags().GetBool("mark-viewed")

		s, err := a.newSession(ctx, mode)
		if err != nil {
			return err
		}
		defer s.Close()

		loadErr := s.Initialize(ctx)
		s.Wait()

		snap, err := filterSnapshot(s.Snapshot())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if dump {
			printer := pp.New()
			printer.SetOutput(out)
			printer.SetColoringEnabled(false)
			_, _ = printer.Println(snap)
		} else if err := writeSnapshot(out, format, snap); err != nil {
			return err
		}

		if loadErr != nil {
			return loadErr
		}
		if mark && len(snap.NewIDs) > 0 {
			if err := a.tracker.MarkAsViewed(ctx, snap.NewIDs); err != nil {
				a.logger.Warn("failed to mark transactions viewed", "err", err)
			}
		}
		return nil
	}),
}

func init() {
	showCmd.Flags().StringP("mode", "m", "day", "Window: day, week, month or year")
	showCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")
	showCmd.Flags().Bool("dump", false, "Pretty-print the raw snapshot")
	showCmd.Flags().Bool("mark-viewed", true, "Mark shown transactions as viewed")
}

func modeFlag(cmd *cobra.Command) (session.Mode, error) {
	raw, _ := cmd.Flags().GetString("mode")
	return session.ParseMode(raw)
}

// filterSnapshot applies the global display filters to snap's rows.
func filterSnapshot(snap session.Snapshot) (session.Snapshot, error) {
	match, err := cliFilters.Matcher()
	if err != nil {
		return snap, err
	}
	kept := make([]models.TransactionState, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		if match(t.Transaction) {
			kept = append(kept, t)
		}
	}
	snap.Transactions = kept
	return snap, nil
}

// shownNewIDs lists the new rows that survived the display filters.
func shownNewIDs(snap session.Snapshot) []string {
	var ids []string
	for _, t := range snap.Transactions {
		if t.IsNew {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func writeSnapshot(w io.Writer, format string, snap session.Snapshot) error {
	switch format {
	case "table", "":
		_, err := fmt.Fprintln(w, render.Snapshot(snap))
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
	}
}
