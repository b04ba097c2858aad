package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yurifrl/perch/pkg/export"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a window's transactions to csv, xlsx, json or yaml",
	Args:  cobra.NoArgs,
	RunE: withApp(func(cmd *cobra.Command, _ []string, a *app) error {
		ctx := cmd.Context()

		mode, err := modeFlag(cmd)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		format, err := exportFormat(cmd, output)
		if err != nil {
			return err
		}

		s, err := a.newSession(ctx, mode)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.LoadTransactions(ctx, mode, true); err != nil {
			return err
		}
		ts, err := cliFilters.Apply(s.Snapshot().Raw())
		if err != nil {
			return err
		}
		report := export.NewReport(a.providerName, mode.String(), ts, time.Now())

		var w io.Writer = cmd.OutOrStdout()
		if output != "" && output != "-" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", output, err)
			}
			defer f.Close()
			w = f
		}

		if err := export.Write(w, format, report); err != nil {
			return fmt.Errorf("failed to write %s: %w", format, err)
		}
		a.logger.Info("exported transactions", "mode", mode, "format", format, "count", len(ts), "total", report.Total.StringFixed(2), "file", output)
		return nil
	}),
}

func init() {
	exportCmd.Flags().StringP("mode", "m", "month", "Window: day, week, month or year")
	exportCmd.Flags().StringP("format", "f", "", "csv, xlsx, json or yaml (default from the output extension, else csv)")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
}

func exportFormat(cmd *cobra.Command, output string) (export.Format, error) {
	if raw, _ := cmd.Flags().GetString("format"); raw != "" {
		return export.ParseFormat(raw)
	}
	if ext := strings.TrimPrefix(filepath.Ext(output), "."); ext != "" {
		return export.ParseFormat(ext)
	}
	return export.CSV, nil
}
