package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

var sweepJSON bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Однократно сверить все приглашения с identity в Keycloak",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := buildApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.pool.Close()

		report, err := a.sweep.RunSweep(cmd.Context())
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}

		logger.Info("Sweep завершён",
			slog.String("run_id", report.RunID),
			slog.Int("checked", report.Checked),
			slog.Int("failed", report.Failed),
		)
		return printReport(cmd, report)
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepJSON, "json", false, "вывести отчёт в JSON")
}

// printReport печатает отчёт sweep в stdout команды.
func printReport(cmd *cobra.Command, r *model.SweepReport) error {
	out := cmd.OutOrStdout()
	if sweepJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	for _, it := range r.Items {
		line := fmt.Sprintf("%-10s %s", it.Outcome, it.Email)
		if it.IdentityID != "" {
			line += " → " + it.IdentityID
		}
		if it.Error != "" {
			line += " (" + it.Error + ")"
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintf(out, "checked=%d applied=%d pending=%d failed=%d ambiguous=%d skipped=%d\n",
		r.Checked, r.Applied, r.Pending, r.Failed, r.Ambiguous, r.Skipped)
	return nil
}
