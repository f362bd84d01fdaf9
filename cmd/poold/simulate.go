package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"liquidityPool/internal/config"
	"liquidityPool/internal/ledgersim"
)

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSimulate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	scenario, err := ledgersim.LoadScenario(cfg.Scenario)
	if err != nil {
		return err
	}

	report, err := ledgersim.Run(context.Background(), scenario, logger, nil)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if len(report.Mismatches) > 0 {
		return fmt.Errorf("scenario %q: %d expectation(s) failed", report.Name, len(report.Mismatches))
	}
	return nil
}
