package cli

import (
	"context"
	"encoding/json"
	"io"

	"daily-challenge-service/internal/config"
	"github.com/spf13/cobra"
)

// NewSweepCmd runs one sweep pass: expires overdue attempts and retries unfinished settlements.
func NewSweepCmd(configPath *string) *cobra.Command {
	var day string
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue attempts and retry pending reward settlements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd.Context(), *configPath, day, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&day, "day", "", "day to sweep as YYYY-MM-DD (default today)")
	return cmd
}

func runSweep(ctx context.Context, configPath, day string, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	service, err := newService(cfg, b, log, nil)
	if err != nil {
		return err
	}
	report, err := service.Sweep(ctx, day)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
