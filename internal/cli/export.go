package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"survey-service/internal/app"
	"survey-service/internal/config"
)

// NewExportCmd writes the submissions of a survey as CSV to stdout.
func NewExportCmd(configPath *string) *cobra.Command {
	var slug string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export survey submissions as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), *configPath, slug, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&slug, "survey", "", "survey slug or id")
	_ = cmd.MarkFlagRequired("survey")
	return cmd
}

func runExport(ctx context.Context, configPath, slug string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Logs go to stderr so stdout carries only CSV.
	log, err := newLogger(cfg.Log.Mode)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	stores, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := stores.Close(ctx); err != nil {
			log.Warn("close backends", zap.Error(err))
		}
	}()

	service := app.NewSurveyService(stores.surveys, stores.sessions, stores.submissions, log)
	if err := service.ExportCSV(ctx, slug, w); err != nil {
		return fmt.Errorf("export %s: %w", slug, err)
	}
	return nil
}
