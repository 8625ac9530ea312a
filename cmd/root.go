package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/errs"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "incidencias",
	Short:        "Post-delivery housing incidence lifecycle and SLA engine",
	Long:         "Incidence lifecycle, warranty and SLA CLI powered by Cobra + Viper + GORM(SQLite no-cgo).",
	SilenceUsage: true,
}

// Execute runs the CLI. Commands that open the record store swap in the configured logger.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := logging.New(rootCmd.ErrOrStderr(), "info", "text")
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "incidencias"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path")
	rootCmd.PersistentFlags().Uint64("actor-id", 0, "Acting user id")
	rootCmd.PersistentFlags().String("role", "", "Acting user role (administrador|tecnico|tecnico_campo|beneficiario)")
}
