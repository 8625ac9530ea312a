package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/errs"
	"incidencias/internal/infrastructure/persistence/schema"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the incidence record store",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		previous, err := schema.CurrentVersion(ctx, app.DB)
		if err != nil {
			// A fresh database has no schema_meta table yet.
			previous = ""
		}

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(ctx, "init-db finished",
			slog.String("database_dsn", app.Config.Database.DSN),
			slog.String("previous_version", previous),
			slog.String("schema_version", schema.Version),
		)
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"record store ready: %s schema=%s (was %s) policy categories=%d\n",
			app.Config.Database.DSN,
			schema.Version,
			firstNonEmpty(previous, "none"),
			app.Policy.Categories(),
		); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}
