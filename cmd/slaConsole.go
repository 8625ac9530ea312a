package cmd

import (
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/errs"
	"incidencias/internal/usecase/slaconsole"
)

var consoleSLACmd = &cobra.Command{
	Use:   "sla",
	Short: "Start the live SLA board for open incidences",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		state, _ := cmd.Flags().GetString("state")
		technicianID, _ := cmd.Flags().GetUint64("technician")
		refreshInterval := app.Config.Console.RefreshInterval
		if cmd.Flags().Changed("refresh-interval") {
			refreshInterval, _ = cmd.Flags().GetDuration("refresh-interval")
		}

		model := slaconsole.NewSLAModel(ctx, svc.Incidences, slaconsole.SLAOptions{
			Actor:           actor,
			StateFilter:     state,
			TechnicianID:    technicianID,
			RefreshInterval: refreshInterval,
		})

		program := tea.NewProgram(model, tea.WithAltScreen())
		if _, err := program.Run(); err != nil {
			return errs.Wrap(err, "run sla console")
		}
		return nil
	}),
}

func init() {
	consoleCmd.AddCommand(consoleSLACmd)
	consoleSLACmd.Flags().String("state", "", "Optional state filter (abierta|en_proceso|en_espera|resuelta)")
	consoleSLACmd.Flags().Uint64("technician", 0, "Optional technician filter")
	consoleSLACmd.Flags().Duration("refresh-interval", 0, "Auto refresh interval (default from console.refresh_interval)")
}
