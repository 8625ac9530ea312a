package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/errs"
	"incidencias/internal/usecase/incidence"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Read the append-only incidence history",
}

var historyFeedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Print history events after a cursor, oldest first",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		after, _ := cmd.Flags().GetUint64("after")
		limit, _ := cmd.Flags().GetInt("limit")
		consumer, _ := cmd.Flags().GetString("consumer")

		var (
			result incidence.FeedResult
			err    error
		)
		if strings.TrimSpace(consumer) != "" {
			if cmd.Flags().Changed("after") {
				return fmt.Errorf("--after and --consumer are mutually exclusive")
			}
			result, err = svc.Incidences.FollowFeed(ctx, consumer, limit)
		} else {
			result, err = svc.Incidences.HistoryFeed(ctx, after, limit)
		}
		if err != nil {
			logging.Error(ctx, "read history feed failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "read history feed")
		}

		out := cmd.OutOrStdout()
		for _, event := range result.Events {
			if err := writeEvent(out, event); err != nil {
				return errs.Wrap(err, "write feed output")
			}
		}
		if _, err := fmt.Fprintf(out, "cursor: %d events=%d\n", result.CursorAfter, len(result.Events)); err != nil {
			return errs.Wrap(err, "write feed output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyFeedCmd)

	historyFeedCmd.Flags().Uint64("after", 0, "Return events with event_id greater than this cursor")
	historyFeedCmd.Flags().Int("limit", 100, "Maximum events (capped at 1000)")
	historyFeedCmd.Flags().String("consumer", "", "Named consumer whose cursor is stored and advanced")
}
