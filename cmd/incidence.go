package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/incidence"
	"incidencias/internal/domain/sla"
	"incidencias/internal/errs"
	"incidencias/internal/ports"
	"incidencias/internal/usecase/incidence"
)

var incidenceCmd = &cobra.Command{
	Use:   "incidence",
	Short: "Report and move post-delivery incidences through their lifecycle",
}

var incidenceCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Report a new incidence",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		housingID, _ := cmd.Flags().GetUint64("housing")
		category, _ := cmd.Flags().GetString("category")
		description, _ := cmd.Flags().GetString("description")
		warrantyClass, _ := cmd.Flags().GetString("warranty-class")

		record, err := svc.Incidences.Create(ctx, incidence.CreateInput{
			Actor:         actor,
			HousingID:     housingID,
			Category:      category,
			Description:   description,
			WarrantyClass: warrantyClass,
		})
		if err != nil {
			logging.Error(ctx, "create incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create incidence")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"created incidence: %d priority=%s basis=%s warranty=%s closure=%s\n",
			record.ID,
			record.Priority,
			record.PriorityBasis,
			formatWarranty(record),
			record.ClosureDeadline.Format("2006-01-02"),
		); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var incidenceAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Assign an incidence to a technician",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		technicianID, _ := cmd.Flags().GetUint64("technician")
		comment, err := resolveComment(cmd, false)
		if err != nil {
			return err
		}

		result, err := svc.Incidences.Assign(ctx, incidenceID, actor, technicianID, comment)
		if err != nil {
			logging.Error(ctx, "assign incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "assign incidence")
		}
		return writeTransition(cmd.OutOrStdout(), "assigned", result)
	}),
}

var incidenceStateCmd = &cobra.Command{
	Use:   "state",
	Short: "Move an incidence to en_proceso, en_espera or resuelta",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		target, _ := cmd.Flags().GetString("to")
		comment, err := resolveComment(cmd, false)
		if err != nil {
			return err
		}

		result, err := svc.Incidences.ChangeState(ctx, incidenceID, actor, domain.State(strings.TrimSpace(target)), comment)
		if err != nil {
			logging.Error(ctx, "change incidence state failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "change incidence state")
		}
		return writeTransition(cmd.OutOrStdout(), "moved", result)
	}),
}

var incidenceCloseCmd = &cobra.Command{
	Use:   "close",
	Short: "Close a resolved incidence on behalf of staff",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		conforme, _ := cmd.Flags().GetBool("conforme")
		comment, err := resolveComment(cmd, false)
		if err != nil {
			return err
		}

		result, err := svc.Incidences.Close(ctx, incidenceID, actor, conforme, comment)
		if err != nil {
			logging.Error(ctx, "close incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "close incidence")
		}
		return writeTransition(cmd.OutOrStdout(), "closed", result)
	}),
}

var incidenceValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Accept or reject a resolution as the reporting beneficiary",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		conforme, _ := cmd.Flags().GetBool("conforme")
		comment, err := resolveComment(cmd, !conforme)
		if err != nil {
			return err
		}

		result, err := svc.Incidences.ValidateResolution(ctx, incidenceID, actor, conforme, comment)
		if err != nil {
			logging.Error(ctx, "validate resolution failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "validate resolution")
		}
		return writeTransition(cmd.OutOrStdout(), "validated", result)
	}),
}

var incidenceDiscardCmd = &cobra.Command{
	Use:   "discard",
	Short: "Discard an incidence (administrators only)",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		comment, err := resolveComment(cmd, false)
		if err != nil {
			return err
		}

		result, err := svc.Incidences.Discard(ctx, incidenceID, actor, comment)
		if err != nil {
			logging.Error(ctx, "discard incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "discard incidence")
		}
		return writeTransition(cmd.OutOrStdout(), "discarded", result)
	}),
}

var incidenceCommentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Append a comment to an incidence history",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		comment, err := resolveComment(cmd, true)
		if err != nil {
			return err
		}

		event, err := svc.Incidences.Comment(ctx, incidenceID, actor, comment)
		if err != nil {
			logging.Error(ctx, "comment incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "comment incidence")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "appended comment to incidence: %d event=e%d\n", incidenceID, event.EventID); err != nil {
			return errs.Wrap(err, "write comment output")
		}
		return nil
	}),
}

var incidenceMediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Record a photo or document reference on an incidence",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")
		ref, _ := cmd.Flags().GetString("ref")

		event, err := svc.Incidences.RecordMedia(ctx, incidenceID, actor, ref)
		if err != nil {
			logging.Error(ctx, "record incidence media failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record incidence media")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "recorded media on incidence: %d event=e%d\n", incidenceID, event.EventID); err != nil {
			return errs.Wrap(err, "write media output")
		}
		return nil
	}),
}

var incidenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidences visible to the actor",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		filter := ports.IncidenceFilter{}
		state, _ := cmd.Flags().GetString("state")
		filter.State = domain.State(strings.TrimSpace(state))
		filter.HousingID, _ = cmd.Flags().GetUint64("housing")
		filter.TechnicianID, _ = cmd.Flags().GetUint64("technician")
		filter.IncludeTerminal, _ = cmd.Flags().GetBool("all")
		filter.Limit, _ = cmd.Flags().GetInt("limit")

		rows, err := svc.Incidences.SLABoard(ctx, actor, filter)
		if err != nil {
			logging.Error(ctx, "list incidences failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "list incidences")
		}

		if len(rows) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no incidences"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}
		for _, row := range rows {
			record := row.Incidence
			if _, err := fmt.Fprintf(
				cmd.OutOrStdout(),
				"%d\t%s\t%s\thousing=%d\ttechnician=%s\tsla=%s\t%s\n",
				record.ID,
				record.State,
				record.Priority,
				record.HousingID,
				formatIDPtr(record.TechnicianID),
				formatSLA(row.SLA),
				record.Category,
			); err != nil {
				return errs.Wrap(err, "write list output")
			}
		}
		return nil
	}),
}

var incidenceShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show one incidence with its history",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")

		detail, err := svc.Incidences.Get(ctx, actor, incidenceID)
		if err != nil {
			logging.Error(ctx, "show incidence failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show incidence")
		}

		out := cmd.OutOrStdout()
		record := detail.Incidence
		lines := []string{
			fmt.Sprintf("Incidence: %d", record.ID),
			fmt.Sprintf("Housing: %d", record.HousingID),
			fmt.Sprintf("Reporter: %d", record.ReporterID),
			fmt.Sprintf("Technician: %s", formatIDPtr(record.TechnicianID)),
			fmt.Sprintf("Source: %s", record.Source),
			fmt.Sprintf("Category: %s", record.Category),
			fmt.Sprintf("State: %s", record.State),
			fmt.Sprintf("Priority: %s (origin=%s final=%s basis=%s)", record.Priority, record.PriorityOrigin, record.PriorityFinal, record.PriorityBasis),
			fmt.Sprintf("Warranty: %s valid=%s source=%s", formatWarranty(record), formatBoolPtr(record.WarrantyValid), record.WarrantySource),
			fmt.Sprintf("ReportedAt: %s", record.ReportedAt.Format("2006-01-02T15:04:05Z07:00")),
			fmt.Sprintf("AttentionDeadline: %s", record.AttentionDeadline.Format("2006-01-02")),
			fmt.Sprintf("ClosureDeadline: %s", record.ClosureDeadline.Format("2006-01-02")),
			fmt.Sprintf("AssignedAt: %s", formatTimePtr(record.AssignedAt)),
			fmt.Sprintf("InProcessAt: %s", formatTimePtr(record.InProcessAt)),
			fmt.Sprintf("ResolvedAt: %s", formatTimePtr(record.ResolvedAt)),
			fmt.Sprintf("ClosedAt: %s", formatTimePtr(record.ClosedAt)),
			fmt.Sprintf("Conformity: %s at %s", formatBoolPtr(record.BeneficiaryConformity), formatTimePtr(record.ConformityAt)),
			fmt.Sprintf("SLA: %s", formatSLA(detail.SLA)),
			"",
			fmt.Sprintf("Description:\n%s", record.Description),
		}
		for _, line := range lines {
			if _, err := fmt.Fprintln(out, line); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}

		if len(detail.History) == 0 {
			if _, err := fmt.Fprintln(out, "\nHistory: none"); err != nil {
				return errs.Wrap(err, "write show output")
			}
			return nil
		}
		if _, err := fmt.Fprintln(out, "\nHistory:"); err != nil {
			return errs.Wrap(err, "write show output")
		}
		for _, event := range detail.History {
			if err := writeEvent(out, event); err != nil {
				return errs.Wrap(err, "write show output")
			}
		}
		return nil
	}),
}

var incidenceSLACmd = &cobra.Command{
	Use:   "sla",
	Short: "Evaluate the SLA status of an incidence right now",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		incidenceID, _ := cmd.Flags().GetUint64("incidence")

		status, err := svc.Incidences.SLAStatus(ctx, actor, incidenceID)
		if err != nil {
			logging.Error(ctx, "evaluate incidence sla failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "evaluate incidence sla")
		}
		if status == nil {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "incidence %d has no reported_at; sla not computable\n", incidenceID); err != nil {
				return errs.Wrap(err, "write sla output")
			}
			return nil
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"incidence %d: status=%s priority=%s elapsed=%d/%d remaining=%d percent=%.1f closure=%s\n",
			incidenceID,
			status.State,
			status.Priority,
			status.DaysElapsed,
			status.ResolutionDays,
			status.DaysRemaining,
			status.PercentElapsed,
			status.ClosureDeadline.Format("2006-01-02"),
		); err != nil {
			return errs.Wrap(err, "write sla output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(incidenceCmd)
	incidenceCmd.AddCommand(incidenceCreateCmd)
	incidenceCmd.AddCommand(incidenceAssignCmd)
	incidenceCmd.AddCommand(incidenceStateCmd)
	incidenceCmd.AddCommand(incidenceCloseCmd)
	incidenceCmd.AddCommand(incidenceValidateCmd)
	incidenceCmd.AddCommand(incidenceDiscardCmd)
	incidenceCmd.AddCommand(incidenceCommentCmd)
	incidenceCmd.AddCommand(incidenceMediaCmd)
	incidenceCmd.AddCommand(incidenceListCmd)
	incidenceCmd.AddCommand(incidenceShowCmd)
	incidenceCmd.AddCommand(incidenceSLACmd)

	incidenceCreateCmd.Flags().Uint64("housing", 0, "Housing id (beneficiaries default to their own)")
	incidenceCreateCmd.Flags().String("category", "", "Defect category, for example gas or pintura")
	incidenceCreateCmd.Flags().String("description", "", "Defect description")
	incidenceCreateCmd.Flags().String("warranty-class", "", "Optional explicit warranty class (estructura|instalaciones|terminaciones)")
	_ = incidenceCreateCmd.MarkFlagRequired("category")
	_ = incidenceCreateCmd.MarkFlagRequired("description")

	incidenceAssignCmd.Flags().Uint64("incidence", 0, "Incidence id")
	incidenceAssignCmd.Flags().Uint64("technician", 0, "Technician user id")
	addCommentFlags(incidenceAssignCmd, "Optional assignment comment")
	_ = incidenceAssignCmd.MarkFlagRequired("incidence")
	_ = incidenceAssignCmd.MarkFlagRequired("technician")

	incidenceStateCmd.Flags().Uint64("incidence", 0, "Incidence id")
	incidenceStateCmd.Flags().String("to", "", "Target state (en_proceso|en_espera|resuelta)")
	addCommentFlags(incidenceStateCmd, "Optional state change comment")
	_ = incidenceStateCmd.MarkFlagRequired("incidence")
	_ = incidenceStateCmd.MarkFlagRequired("to")

	incidenceCloseCmd.Flags().Uint64("incidence", 0, "Incidence id")
	incidenceCloseCmd.Flags().Bool("conforme", true, "Beneficiary agreed with the resolution")
	addCommentFlags(incidenceCloseCmd, "Optional closing comment")
	_ = incidenceCloseCmd.MarkFlagRequired("incidence")

	incidenceValidateCmd.Flags().Uint64("incidence", 0, "Incidence id")
	incidenceValidateCmd.Flags().Bool("conforme", true, "Accept the resolution; false reopens it")
	addCommentFlags(incidenceValidateCmd, "Reason, required when rejecting")
	_ = incidenceValidateCmd.MarkFlagRequired("incidence")

	incidenceDiscardCmd.Flags().Uint64("incidence", 0, "Incidence id")
	addCommentFlags(incidenceDiscardCmd, "Optional discard reason")
	_ = incidenceDiscardCmd.MarkFlagRequired("incidence")

	incidenceCommentCmd.Flags().Uint64("incidence", 0, "Incidence id")
	addCommentFlags(incidenceCommentCmd, "Comment content")
	_ = incidenceCommentCmd.MarkFlagRequired("incidence")

	incidenceMediaCmd.Flags().Uint64("incidence", 0, "Incidence id")
	incidenceMediaCmd.Flags().String("ref", "", "Media reference, for example a storage URL")
	_ = incidenceMediaCmd.MarkFlagRequired("incidence")
	_ = incidenceMediaCmd.MarkFlagRequired("ref")

	incidenceListCmd.Flags().String("state", "", "Filter by state")
	incidenceListCmd.Flags().Uint64("housing", 0, "Filter by housing id")
	incidenceListCmd.Flags().Uint64("technician", 0, "Filter by technician id")
	incidenceListCmd.Flags().Bool("all", false, "Include cerrada and descartada incidences")
	incidenceListCmd.Flags().Int("limit", 0, "Maximum rows (0 = no limit)")

	incidenceShowCmd.Flags().Uint64("incidence", 0, "Incidence id")
	_ = incidenceShowCmd.MarkFlagRequired("incidence")

	incidenceSLACmd.Flags().Uint64("incidence", 0, "Incidence id")
	_ = incidenceSLACmd.MarkFlagRequired("incidence")
}

func writeTransition(out io.Writer, verb string, result incidence.TransitionResult) error {
	if _, err := fmt.Fprintf(
		out,
		"%s incidence: %d state=%s event=e%d\n",
		verb,
		result.Incidence.ID,
		result.Incidence.State,
		result.Event.EventID,
	); err != nil {
		return errs.Wrap(err, "write transition output")
	}
	return nil
}

func writeEvent(out io.Writer, event domain.HistoryEvent) error {
	transition := ""
	if event.PreviousState != nil || event.NewState != nil {
		transition = fmt.Sprintf(" %s->%s", formatState(event.PreviousState), formatState(event.NewState))
	}
	diff := ""
	if len(event.Diff) > 0 {
		raw, err := json.Marshal(event.Diff)
		if err != nil {
			return errs.Wrap(err, "marshal event diff")
		}
		diff = " diff=" + string(raw)
	}
	_, err := fmt.Fprintf(
		out,
		"- e%d incidence=%d %s actor=%d(%s)%s %s%s\n",
		event.EventID,
		event.IncidenceID,
		event.Type,
		event.ActorID,
		event.ActorRole,
		transition,
		strings.TrimSpace(formatStringPtr(event.Comment)),
		diff,
	)
	return err
}

func formatState(state *domain.State) string {
	if state == nil {
		return "-"
	}
	return string(*state)
}

func formatWarranty(record domain.Incidence) string {
	if record.WarrantyClass == nil {
		return "-"
	}
	return fmt.Sprintf("%s until %s", *record.WarrantyClass, formatDatePtr(record.WarrantyExpiry))
}

func formatSLA(status *sla.Status) string {
	if status == nil {
		return "-"
	}
	return fmt.Sprintf("%s(%dd left)", status.State, status.DaysRemaining)
}
