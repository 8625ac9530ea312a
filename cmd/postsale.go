package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	domain "incidencias/internal/domain/postsale"
	"incidencias/internal/errs"
	"incidencias/internal/usecase/postsale"
)

var postsaleCmd = &cobra.Command{
	Use:   "postsale",
	Short: "Post-sale checklist forms and technician review",
}

var postsaleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a draft post-sale form for a housing",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		housingID, _ := cmd.Flags().GetUint64("housing")

		form, err := svc.PostSale.CreateForm(ctx, postsale.CreateFormInput{Actor: actor, HousingID: housingID})
		if err != nil {
			logging.Error(ctx, "create postsale form failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "create postsale form")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "created postsale form: %d housing=%d beneficiary=%d\n", form.ID, form.HousingID, form.BeneficiaryID); err != nil {
			return errs.Wrap(err, "write create output")
		}
		return nil
	}),
}

var postsaleItemCmd = &cobra.Command{
	Use:   "item",
	Short: "Add a checklist item to a draft form, or update one with --item",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		formID, _ := cmd.Flags().GetUint64("form")
		itemID, _ := cmd.Flags().GetUint64("item")
		input := postsale.ItemInput{
			OK:              optionalBool(cmd, "ok"),
			CreateIncidence: optionalBool(cmd, "create-incidence"),
		}
		input.Category, _ = cmd.Flags().GetString("category")
		input.Description, _ = cmd.Flags().GetString("description")
		input.Severity, _ = cmd.Flags().GetString("severity")
		input.Comment, _ = cmd.Flags().GetString("comment")

		var item domain.Item
		verb := "added"
		if itemID == 0 {
			item, err = svc.PostSale.AddItem(ctx, actor, formID, input)
		} else {
			verb = "updated"
			item, err = svc.PostSale.UpdateItem(ctx, actor, formID, itemID, input)
		}
		if err != nil {
			logging.Error(ctx, "save postsale item failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "save postsale item")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s item: %d form=%d problem=%t\n", verb, item.ID, formID, item.Problem()); err != nil {
			return errs.Wrap(err, "write item output")
		}
		return nil
	}),
}

var postsaleSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a draft form for technician review",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		formID, _ := cmd.Flags().GetUint64("form")

		form, err := svc.PostSale.SubmitForm(ctx, actor, formID)
		if err != nil {
			logging.Error(ctx, "submit postsale form failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "submit postsale form")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "submitted postsale form: %d items=%d\n", form.ID, len(form.Items)); err != nil {
			return errs.Wrap(err, "write submit output")
		}
		return nil
	}),
}

var postsaleReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a submitted form and generate incidences for problem items",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		formID, _ := cmd.Flags().GetUint64("form")
		mode, _ := cmd.Flags().GetString("mode")
		comment, err := resolveComment(cmd, false)
		if err != nil {
			return err
		}

		result, err := svc.PostSale.Review(ctx, postsale.ReviewInput{
			Actor:   actor,
			FormID:  formID,
			Mode:    domain.Mode(strings.TrimSpace(mode)),
			Comment: comment,
		})
		out := cmd.OutOrStdout()
		for _, record := range result.Incidences {
			if _, werr := fmt.Fprintf(out, "generated incidence: %d priority=%s warranty=%s %s\n", record.ID, record.Priority, formatWarranty(record), record.Category); werr != nil {
				return errs.Wrap(werr, "write review output")
			}
		}
		if err != nil {
			logging.Error(ctx, "review postsale form failed", slog.Any("err", errs.Loggable(err)), slog.Int("generated", len(result.Incidences)))
			return errs.Wrap(err, "review postsale form")
		}

		status := "reviewed"
		if result.AlreadyReviewed {
			status = "already reviewed"
		}
		if _, err := fmt.Fprintf(out, "%s postsale form: %d state=%s mode=%s batch=%s\n", status, result.Form.ID, result.Form.State, result.Form.ReviewMode, firstNonEmpty(result.BatchID, "-")); err != nil {
			return errs.Wrap(err, "write review output")
		}
		return nil
	}),
}

var postsaleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show a post-sale form with its items",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		actor, err := actorFromFlags(cmd)
		if err != nil {
			return err
		}
		formID, _ := cmd.Flags().GetUint64("form")

		form, err := svc.PostSale.GetForm(ctx, actor, formID)
		if err != nil {
			logging.Error(ctx, "show postsale form failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "show postsale form")
		}
		return writeForm(cmd.OutOrStdout(), form)
	}),
}

func init() {
	rootCmd.AddCommand(postsaleCmd)
	postsaleCmd.AddCommand(postsaleCreateCmd)
	postsaleCmd.AddCommand(postsaleItemCmd)
	postsaleCmd.AddCommand(postsaleSubmitCmd)
	postsaleCmd.AddCommand(postsaleReviewCmd)
	postsaleCmd.AddCommand(postsaleShowCmd)

	postsaleCreateCmd.Flags().Uint64("housing", 0, "Housing id (beneficiaries default to their own)")

	postsaleItemCmd.Flags().Uint64("form", 0, "Form id")
	postsaleItemCmd.Flags().Uint64("item", 0, "Item id to update; omit to add a new item")
	postsaleItemCmd.Flags().String("category", "", "Item category")
	postsaleItemCmd.Flags().String("description", "", "Item description")
	postsaleItemCmd.Flags().Bool("ok", true, "Item passed the check")
	postsaleItemCmd.Flags().String("severity", "", "Optional severity note")
	postsaleItemCmd.Flags().String("comment", "", "Beneficiary comment")
	postsaleItemCmd.Flags().Bool("create-incidence", true, "Generate an incidence when the item fails")
	_ = postsaleItemCmd.MarkFlagRequired("form")

	postsaleSubmitCmd.Flags().Uint64("form", 0, "Form id")
	_ = postsaleSubmitCmd.MarkFlagRequired("form")

	postsaleReviewCmd.Flags().Uint64("form", 0, "Form id")
	postsaleReviewCmd.Flags().String("mode", "", "Generation mode (individual|agregada); defaults to the pinned mode, else individual")
	addCommentFlags(postsaleReviewCmd, "Review comment")
	_ = postsaleReviewCmd.MarkFlagRequired("form")

	postsaleShowCmd.Flags().Uint64("form", 0, "Form id")
	_ = postsaleShowCmd.MarkFlagRequired("form")
}

func writeForm(out io.Writer, form domain.Form) error {
	lines := []string{
		fmt.Sprintf("Form: %d", form.ID),
		fmt.Sprintf("Housing: %d", form.HousingID),
		fmt.Sprintf("Beneficiary: %d", form.BeneficiaryID),
		fmt.Sprintf("State: %s", form.State),
		fmt.Sprintf("CreatedAt: %s", form.CreatedAt.Format("2006-01-02T15:04:05Z07:00")),
		fmt.Sprintf("SubmittedAt: %s", formatTimePtr(form.SubmittedAt)),
		fmt.Sprintf("ReviewedAt: %s", formatTimePtr(form.ReviewedAt)),
		fmt.Sprintf("Reviewer: %s mode=%s", formatIDPtr(form.ReviewerID), firstNonEmpty(string(form.ReviewMode), "-")),
		fmt.Sprintf("ReviewComment: %s", formatStringPtr(form.ReviewComment)),
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(out, line); err != nil {
			return errs.Wrap(err, "write form output")
		}
	}

	if len(form.Items) == 0 {
		if _, err := fmt.Fprintln(out, "\nItems: none"); err != nil {
			return errs.Wrap(err, "write form output")
		}
		return nil
	}
	if _, err := fmt.Fprintln(out, "\nItems:"); err != nil {
		return errs.Wrap(err, "write form output")
	}
	for _, item := range form.Items {
		if _, err := fmt.Fprintf(
			out,
			"- i%d [%s] ok=%s incidence=%s %s %s\n",
			item.ID,
			item.Category,
			formatBoolPtr(item.OK),
			formatIDPtr(item.IncidenceID),
			item.Description,
			item.Comment,
		); err != nil {
			return errs.Wrap(err, "write form output")
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
