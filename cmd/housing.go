package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"incidencias/internal/bootstrap"
	"incidencias/internal/bootstrap/logging"
	"incidencias/internal/errs"
	"incidencias/internal/ports"
)

var housingCmd = &cobra.Command{
	Use:   "housing",
	Short: "Seed the housing directory used for ownership and warranty dates",
}

var housingPutCmd = &cobra.Command{
	Use:   "put",
	Short: "Insert or update a housing row",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		housing := ports.Housing{}
		housing.HousingID, _ = cmd.Flags().GetUint64("housing")
		housing.ProjectID, _ = cmd.Flags().GetUint64("project")
		housing.Code, _ = cmd.Flags().GetString("code")
		if cmd.Flags().Changed("beneficiary") {
			beneficiaryID, _ := cmd.Flags().GetUint64("beneficiary")
			housing.BeneficiaryID = &beneficiaryID
		}
		delivery, _ := cmd.Flags().GetString("delivery-date")
		deliveryDate, err := parseDate(delivery)
		if err != nil {
			return err
		}
		housing.DeliveryDate = deliveryDate

		if err := svc.Housing.SaveHousing(ctx, housing); err != nil {
			logging.Error(ctx, "save housing failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "save housing")
		}
		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"saved housing: %d project=%d beneficiary=%s delivery=%s\n",
			housing.HousingID,
			housing.ProjectID,
			formatIDPtr(housing.BeneficiaryID),
			formatDatePtr(housing.DeliveryDate),
		); err != nil {
			return errs.Wrap(err, "write housing output")
		}
		return nil
	}),
}

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage field technician project scope",
}

var scopeGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant a user scope over every housing of a project",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svc services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		userID, _ := cmd.Flags().GetUint64("user")
		projectID, _ := cmd.Flags().GetUint64("project")
		if err := svc.Housing.GrantScope(ctx, userID, projectID); err != nil {
			logging.Error(ctx, "grant project scope failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "grant project scope")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "granted scope: user=%d project=%d\n", userID, projectID); err != nil {
			return errs.Wrap(err, "write scope output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(housingCmd)
	rootCmd.AddCommand(scopeCmd)
	housingCmd.AddCommand(housingPutCmd)
	scopeCmd.AddCommand(scopeGrantCmd)

	housingPutCmd.Flags().Uint64("housing", 0, "Housing id")
	housingPutCmd.Flags().Uint64("project", 0, "Project id")
	housingPutCmd.Flags().String("code", "", "Housing code")
	housingPutCmd.Flags().Uint64("beneficiary", 0, "Assigned beneficiary user id")
	housingPutCmd.Flags().String("delivery-date", "", "Delivery date YYYY-MM-DD")
	_ = housingPutCmd.MarkFlagRequired("housing")
	_ = housingPutCmd.MarkFlagRequired("project")

	scopeGrantCmd.Flags().Uint64("user", 0, "User id")
	scopeGrantCmd.Flags().Uint64("project", 0, "Project id")
	_ = scopeGrantCmd.MarkFlagRequired("user")
	_ = scopeGrantCmd.MarkFlagRequired("project")
}
