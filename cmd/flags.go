package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"incidencias/internal/domain/incidence"
	"incidencias/internal/errs"
)

func actorFromFlags(cmd *cobra.Command) (incidence.Actor, error) {
	actorID, _ := cmd.Flags().GetUint64("actor-id")
	role, _ := cmd.Flags().GetString("role")
	actor := incidence.Actor{ID: actorID, Role: incidence.Role(strings.TrimSpace(role))}
	if actor.ID == 0 {
		return incidence.Actor{}, errors.New("--actor-id is required")
	}
	if !actor.Role.Valid() {
		return incidence.Actor{}, fmt.Errorf("--role %q is not one of administrador|tecnico|tecnico_campo|beneficiario", role)
	}
	return actor, nil
}

// resolveComment reads --comment or --comment-file.
func resolveComment(cmd *cobra.Command, required bool) (string, error) {
	inline, _ := cmd.Flags().GetString("comment")
	commentFile, _ := cmd.Flags().GetString("comment-file")

	if strings.TrimSpace(inline) != "" && strings.TrimSpace(commentFile) != "" {
		return "", errors.New("comment and comment-file are mutually exclusive")
	}

	if strings.TrimSpace(commentFile) != "" {
		raw, err := os.ReadFile(commentFile)
		if err != nil {
			return "", errs.Wrapf(err, "read comment file %q", commentFile)
		}
		inline = string(raw)
	}

	if required && strings.TrimSpace(inline) == "" {
		return "", errors.New("comment is required (set --comment or --comment-file)")
	}
	return inline, nil
}

func addCommentFlags(cmd *cobra.Command, usage string) {
	cmd.Flags().String("comment", "", usage)
	cmd.Flags().String("comment-file", "", "Path to a file holding the comment")
}

// optionalBool maps an unset flag to nil.
func optionalBool(cmd *cobra.Command, name string) *bool {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	value, _ := cmd.Flags().GetBool(name)
	return &value
}

func parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, errs.Validation("date %q must be YYYY-MM-DD", value)
	}
	return &parsed, nil
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Format(time.RFC3339)
}

func formatDatePtr(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Format("2006-01-02")
}

func formatIDPtr(value *uint64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *value)
}

func formatBoolPtr(value *bool) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%t", *value)
}

func formatStringPtr(value *string) string {
	if value == nil {
		return "-"
	}
	return *value
}
