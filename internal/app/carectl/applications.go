package carectl

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Apurer/temporary-care-api/internal/domains/boarding/application/types"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/domain"
	"github.com/Apurer/temporary-care-api/internal/domains/boarding/ports"
)

const dateLayout = "2006-01-02"

func newApplicationsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "applications",
		Aliases: []string{"apps"},
		Short:   "Inspect boarding applications",
	}
	cmd.AddCommand(newApplicationsListCommand(ctx))
	cmd.AddCommand(newApplicationsShowCommand(ctx))
	return cmd
}

func newApplicationsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]domain.Status, 0, len(statusFlags))
			for _, raw := range statusFlags {
				status, err := domain.ParseStatus(strings.TrimSpace(raw))
				if err != nil {
					return err
				}
				statuses = append(statuses, status)
			}
			return ctx.withBackend(cmd.Context(), func(backend *Backend) error {
				apps, err := backend.Repository.List(cmd.Context(), statuses)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), entities(apps))
				}
				printApplications(cmd.OutOrStdout(), apps)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&statusFlags, "status", nil, "Only show applications in these statuses")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func newApplicationsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one application with its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withBackend(cmd.Context(), func(backend *Backend) error {
				current, err := backend.Repository.GetByID(cmd.Context(), strings.TrimSpace(args[0]))
				if errors.Is(err, ports.ErrNotFound) {
					return fmt.Errorf("application %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), current.Entity)
				}
				printApplication(cmd.OutOrStdout(), current)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of tables")
	return cmd
}

func printApplications(out io.Writer, apps []*types.ApplicationProjection) {
	if len(apps) == 0 {
		fmt.Fprintln(out, "No applications")
		return
	}
	rows := make([][]string, 0, len(apps))
	for _, current := range apps {
		app := current.Entity
		rows = append(rows, []string{
			app.Number,
			app.ID,
			app.OwnerID,
			string(app.Status),
			app.StartDate.Format(dateLayout),
			app.EndDate.Format(dateLayout),
			strconv.Itoa(app.NumberOfDays),
			total(app),
		})
	}
	headers := []string{"Number", "ID", "Owner", "Status", "Start", "End", "Days", "Total"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func printApplication(out io.Writer, current *types.ApplicationProjection) {
	app := current.Entity
	fields := [][]string{
		{"ID", app.ID},
		{"Number", app.Number},
		{"Owner", app.OwnerID},
		{"Status", string(app.Status)},
		{"Stay", fmt.Sprintf("%s to %s (%d days)", app.StartDate.Format(dateLayout), app.EndDate.Format(dateLayout), app.NumberOfDays)},
		{"Pets", strconv.Itoa(len(app.Pets))},
		{"Total", total(app)},
		{"Advance", installment(app.Payments.Advance)},
		{"Final", installment(app.Payments.Final)},
		{"Version", strconv.FormatInt(current.Metadata.Version, 10)},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, fields, nil))

	if len(app.History) == 0 {
		return
	}
	history := make([][]string, 0, len(app.History))
	for _, change := range app.History {
		history = append(history, []string{
			change.At.UTC().Format("2006-01-02 15:04"),
			string(change.From),
			string(change.To),
			string(change.Trigger),
			change.By,
			change.Reason,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"At", "From", "To", "Trigger", "By", "Reason"}, history, nil))
}

func total(app *domain.Application) string {
	if app.Pricing == nil {
		return "-"
	}
	return strconv.FormatInt(int64(app.Pricing.TotalAmount), 10)
}

func installment(record domain.PaymentRecord) string {
	if !record.Completed() {
		return "pending"
	}
	if record.SettledWithoutPayment() {
		return "nothing due"
	}
	return fmt.Sprintf("%d paid (%s)", record.Amount, record.InvoiceNumber)
}

func entities(apps []*types.ApplicationProjection) []*domain.Application {
	out := make([]*domain.Application, 0, len(apps))
	for _, current := range apps {
		out = append(out, current.Entity)
	}
	return out
}

func writeJSON(out io.Writer, value any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
