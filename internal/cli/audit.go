package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/lifecycle"
	"github.com/tOgg1/approvalctl/internal/models"
)

var (
	auditPage int
	auditSize int
	auditUser string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditSummaryCmd)
	auditCmd.AddCommand(auditLogCmd)

	auditSummaryCmd.Flags().IntVar(&auditPage, "page", 1, "page number, from 1")
	auditSummaryCmd.Flags().IntVar(&auditSize, "size", 0, "rows per page (default dashboard.page_size)")
	auditSummaryCmd.Flags().StringVar(&auditUser, "user", "", "only rows whose initiator or last approver id contains this")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read the approval audit trail",
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Page through every request with its last action",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runAuditSummary(ctx, a, auditPage, auditSize, auditUser)
		})
	},
}

var auditLogCmd = &cobra.Command{
	Use:   "log <request-id>",
	Short: "Show the full approval log of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runAuditLog(ctx, a, id)
		})
	},
}

type summaryResult struct {
	Page          int                 `json:"page"`
	TotalPages    int                 `json:"totalPages"`
	TotalElements int64               `json:"totalElements"`
	Filter        string              `json:"filter,omitempty"`
	Rows          []models.SummaryRow `json:"rows"`
}

func runAuditSummary(ctx context.Context, a *app, page, size int, user string) error {
	if _, err := a.requireRoute(ctx, "/auditor"); err != nil {
		return err
	}
	if page < 1 {
		return invalidInput(fmt.Errorf("page must be at least 1"))
	}
	if size <= 0 {
		size = a.cfg.Dashboard.PageSize
	}

	// The service counts pages from 0.
	result, err := a.client.Summary(ctx, page-1, size)
	if err != nil {
		return a.fail(ctx, "audit summary", err)
	}
	rows := models.FilterSummary(result.Data, user)

	if IsJSONOutput() {
		return WriteOutput(a.out, summaryResult{
			Page:          result.CurrentPage + 1,
			TotalPages:    result.TotalPages,
			TotalElements: result.TotalElements,
			Filter:        user,
			Rows:          rows,
		})
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		last, by, at := "-", "-", "-"
		if row.LastAction != nil {
			last = string(row.LastAction.NormalizedAction())
			by = formatOptionalID(row.LastAction.ApproverID)
			at = formatTimestamp(row.LastAction.ActionAt)
		}
		table = append(table, []string{
			strconv.FormatInt(row.Request.ID, 10),
			fmt.Sprintf("%s (%d)", orDash(row.InitiatorName), row.Request.InitiatorID),
			lifecycle.Badge(row.Request.Status),
			strconv.Itoa(row.Request.CurrentLevel),
			last,
			by,
			at,
		})
	}
	if len(table) == 0 {
		printf(a.out, "No requests on this page\n")
	} else if err := writeTable(a.out, []string{"REQUEST", "INITIATOR", "STATUS", "LEVEL", "LAST ACTION", "BY", "AT"}, table); err != nil {
		return err
	}
	printf(a.out, "\nPage %d of %d (%d requests)\n", result.CurrentPage+1, max(result.TotalPages, 1), result.TotalElements)
	return nil
}

func runAuditLog(ctx context.Context, a *app, id int64) error {
	if _, err := a.requireRoute(ctx, "/auditor"); err != nil {
		return err
	}

	entries, err := a.client.RequestLog(ctx, id)
	if err != nil {
		return a.fail(ctx, "request log", err)
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, entries)
	}
	if len(entries) == 0 {
		printf(a.out, "No log entries for request %d\n", id)
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for i := range entries {
		entry := &entries[i]
		rows = append(rows, []string{
			formatTimestamp(entry.ActionAt),
			strconv.Itoa(entry.LevelNo),
			orDash(entry.Role),
			string(entry.NormalizedAction()),
			formatOptionalID(entry.ApproverID),
			statusTransition(entry.PreviousStatus, entry.NewStatus),
			orDash(entry.Remarks),
		})
	}
	return writeTable(a.out, []string{"AT", "LEVEL", "ROLE", "ACTION", "BY", "STATUS", "REMARKS"}, rows)
}

func statusTransition(from, to string) string {
	badge := func(raw string) string {
		if raw == "" {
			return "-"
		}
		return lifecycle.Badge(raw)
	}
	return badge(from) + " → " + badge(to)
}
