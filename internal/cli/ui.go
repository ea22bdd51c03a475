package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/access"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/tui"
)

func init() {
	rootCmd.AddCommand(uiCmd)
}

var uiCmd = &cobra.Command{
	Use:     "ui",
	Aliases: []string{"dashboard"},
	Short:   "Open the dashboard for your role",
	Long: `Open the interactive dashboard for the signed-in role: the approval
queue for managers and finance, your requests for initiators, the audit
summary for auditors and the workflow list for admins. Lists refresh every
dashboard.poll_interval.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runUI)
	},
}

func runUI(ctx context.Context, a *app) error {
	if IsNonInteractive() || !hasTTY() {
		return &PreflightError{
			Message:  "the dashboard requires an interactive terminal",
			Hint:     "Run without --non-interactive and with a TTY, or use the CLI subcommands",
			NextStep: "approvalctl --help",
		}
	}

	s, err := a.requireRoles(ctx, "/dashboard")
	if err != nil {
		return err
	}
	if _, err := a.requireRoute(ctx, access.HomeRoute(s.Role())); err != nil {
		return err
	}

	return tui.Run(ctx, tui.Config{
		Session:        s,
		Backend:        a.client,
		Theme:          a.cfg.TUI.Theme,
		PollInterval:   a.cfg.Dashboard.PollInterval,
		PageSize:       a.cfg.Dashboard.PageSize,
		ShowTimestamps: a.cfg.TUI.ShowTimestamps,
		OnEvent: func(event *models.Event) {
			a.publish(ctx, event)
		},
	})
}
