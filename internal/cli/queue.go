package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/access"
	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/lifecycle"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

var (
	queueRole    string
	rejectRemark string
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueApproveCmd)
	queueCmd.AddCommand(queueRejectCmd)

	queueCmd.PersistentFlags().StringVar(&queueRole, "role", "", "queue to open: manager or finance (defaults to your role)")
	queueRejectCmd.Flags().StringVarP(&rejectRemark, "remarks", "m", "", "rejection remarks (required)")
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Review requests waiting at your approval level",
}

var queueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List pending requests at your level",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runQueueList(ctx, a, queueRole)
		})
	},
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve a request at your level",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runQueueApprove(ctx, a, queueRole, id)
		})
	},
}

var queueRejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Reject a request at your level",
	Long:  "Reject a request. Remarks are required and are shown to the initiator.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runQueueReject(ctx, a, queueRole, id, rejectRemark)
		})
	},
}

// queueRoute picks the dashboard route for the queue. Without --role the
// session's own approver route is used.
func (a *app) queueRoute(ctx context.Context, role string) (string, error) {
	role = strings.TrimSpace(role)
	if role != "" {
		parsed, err := models.ParseRole(role)
		if err != nil || !parsed.IsApprover() {
			return "", invalidInput(fmt.Errorf("queue must be manager or finance, got %q", role))
		}
		return access.HomeRoute(parsed), nil
	}
	if s := a.currentSession(ctx); s != nil && s.Role().IsApprover() {
		return access.HomeRoute(s.Role()), nil
	}
	return access.HomeRoute(models.RoleManager), nil
}

func (a *app) openQueue(ctx context.Context, role string) (*session.Session, api.Queue, error) {
	route, err := a.queueRoute(ctx, role)
	if err != nil {
		return nil, "", err
	}
	s, err := a.requireRoute(ctx, route)
	if err != nil {
		return nil, "", err
	}
	queue, err := api.QueueFor(s.Role())
	if err != nil {
		return nil, "", err
	}
	return s, queue, nil
}

type queueRow struct {
	models.PendingItem
	Badge    string             `json:"badge"`
	Workflow string             `json:"workflow"`
	Next     string             `json:"next,omitempty"`
	Actions  []lifecycle.Action `json:"actions"`
}

func buildQueueRows(s *session.Session, items []models.PendingItem, index map[int64]*models.WorkflowDefinition) []queueRow {
	rows := make([]queueRow, 0, len(items))
	for _, item := range items {
		def := index[item.Request.WorkflowID]
		row := queueRow{
			PendingItem: item,
			Badge:       lifecycle.Badge(item.Request.Status),
			Workflow:    workflowName(index, item.Request.WorkflowID),
			Actions:     lifecycle.Actions(viewerOf(s), lifecycle.Snapshot{Request: item.Request, Workflow: def}),
		}
		if prediction, err := lifecycle.PredictApprove(item.Request, def); err == nil {
			row.Next = prediction.String()
		}
		rows = append(rows, row)
	}
	return rows
}

func runQueueList(ctx context.Context, a *app, role string) error {
	s, queue, err := a.openQueue(ctx, role)
	if err != nil {
		return err
	}

	items, err := a.client.ListPending(ctx, queue, s.UserID())
	if err != nil {
		return a.fail(ctx, "list queue", err)
	}
	rows := buildQueueRows(s, items, a.workflowIndex(ctx))

	if IsJSONOutput() {
		return WriteOutput(a.out, rows)
	}
	if len(rows) == 0 {
		printf(a.out, "Nothing waiting in the %s queue\n", queue)
		return nil
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, []string{
			strconv.FormatInt(row.Request.ID, 10),
			orDash(row.InitiatorName),
			truncate(row.Workflow, 24),
			truncate(formatData(row.Request.RequestData.Map()), 40),
			row.Badge,
			strconv.Itoa(row.Request.CurrentLevel),
			orDash(row.Next),
			waitingFor(row.Request),
		})
	}
	return writeTable(a.out, []string{"ID", "INITIATOR", "WORKFLOW", "DATA", "STATUS", "LEVEL", "ON APPROVE", "WAITING"}, table)
}

func waitingFor(req models.ApprovalRequest) string {
	since := req.LastActionAt
	if since.IsZero() {
		since = req.CreatedAt
	}
	if since.IsZero() {
		return "-"
	}
	return time.Since(since.Time).Truncate(time.Minute).String()
}

// pendingSnapshot finds id in the viewer's queue and checks that action is
// offered on it.
func (a *app) pendingSnapshot(ctx context.Context, s *session.Session, queue api.Queue, id int64, action lifecycle.Action) (lifecycle.Snapshot, error) {
	items, err := a.client.ListPending(ctx, queue, s.UserID())
	if err != nil {
		return lifecycle.Snapshot{}, a.fail(ctx, "list queue", err)
	}

	for _, item := range items {
		if item.Request.ID != id {
			continue
		}
		snap := lifecycle.Snapshot{Request: item.Request}
		if def, err := a.client.GetWorkflow(ctx, item.Request.WorkflowID); err == nil {
			snap.Workflow = def
		} else {
			logger.Debug().Err(err).Int64("workflow_id", item.Request.WorkflowID).Msg("workflow unavailable")
		}
		if !lifecycle.Has(lifecycle.Actions(viewerOf(s), snap), action) {
			return lifecycle.Snapshot{}, fmt.Errorf("request %d is not at your level", id)
		}
		return snap, nil
	}
	return lifecycle.Snapshot{}, &PreflightError{
		Message:  fmt.Sprintf("request %d is not in the %s queue", id, queue),
		NextStep: "approvalctl queue list",
	}
}

type decisionResult struct {
	Request   *models.ApprovalRequest `json:"request"`
	Predicted string                  `json:"predicted,omitempty"`
	Remaining int                     `json:"remaining"`
}

// remaining refetches the queue after a decision.
func (a *app) remaining(ctx context.Context, s *session.Session, queue api.Queue) int {
	items, err := a.client.ListPending(ctx, queue, s.UserID())
	if err != nil {
		logger.Debug().Err(err).Msg("queue refetch failed")
		return -1
	}
	return len(items)
}

func (a *app) reportDecision(verb string, result decisionResult) error {
	if IsJSONOutput() {
		return WriteOutput(a.out, result)
	}
	req := result.Request
	if lifecycle.ParseStatus(req.Status).Terminal() {
		printf(a.out, "%s request %d: %s\n", verb, req.ID, lifecycle.Badge(req.Status))
	} else {
		printf(a.out, "%s request %d: %s at level %d\n", verb, req.ID, lifecycle.Badge(req.Status), req.CurrentLevel)
	}
	if result.Remaining >= 0 {
		printf(a.out, "%d left in your queue\n", result.Remaining)
	}
	return nil
}

func runQueueApprove(ctx context.Context, a *app, role string, id int64) error {
	s, queue, err := a.openQueue(ctx, role)
	if err != nil {
		return err
	}
	snap, err := a.pendingSnapshot(ctx, s, queue, id, lifecycle.ActionApprove)
	if err != nil {
		return err
	}

	outcome, err := lifecycle.NewDecision(id).Approve()
	if err != nil {
		return err
	}
	var predicted string
	if prediction, err := lifecycle.PredictApprove(snap.Request, snap.Workflow); err == nil {
		predicted = prediction.String()
	}

	updated, err := a.client.Approve(ctx, outcome.RequestID, s.UserID())
	if err != nil {
		return a.fail(ctx, "approve", err)
	}
	a.publish(ctx, events.RequestAction(models.EventTypeRequestApproved, id, models.RequestActionPayload{
		ActorID:      s.UserID(),
		Role:         s.Role(),
		LevelNo:      snap.Request.CurrentLevel,
		WorkflowID:   snap.Request.WorkflowID,
		PredictedEnd: predicted,
	}))
	logger.Info().Int64("request_id", id).Str("status", updated.Status).Msg("request approved")

	return a.reportDecision("Approved", decisionResult{
		Request:   updated,
		Predicted: predicted,
		Remaining: a.remaining(ctx, s, queue),
	})
}

func runQueueReject(ctx context.Context, a *app, role string, id int64, remarks string) error {
	s, queue, err := a.openQueue(ctx, role)
	if err != nil {
		return err
	}
	snap, err := a.pendingSnapshot(ctx, s, queue, id, lifecycle.ActionReject)
	if err != nil {
		return err
	}

	decision := lifecycle.NewDecision(id)
	decision.ToggleReject()
	if strings.TrimSpace(remarks) == "" && !IsNonInteractive() {
		if remarks, err = a.promptLine("Remarks"); err != nil {
			return err
		}
	}
	decision.SetRemarks(remarks)
	outcome, err := decision.ConfirmReject(decision.Remarks())
	if err != nil {
		return invalidInput(err)
	}

	updated, err := a.client.Reject(ctx, outcome.RequestID, s.UserID(), outcome.Remarks)
	if err != nil {
		return a.fail(ctx, "reject", err)
	}
	a.publish(ctx, events.RequestAction(models.EventTypeRequestRejected, id, models.RequestActionPayload{
		ActorID:    s.UserID(),
		Role:       s.Role(),
		LevelNo:    snap.Request.CurrentLevel,
		WorkflowID: snap.Request.WorkflowID,
		Remarks:    outcome.Remarks,
	}))
	logger.Info().Int64("request_id", id).Msg("request rejected")

	return a.reportDecision("Rejected", decisionResult{
		Request:   updated,
		Remaining: a.remaining(ctx, s, queue),
	})
}
