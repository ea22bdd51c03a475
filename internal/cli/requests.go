package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/lifecycle"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
	"github.com/tOgg1/approvalctl/internal/submission"
)

var (
	submitWorkflowID int64
	submitValues     []string
)

func init() {
	rootCmd.AddCommand(requestsCmd)
	requestsCmd.AddCommand(requestsSubmitCmd)
	requestsCmd.AddCommand(requestsListCmd)
	requestsCmd.AddCommand(requestsShowCmd)
	requestsCmd.AddCommand(requestsDeleteCmd)
	requestsCmd.AddCommand(requestsRemarksCmd)

	requestsSubmitCmd.Flags().Int64VarP(&submitWorkflowID, "workflow", "w", 0, "workflow id (defaults to 'workflows use')")
	requestsSubmitCmd.Flags().StringArrayVar(&submitValues, "set", nil, "field value as name=value (repeatable)")
}

var requestsCmd = &cobra.Command{
	Use:     "requests",
	Aliases: []string{"request", "req"},
	Short:   "Submit and track your requests",
}

var requestsSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a request under a workflow",
	Long: `Submit a request. The form follows the workflow's condition field:
amount workflows take amount and reason; leave workflows take leaveDays,
fromDate and reason. The ceiling field may not exceed the workflow's
condition value. Without --set, fields are prompted for.`,
	Example: `  approvalctl requests submit -w 3 --set amount=45000 --set reason="new laptops"
  approvalctl requests submit --set leaveDays=4 --set fromDate=2026-11-02`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			_, err := runRequestSubmit(ctx, a, submitWorkflowID, submitValues)
			return err
		})
	},
}

var requestsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List your requests",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runRequestList)
	},
}

var requestsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one of your requests",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runRequestShow(ctx, a, id)
		})
	},
}

var requestsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm", "withdraw"},
	Short:   "Withdraw one of your requests",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runRequestDelete(ctx, a, id)
		})
	},
}

var requestsRemarksCmd = &cobra.Command{
	Use:   "remarks <id>",
	Short: "Show the rejection remarks of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("request", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runRequestRemarks(ctx, a, id)
		})
	},
}

func (a *app) resolveWorkflowID(id int64) (int64, error) {
	if id > 0 {
		return id, nil
	}
	current, err := a.contexts.Load()
	if err != nil {
		return 0, err
	}
	if current.IsEmpty() {
		return 0, &PreflightError{
			Message:  "no workflow selected",
			Hint:     "Pass --workflow or select one first",
			NextStep: "approvalctl workflows use <id>",
		}
	}
	return current.WorkflowID, nil
}

func splitAssignment(value string) (string, string, error) {
	name, v, ok := strings.Cut(value, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", invalidInput(fmt.Errorf("expected name=value, got %q", value))
	}
	return name, v, nil
}

// fillForm applies name=value assignments, reporting live check failures
// as they happen. Unknown fields are hard errors.
func (a *app) fillForm(form *submission.Form, assignments []string) error {
	for _, assignment := range assignments {
		name, value, err := splitAssignment(assignment)
		if err != nil {
			return err
		}
		if err := form.Set(name, value); err != nil {
			if errors.Is(err, submission.ErrUnknownField) {
				return invalidInput(fmt.Errorf("%w; fields: %s", err, strings.Join(form.Kind().FieldNames(), ", ")))
			}
			fmt.Fprintf(a.errOut, "  %s: %v\n", name, err)
		}
	}
	return nil
}

// promptForm asks for every field, re-asking while the ceiling check fails.
func (a *app) promptForm(form *submission.Form) error {
	ceilingField := form.Kind().CeilingField
	for _, field := range form.Fields() {
		label := field.Label
		if field.Name == ceilingField {
			label = fmt.Sprintf("%s (max %s)", field.Label, strconv.FormatFloat(form.Ceiling(), 'f', -1, 64))
		}
		for attempt := 0; attempt < 3; attempt++ {
			value, err := a.promptLine(label)
			if err != nil {
				return err
			}
			checkErr := form.Set(field.Name, value)
			if checkErr == nil {
				break
			}
			fmt.Fprintf(a.errOut, "  %v\n", checkErr)
		}
	}
	return nil
}

func runRequestSubmit(ctx context.Context, a *app, workflowID int64, assignments []string) (*models.ApprovalRequest, error) {
	s, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator)
	if err != nil {
		return nil, err
	}

	workflowID, err = a.resolveWorkflowID(workflowID)
	if err != nil {
		return nil, err
	}
	def, err := a.client.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, a.workflowLookupError(ctx, workflowID, err)
	}

	form, err := submission.NewForm(def)
	if err != nil {
		return nil, &PreflightError{
			Message:  err.Error(),
			Hint:     "Only amount and leave workflows accept requests",
			NextStep: "approvalctl workflows list",
			Err:      err,
		}
	}

	if len(assignments) == 0 && !IsNonInteractive() {
		if err := a.promptForm(form); err != nil {
			return nil, err
		}
	} else if err := a.fillForm(form, assignments); err != nil {
		return nil, err
	}

	// Nothing is sent unless every check passes.
	payload, err := form.Submit(s.UserID())
	if err != nil {
		return nil, err
	}

	created, err := a.client.SubmitRequest(ctx, payload)
	if err != nil {
		return nil, a.fail(ctx, "submit request", err)
	}
	a.publish(ctx, events.RequestAction(models.EventTypeRequestSubmitted, created.ID, models.RequestActionPayload{
		ActorID:    s.UserID(),
		Role:       s.Role(),
		LevelNo:    created.CurrentLevel,
		WorkflowID: def.ID,
	}))
	logger.Info().Int64("request_id", created.ID).Int64("workflow_id", def.ID).Msg("request submitted")

	if IsJSONOutput() {
		return created, WriteOutput(a.out, created)
	}
	printf(a.out, "Submitted request %d under %q (%s, level %d)\n", created.ID, def.Name, lifecycle.Badge(created.Status), created.CurrentLevel)
	PrintNextSteps(a.out, HintContext{Action: "submit", RequestID: created.ID, WorkflowID: def.ID})
	return created, nil
}

// workflowIndex fetches workflows keyed by id. A failure only costs the
// names and level checks, so it is logged and an empty index returned.
func (a *app) workflowIndex(ctx context.Context) map[int64]*models.WorkflowDefinition {
	defs, err := a.client.ListWorkflows(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("workflow index unavailable")
		return map[int64]*models.WorkflowDefinition{}
	}
	index := make(map[int64]*models.WorkflowDefinition, len(defs))
	for i := range defs {
		index[defs[i].ID] = &defs[i]
	}
	return index
}

func workflowName(index map[int64]*models.WorkflowDefinition, id int64) string {
	if def, ok := index[id]; ok {
		return def.Name
	}
	return "#" + strconv.FormatInt(id, 10)
}

func viewerOf(s *session.Session) lifecycle.Viewer {
	return lifecycle.Viewer{UserID: s.UserID(), Role: s.Role()}
}

func actionList(actions []lifecycle.Action) string {
	if len(actions) == 0 {
		return "-"
	}
	parts := make([]string, len(actions))
	for i, action := range actions {
		parts[i] = strings.ToLower(string(action))
	}
	return strings.Join(parts, ",")
}

type requestView struct {
	models.ApprovalRequest
	Badge    string             `json:"badge"`
	Workflow string             `json:"workflow"`
	Actions  []lifecycle.Action `json:"actions"`
}

func runRequestList(ctx context.Context, a *app) error {
	s, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator)
	if err != nil {
		return err
	}

	requests, err := a.client.ListInitiatorRequests(ctx, s.UserID())
	if err != nil {
		return a.fail(ctx, "list requests", err)
	}
	index := a.workflowIndex(ctx)

	views := make([]requestView, 0, len(requests))
	for _, req := range requests {
		snap := lifecycle.Snapshot{Request: req, Workflow: index[req.WorkflowID]}
		views = append(views, requestView{
			ApprovalRequest: req,
			Badge:           lifecycle.Badge(req.Status),
			Workflow:        workflowName(index, req.WorkflowID),
			Actions:         lifecycle.Actions(viewerOf(s), snap),
		})
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, views)
	}
	if len(views) == 0 {
		printf(a.out, "No requests\n")
		return nil
	}

	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			strconv.FormatInt(v.ID, 10),
			truncate(v.Workflow, 24),
			truncate(formatData(v.RequestData.Map()), 40),
			v.Badge,
			strconv.Itoa(v.CurrentLevel),
			formatTimestamp(v.CreatedAt),
			actionList(v.Actions),
		})
	}
	return writeTable(a.out, []string{"ID", "WORKFLOW", "DATA", "STATUS", "LEVEL", "CREATED", "ACTIONS"}, rows)
}

// ownRequest fetches a request and refuses ones the viewer did not submit.
func (a *app) ownRequest(ctx context.Context, s *session.Session, id int64) (*models.ApprovalRequest, error) {
	req, err := a.client.GetRequest(ctx, id)
	if err != nil {
		return nil, a.fail(ctx, "get request", err)
	}
	if req.InitiatorID != s.UserID() {
		logger.Debug().Int64("request_id", id).Int64("initiator_id", req.InitiatorID).Msg("request belongs to another initiator")
		return nil, fmt.Errorf("request %d not found", id)
	}
	return req, nil
}

func runRequestShow(ctx context.Context, a *app, id int64) error {
	s, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator)
	if err != nil {
		return err
	}
	req, err := a.ownRequest(ctx, s, id)
	if err != nil {
		return err
	}
	index := a.workflowIndex(ctx)
	snap := lifecycle.Snapshot{Request: *req, Workflow: index[req.WorkflowID]}
	view := requestView{
		ApprovalRequest: *req,
		Badge:           lifecycle.Badge(req.Status),
		Workflow:        workflowName(index, req.WorkflowID),
		Actions:         lifecycle.Actions(viewerOf(s), snap),
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, view)
	}
	fmt.Fprintf(a.out, "Request %d (%s)\n", view.ID, view.Workflow)
	fmt.Fprintf(a.out, "  status:  %s at level %d\n", view.Badge, view.CurrentLevel)
	fmt.Fprintf(a.out, "  data:    %s\n", formatData(view.RequestData.Map()))
	fmt.Fprintf(a.out, "  created: %s\n", formatTimestamp(view.CreatedAt))
	fmt.Fprintf(a.out, "  last:    %s\n", formatTimestamp(view.LastActionAt))
	if remarks := snap.Remarks(); remarks != "" && lifecycle.Has(view.Actions, lifecycle.ActionViewRemarks) {
		fmt.Fprintf(a.out, "  remarks: %s\n", remarks)
	}
	fmt.Fprintf(a.out, "  actions: %s\n", actionList(view.Actions))
	return nil
}

func runRequestDelete(ctx context.Context, a *app, id int64) error {
	s, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator)
	if err != nil {
		return err
	}
	req, err := a.ownRequest(ctx, s, id)
	if err != nil {
		return err
	}

	actions := lifecycle.Actions(viewerOf(s), lifecycle.Snapshot{Request: *req})
	if !lifecycle.Has(actions, lifecycle.ActionDelete) {
		return fmt.Errorf("request %d is %s and can no longer be withdrawn", id, lifecycle.Badge(req.Status))
	}

	if err := a.ConfirmDestructiveAction("request", strconv.FormatInt(id, 10), formatData(req.RequestData.Map())); err != nil {
		return err
	}
	if err := a.client.DeleteRequest(ctx, id); err != nil {
		return a.fail(ctx, "delete request", err)
	}
	a.publish(ctx, events.RequestAction(models.EventTypeRequestDeleted, id, models.RequestActionPayload{
		ActorID:    s.UserID(),
		Role:       s.Role(),
		LevelNo:    req.CurrentLevel,
		WorkflowID: req.WorkflowID,
	}))

	if IsJSONOutput() {
		return WriteOutput(a.out, map[string]any{"deleted": id})
	}
	printf(a.out, "Withdrew request %d\n", id)
	return nil
}

func runRequestRemarks(ctx context.Context, a *app, id int64) error {
	s, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator)
	if err != nil {
		return err
	}
	req, err := a.ownRequest(ctx, s, id)
	if err != nil {
		return err
	}

	snap := lifecycle.Snapshot{Request: *req}
	if snap.Status() == lifecycle.StatusRejected && snap.Remarks() == "" {
		// Auto-rejected requests carry no remarks on the record itself.
		if entries, err := a.client.RequestLog(ctx, id); err == nil && len(entries) > 0 {
			snap.LastLog = &entries[len(entries)-1]
		}
	}
	if !lifecycle.Has(lifecycle.Actions(viewerOf(s), snap), lifecycle.ActionViewRemarks) {
		return fmt.Errorf("request %d has no rejection remarks", id)
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, map[string]any{"id": id, "remarks": snap.Remarks()})
	}
	fmt.Fprintln(a.out, snap.Remarks())
	return nil
}
