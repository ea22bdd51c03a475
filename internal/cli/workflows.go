package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/workflow"
)

// draftInput carries the workflow form fields given on the command line.
// A nil field was not given and leaves the draft untouched.
type draftInput struct {
	Name            *string
	Description     *string
	Field           *string
	Operator        *string
	Value           *string
	EscalationHours *string
	Levels          []string
}

type workflowFormFlags struct {
	file        string
	name        string
	description string
	field       string
	operator    string
	value       string
	escalation  string
	levels      []string
}

func (f *workflowFormFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read the workflow from a YAML file")
	cmd.Flags().StringVar(&f.name, "name", "", "workflow name")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.field, "field", "", "condition field (amount, leaveDays)")
	cmd.Flags().StringVar(&f.operator, "operator", "", "condition operator (>, <, ==)")
	cmd.Flags().StringVar(&f.value, "value", "", "condition value")
	cmd.Flags().StringVar(&f.escalation, "escalation-hours", "", "hours before a pending level escalates")
	cmd.Flags().StringSliceVar(&f.levels, "level", nil, "approval level role, in order (repeatable)")
}

func (f *workflowFormFlags) input(cmd *cobra.Command) draftInput {
	pick := func(name string, value string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v := value
		return &v
	}
	in := draftInput{
		Name:            pick("name", f.name),
		Description:     pick("description", f.description),
		Field:           pick("field", f.field),
		Operator:        pick("operator", f.operator),
		Value:           pick("value", f.value),
		EscalationHours: pick("escalation-hours", f.escalation),
	}
	if cmd.Flags().Changed("level") {
		in.Levels = f.levels
		if in.Levels == nil {
			in.Levels = []string{}
		}
	}
	return in
}

var (
	workflowCreateFlags workflowFormFlags
	workflowEditFlags   workflowFormFlags

	workflowMatchField string
	workflowExportOut  string
	workflowUseClear   bool
)

func init() {
	rootCmd.AddCommand(workflowsCmd)
	workflowsCmd.AddCommand(workflowsListCmd)
	workflowsCmd.AddCommand(workflowsShowCmd)
	workflowsCmd.AddCommand(workflowsCreateCmd)
	workflowsCmd.AddCommand(workflowsEditCmd)
	workflowsCmd.AddCommand(workflowsDeleteCmd)
	workflowsCmd.AddCommand(workflowsMatchCmd)
	workflowsCmd.AddCommand(workflowsExportCmd)
	workflowsCmd.AddCommand(workflowsUseCmd)

	workflowCreateFlags.register(workflowsCreateCmd)
	workflowEditFlags.register(workflowsEditCmd)

	workflowsMatchCmd.Flags().StringVar(&workflowMatchField, "field", "amount", "condition field to test")
	workflowsExportCmd.Flags().StringVarP(&workflowExportOut, "output", "o", "", "write to file instead of stdout")
	workflowsUseCmd.Flags().BoolVar(&workflowUseClear, "clear", false, "forget the selected workflow")
}

var workflowsCmd = &cobra.Command{
	Use:     "workflows",
	Aliases: []string{"workflow", "wf"},
	Short:   "Manage approval workflows",
}

var workflowsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List workflows",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, runWorkflowList)
	},
}

var workflowsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("workflow", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowShow(ctx, a, id)
		})
	},
}

var workflowsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a workflow",
	Long: `Create a workflow from flags or a YAML file. Flags override values
read from the file. Levels are numbered from 1 in the order given.`,
	Example: `  approvalctl workflows create --name "Big purchase" --value 50000 --escalation-hours 24 --level Manager --level Finance
  approvalctl workflows create -f purchase.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input := workflowCreateFlags.input(cmd)
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowCreate(ctx, a, workflowCreateFlags.file, input)
		})
	},
}

var workflowsEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a workflow",
	Long:  "Load a workflow, apply the given changes and save it. Unset flags keep their current values.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("workflow", args[0])
		if err != nil {
			return err
		}
		input := workflowEditFlags.input(cmd)
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowEdit(ctx, a, id, workflowEditFlags.file, input)
		})
	},
}

var workflowsDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a workflow",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("workflow", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowDelete(ctx, a, id)
		})
	},
}

var workflowsMatchCmd = &cobra.Command{
	Use:   "match <value>",
	Short: "List workflows whose condition a value triggers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(strings.TrimSpace(args[0]), 64)
		if err != nil {
			return invalidInput(fmt.Errorf("value %q %w", args[0], models.ErrNotNumeric))
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowMatch(ctx, a, workflowMatchField, value)
		})
	},
}

var workflowsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a workflow as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID("workflow", args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowExport(ctx, a, id, workflowExportOut)
		})
	},
}

var workflowsUseCmd = &cobra.Command{
	Use:   "use [id]",
	Short: "Select the default workflow for submissions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var id int64
		if len(args) == 1 {
			parsed, err := parseID("workflow", args[0])
			if err != nil {
				return err
			}
			id = parsed
		}
		return withApp(cmd, func(ctx context.Context, a *app) error {
			return runWorkflowUse(ctx, a, id, workflowUseClear)
		})
	},
}

func parseID(kind, value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidInput(fmt.Errorf("invalid %s id %q", kind, value))
	}
	return id, nil
}

// applyDraftInput copies the given fields onto d. Levels beyond the cap
// are reported back instead of being added.
func applyDraftInput(d *workflow.Draft, in draftInput) []string {
	if in.Name != nil {
		d.Name = *in.Name
	}
	if in.Description != nil {
		d.Description = *in.Description
	}
	if in.Field != nil {
		d.ConditionField = *in.Field
	}
	if in.Operator != nil {
		d.ConditionOperator = models.ConditionOperator(strings.TrimSpace(*in.Operator))
	}
	if in.Value != nil {
		d.ConditionValue = *in.Value
	}
	if in.EscalationHours != nil {
		d.EscalationHours = *in.EscalationHours
	}
	if in.Levels == nil {
		return nil
	}

	var dropped []string
	d.Levels = nil
	for _, role := range in.Levels {
		if d.AddLevel() == workflow.Capped {
			dropped = append(dropped, role)
			continue
		}
		d.SetLevelRole(d.Levels[len(d.Levels)-1].Key, strings.TrimSpace(role))
	}
	return dropped
}

func (a *app) draftOptions() []workflow.Option {
	return []workflow.Option{workflow.WithMaxLevels(a.cfg.Workflow.MaxLevels)}
}

func (a *app) warnCapped(dropped []string, max int) {
	if len(dropped) == 0 {
		return
	}
	fmt.Fprintf(a.errOut, "Warning: at most %d levels; ignored %s\n", max, strings.Join(dropped, ", "))
}

func runWorkflowList(ctx context.Context, a *app) error {
	if _, err := a.requireRoles(ctx, "/workflows", models.RoleAdmin, models.RoleInitiator); err != nil {
		return err
	}

	defs, err := a.client.ListWorkflows(ctx)
	if err != nil {
		return a.fail(ctx, "list workflows", err)
	}
	workflow.SortByName(defs)

	if IsJSONOutput() {
		return WriteOutput(a.out, defs)
	}
	if len(defs) == 0 {
		printf(a.out, "No workflows\n")
		return nil
	}

	rows := make([][]string, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		rows = append(rows, []string{
			strconv.FormatInt(def.ID, 10),
			truncate(def.Name, 32),
			def.Condition(),
			levelChain(def),
			fmt.Sprintf("%dh", def.EscalationHours),
			orDash(def.Status),
		})
	}
	return writeTable(a.out, []string{"ID", "NAME", "CONDITION", "LEVELS", "ESCALATION", "STATUS"}, rows)
}

func levelChain(def *models.WorkflowDefinition) string {
	levels := def.SortedLevels()
	if len(levels) == 0 {
		return "-"
	}
	roles := make([]string, len(levels))
	for i, level := range levels {
		roles[i] = level.Role
	}
	return strings.Join(roles, " → ")
}

func runWorkflowShow(ctx context.Context, a *app, id int64) error {
	if _, err := a.requireRoles(ctx, "/workflows", models.RoleAdmin, models.RoleInitiator); err != nil {
		return err
	}

	def, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return a.workflowLookupError(ctx, id, err)
	}

	if IsJSONOutput() {
		return WriteOutput(a.out, def)
	}
	printWorkflow(a, def)
	return nil
}

func printWorkflow(a *app, def *models.WorkflowDefinition) {
	fmt.Fprintf(a.out, "Workflow %d: %s\n", def.ID, def.Name)
	if def.Description != "" {
		fmt.Fprintf(a.out, "  description: %s\n", def.Description)
	}
	fmt.Fprintf(a.out, "  condition:   %s\n", def.Condition())
	fmt.Fprintf(a.out, "  escalation:  after %dh\n", def.EscalationHours)
	if def.Status != "" {
		fmt.Fprintf(a.out, "  status:      %s\n", def.Status)
	}
	fmt.Fprintln(a.out, "  levels:")
	for _, level := range def.SortedLevels() {
		fmt.Fprintf(a.out, "    %d. %s\n", level.LevelNo, level.Role)
	}
}

func (a *app) workflowLookupError(ctx context.Context, id int64, err error) error {
	if errors.Is(err, api.ErrWorkflowNotFound) {
		return &PreflightError{
			Message:  fmt.Sprintf("workflow %d not found", id),
			NextStep: "approvalctl workflows list",
			Err:      err,
		}
	}
	return a.fail(ctx, "get workflow", err)
}

func runWorkflowCreate(ctx context.Context, a *app, file string, in draftInput) error {
	if _, err := a.requireRoles(ctx, "/admin", models.RoleAdmin); err != nil {
		return err
	}

	d := workflow.NewDraft(a.draftOptions()...)
	if file != "" {
		loaded, err := workflow.LoadDraftFile(file, a.draftOptions()...)
		if err != nil {
			return invalidInput(err)
		}
		d = loaded
		d.ID = 0
	}
	a.warnCapped(applyDraftInput(d, in), d.MaxLevels())

	def, err := d.ToDefinition()
	if err != nil {
		return err
	}

	created, err := a.client.CreateWorkflow(ctx, def)
	if err != nil {
		return a.fail(ctx, "create workflow", err)
	}
	a.publish(ctx, events.WorkflowChanged(models.EventTypeWorkflowCreated, created))
	logger.Info().Int64("workflow_id", created.ID).Str("name", created.Name).Msg("workflow created")

	if IsJSONOutput() {
		return WriteOutput(a.out, created)
	}
	printf(a.out, "Created workflow %d (%s)\n", created.ID, created.Condition())
	PrintNextSteps(a.out, HintContext{Action: "workflow_create", WorkflowID: created.ID})
	return nil
}

func runWorkflowEdit(ctx context.Context, a *app, id int64, file string, in draftInput) error {
	if _, err := a.requireRoles(ctx, "/admin", models.RoleAdmin); err != nil {
		return err
	}

	existing, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return a.workflowLookupError(ctx, id, err)
	}

	d := workflow.Prefill(existing, a.draftOptions()...)
	if file != "" {
		loaded, err := workflow.LoadDraftFile(file, a.draftOptions()...)
		if err != nil {
			return invalidInput(err)
		}
		loaded.ID = existing.ID
		loaded.Status = existing.Status
		d = loaded
	}
	a.warnCapped(applyDraftInput(d, in), d.MaxLevels())

	def, err := d.ToDefinition()
	if err != nil {
		return err
	}

	updated, err := a.client.UpdateWorkflow(ctx, id, def)
	if err != nil {
		return a.fail(ctx, "update workflow", err)
	}
	a.publish(ctx, events.WorkflowChanged(models.EventTypeWorkflowUpdated, updated))

	if IsJSONOutput() {
		return WriteOutput(a.out, updated)
	}
	printf(a.out, "Updated workflow %d (%s)\n", updated.ID, updated.Condition())
	PrintNextSteps(a.out, HintContext{Action: "workflow_update", WorkflowID: updated.ID})
	return nil
}

func runWorkflowDelete(ctx context.Context, a *app, id int64) error {
	if _, err := a.requireRoles(ctx, "/admin", models.RoleAdmin); err != nil {
		return err
	}

	idText := strconv.FormatInt(id, 10)
	if err := a.ConfirmDestructiveAction("workflow", idText, "Requests already running under it keep their levels."); err != nil {
		return err
	}

	if err := a.client.DeleteWorkflow(ctx, id); err != nil {
		return a.fail(ctx, "delete workflow", err)
	}
	a.publish(ctx, events.WorkflowDeleted(id))

	if IsJSONOutput() {
		return WriteOutput(a.out, map[string]any{"deleted": id})
	}
	printf(a.out, "Deleted workflow %d\n", id)
	return nil
}

func runWorkflowMatch(ctx context.Context, a *app, field string, value float64) error {
	if _, err := a.requireRoles(ctx, "/workflows", models.RoleAdmin, models.RoleInitiator); err != nil {
		return err
	}

	defs, err := a.client.ListWorkflows(ctx)
	if err != nil {
		return a.fail(ctx, "list workflows", err)
	}
	evaluator, err := workflow.NewEvaluator()
	if err != nil {
		return err
	}
	matched, err := evaluator.Match(defs, field, value)
	if err != nil {
		return err
	}
	workflow.SortByName(matched)

	if IsJSONOutput() {
		return WriteOutput(a.out, matched)
	}
	if len(matched) == 0 {
		printf(a.out, "No workflow matches %s = %s\n", field, strconv.FormatFloat(value, 'f', -1, 64))
		return nil
	}
	rows := make([][]string, 0, len(matched))
	for i := range matched {
		rows = append(rows, []string{
			strconv.FormatInt(matched[i].ID, 10),
			matched[i].Name,
			matched[i].Condition(),
			levelChain(&matched[i]),
		})
	}
	return writeTable(a.out, []string{"ID", "NAME", "CONDITION", "LEVELS"}, rows)
}

func runWorkflowExport(ctx context.Context, a *app, id int64, path string) error {
	if _, err := a.requireRoles(ctx, "/admin", models.RoleAdmin); err != nil {
		return err
	}

	def, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return a.workflowLookupError(ctx, id, err)
	}

	if path == "" {
		return workflow.WriteFile(a.out, def)
	}
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := workflow.WriteFile(fh, def); err != nil {
		fh.Close()
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	printf(a.out, "Wrote %s\n", path)
	return nil
}

func runWorkflowUse(ctx context.Context, a *app, id int64, clear bool) error {
	if _, err := a.requireRoles(ctx, "/initiator", models.RoleInitiator); err != nil {
		return err
	}

	current, err := a.contexts.Load()
	if err != nil {
		return err
	}

	if clear {
		if err := a.contexts.Clear(); err != nil {
			return err
		}
		printf(a.out, "Cleared the selected workflow\n")
		return nil
	}
	if id == 0 {
		if IsJSONOutput() {
			return WriteOutput(a.out, current)
		}
		fmt.Fprintln(a.out, current.String())
		return nil
	}

	def, err := a.client.GetWorkflow(ctx, id)
	if err != nil {
		return a.workflowLookupError(ctx, id, err)
	}
	current.SetWorkflow(def.ID, def.Name)
	if err := a.contexts.Save(current); err != nil {
		return err
	}
	printf(a.out, "Using workflow %d (%s)\n", def.ID, def.Name)
	return nil
}
