package tui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/approvalctl/internal/models"
)

// workflowsView lists workflow definitions. Editing stays on the command line.
type workflowsView struct {
	cfg  Config
	feed *feed[[]models.WorkflowDefinition]

	rows     []models.WorkflowDefinition
	cursor   int
	loadErr  error
	expanded bool
}

func newWorkflowsView(cfg Config) *workflowsView {
	v := &workflowsView{cfg: cfg}
	v.feed = newFeed("workflows", cfg.PollInterval, func(ctx context.Context) ([]models.WorkflowDefinition, error) {
		defs, err := cfg.Backend.ListWorkflows(ctx)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(defs, func(i, j int) bool {
			return strings.ToLower(defs[i].Name) < strings.ToLower(defs[j].Name)
		})
		return defs, nil
	})
	return v
}

func (v *workflowsView) start(ctx context.Context, send func(tea.Msg)) error {
	return v.feed.start(ctx, send)
}

func (v *workflowsView) stop() { v.feed.stop() }

func (v *workflowsView) Init() tea.Cmd { return nil }

func (v *workflowsView) Title() string { return "Workflows" }

func (v *workflowsView) UpdatedAt() time.Time { return v.feed.updatedAt() }

func (v *workflowsView) Keys() string {
	return "enter details  R refresh"
}

func (v *workflowsView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case feedMsg[[]models.WorkflowDefinition]:
		if !v.feed.accept(typed.result) {
			return nil
		}
		v.loadErr = typed.result.Err
		if typed.result.Err == nil {
			v.rows = typed.result.Value
			if v.cursor >= len(v.rows) {
				v.cursor = max(0, len(v.rows)-1)
			}
		}
	case tea.KeyMsg:
		switch typed.String() {
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
		case "down", "j":
			if v.cursor < len(v.rows)-1 {
				v.cursor++
			}
		case "enter":
			v.expanded = !v.expanded
		case "esc":
			v.expanded = false
		case "R":
			return v.feed.refreshCmd()
		}
	}
	return nil
}

func (v *workflowsView) View(width, height int, th theme) string {
	lines := make([]string, 0, height)
	switch {
	case v.loadErr != nil:
		lines = append(lines, th.errText.Render("refresh failed: "+errorText(v.loadErr)))
	case v.feed.updatedAt().IsZero():
		lines = append(lines, th.muted.Render("loading…"))
	case len(v.rows) == 0:
		lines = append(lines, th.muted.Render("No workflows yet. Create one with: approvalctl workflows create"))
	}
	if len(v.rows) > 0 {
		lines = append(lines, th.muted.Render(workflowRowText("ID", "NAME", "CONDITION", "ESC", "LEVELS")))
	}

	var pane string
	if v.expanded && v.cursor < len(v.rows) {
		pane = v.renderDetail(v.rows[v.cursor], width, th)
	}
	listHeight := height - len(lines) - lipgloss.Height(pane) - 1
	start, end := window(len(v.rows), v.cursor, listHeight)
	for i := start; i < end; i++ {
		def := v.rows[i]
		line := workflowRowText(
			strconv.FormatInt(def.ID, 10),
			def.Name,
			models.ConditionString(def.ConditionField, def.ConditionOperator, def.ConditionValue),
			strconv.Itoa(def.EscalationHours)+"h",
			levelChain(def),
		)
		if i == v.cursor {
			line = th.selected.Render(line)
		}
		lines = append(lines, line)
	}
	if pane != "" {
		lines = append(lines, pane)
	}
	return lipgloss.NewStyle().MaxWidth(max(0, width)).Height(max(0, height)).Render(strings.Join(lines, "\n"))
}

func workflowRowText(id, name, condition, escalation, levels string) string {
	return strings.Join([]string{
		cell(id, 5),
		cell(name, 22),
		cell(condition, 20),
		cell(escalation, 5),
		cell(levels, 30),
	}, " ")
}

func levelChain(def models.WorkflowDefinition) string {
	levels := def.SortedLevels()
	if len(levels) == 0 {
		return "-"
	}
	roles := make([]string, 0, len(levels))
	for _, level := range levels {
		roles = append(roles, level.Role)
	}
	return strings.Join(roles, " → ")
}

func (v *workflowsView) renderDetail(def models.WorkflowDefinition, width int, th theme) string {
	lines := []string{
		th.accent.Render(def.Name),
		orDash(def.Description),
		"Condition: " + orDash(models.ConditionString(def.ConditionField, def.ConditionOperator, def.ConditionValue)),
		fmt.Sprintf("Escalates after %dh", def.EscalationHours),
	}
	for _, level := range def.SortedLevels() {
		lines = append(lines, fmt.Sprintf("  L%d  %s", level.LevelNo, level.Role))
	}
	if def.CreatedBy != "" {
		lines = append(lines, th.muted.Render("created by "+def.CreatedBy))
	}
	return th.modal.Width(max(20, min(width-4, 72))).Render(strings.Join(lines, "\n"))
}
