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

	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/lifecycle"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

type requestEntry struct {
	Request  models.ApprovalRequest
	Workflow *models.WorkflowDefinition
}

type requestsView struct {
	cfg     Config
	session *session.Session
	feed    *feed[[]requestEntry]
	ctx     context.Context

	rows    []requestEntry
	cursor  int
	loadErr error

	confirmDelete int64
	remarksFor    int64
	busy          bool

	status    string
	statusErr bool
}

func newRequestsView(cfg Config) *requestsView {
	v := &requestsView{cfg: cfg, session: cfg.Session, ctx: context.Background()}
	v.feed = newFeed("requests", cfg.PollInterval, v.fetch)
	return v
}

func (v *requestsView) fetch(ctx context.Context) ([]requestEntry, error) {
	requests, err := v.cfg.Backend.ListInitiatorRequests(ctx, v.session.UserID())
	if err != nil {
		return nil, err
	}
	index := map[int64]*models.WorkflowDefinition{}
	if defs, err := v.cfg.Backend.ListWorkflows(ctx); err == nil {
		for i := range defs {
			index[defs[i].ID] = &defs[i]
		}
	}

	entries := make([]requestEntry, 0, len(requests))
	for _, req := range requests {
		entries = append(entries, requestEntry{Request: req, Workflow: index[req.WorkflowID]})
	}
	// newest first
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Request.ID > entries[j].Request.ID
	})
	return entries, nil
}

func (v *requestsView) start(ctx context.Context, send func(tea.Msg)) error {
	v.ctx = ctx
	return v.feed.start(ctx, send)
}

func (v *requestsView) stop() { v.feed.stop() }

func (v *requestsView) Init() tea.Cmd { return nil }

func (v *requestsView) Title() string { return "My requests" }

func (v *requestsView) UpdatedAt() time.Time { return v.feed.updatedAt() }

func (v *requestsView) Keys() string {
	switch {
	case v.confirmDelete != 0:
		return "y withdraw  n keep"
	case v.remarksFor != 0:
		return "esc close"
	default:
		return "d withdraw  v remarks  R refresh"
	}
}

func (v *requestsView) actions(entry requestEntry) []lifecycle.Action {
	viewer := lifecycle.Viewer{UserID: v.session.UserID(), Role: v.session.Role()}
	return lifecycle.Actions(viewer, lifecycle.Snapshot{Request: entry.Request, Workflow: entry.Workflow})
}

func (v *requestsView) selected() (requestEntry, bool) {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return requestEntry{}, false
	}
	return v.rows[v.cursor], true
}

func (v *requestsView) find(id int64) (requestEntry, bool) {
	for _, entry := range v.rows {
		if entry.Request.ID == id {
			return entry, true
		}
	}
	return requestEntry{}, false
}

func (v *requestsView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

func (v *requestsView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case feedMsg[[]requestEntry]:
		if !v.feed.accept(typed.result) {
			return nil
		}
		if typed.result.Err != nil {
			v.loadErr = typed.result.Err
			return nil
		}
		v.loadErr = nil
		v.applyRows(typed.result.Value)
	case actionMsg:
		return v.finishAction(typed)
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *requestsView) applyRows(rows []requestEntry) {
	var selectedID int64
	if entry, ok := v.selected(); ok {
		selectedID = entry.Request.ID
	}
	v.rows = rows
	v.cursor = 0
	for i, entry := range rows {
		if entry.Request.ID == selectedID {
			v.cursor = i
			break
		}
	}
	if _, ok := v.find(v.remarksFor); !ok {
		v.remarksFor = 0
	}
	if _, ok := v.find(v.confirmDelete); !ok && !v.busy {
		v.confirmDelete = 0
	}
}

func (v *requestsView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.busy {
		return nil
	}
	if v.confirmDelete != 0 {
		switch msg.String() {
		case "y":
			return v.withdraw(v.confirmDelete)
		case "n", "esc":
			v.confirmDelete = 0
			v.setStatus("", false)
		}
		return nil
	}
	if v.remarksFor != 0 {
		if msg.String() == "esc" || msg.String() == "v" {
			v.remarksFor = 0
		}
		return nil
	}

	switch msg.String() {
	case "up", "k":
		if v.cursor > 0 {
			v.cursor--
		}
	case "down", "j":
		if v.cursor < len(v.rows)-1 {
			v.cursor++
		}
	case "R":
		return v.feed.refreshCmd()
	case "d":
		entry, ok := v.selected()
		if !ok {
			return nil
		}
		if !lifecycle.Has(v.actions(entry), lifecycle.ActionDelete) {
			v.setStatus(fmt.Sprintf("#%d can no longer be withdrawn", entry.Request.ID), true)
			return nil
		}
		v.confirmDelete = entry.Request.ID
		v.setStatus(fmt.Sprintf("Withdraw request #%d? [y/n]", entry.Request.ID), false)
	case "v":
		entry, ok := v.selected()
		if !ok {
			return nil
		}
		if !lifecycle.Has(v.actions(entry), lifecycle.ActionViewRemarks) {
			v.setStatus("no remarks on this request", true)
			return nil
		}
		v.remarksFor = entry.Request.ID
		v.setStatus("", false)
	}
	return nil
}

func (v *requestsView) withdraw(id int64) tea.Cmd {
	entry, _ := v.find(id)
	payload := models.RequestActionPayload{
		ActorID:    v.session.UserID(),
		Role:       v.session.Role(),
		LevelNo:    entry.Request.CurrentLevel,
		WorkflowID: entry.Request.WorkflowID,
	}
	v.busy = true
	v.setStatus("withdrawing…", false)
	backend := v.cfg.Backend
	parent := v.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		return actionMsg{
			verb:  "Withdrew",
			id:    id,
			err:   backend.DeleteRequest(ctx, id),
			event: events.RequestAction(models.EventTypeRequestDeleted, id, payload),
		}
	}
}

func (v *requestsView) finishAction(msg actionMsg) tea.Cmd {
	v.busy = false
	v.confirmDelete = 0
	if msg.err != nil {
		v.cfg.OnEvent(events.Failure("withdraw", msg.err))
		v.setStatus(errorText(msg.err), true)
		return nil
	}
	v.cfg.OnEvent(msg.event)
	v.setStatus(fmt.Sprintf("%s request #%d", msg.verb, msg.id), false)
	return v.feed.refreshCmd()
}

func (v *requestsView) View(width, height int, th theme) string {
	lines := make([]string, 0, height)

	switch {
	case v.loadErr != nil:
		lines = append(lines, th.errText.Render("refresh failed: "+errorText(v.loadErr)))
	case v.feed.updatedAt().IsZero():
		lines = append(lines, th.muted.Render("loading…"))
	case len(v.rows) == 0:
		lines = append(lines, th.muted.Render("You have not submitted any requests."))
	}

	if len(v.rows) > 0 {
		header := strings.Join([]string{cell("ID", 6), cell("WORKFLOW", 20), cell("DATA", 30), cell("LEVEL", 5)}, " ")
		if v.cfg.ShowTimestamps {
			header += " " + cell("CREATED", 16)
		}
		lines = append(lines, th.muted.Render(header+"  STATUS"))
	}

	var pane string
	if v.remarksFor != 0 {
		pane = v.renderRemarks(width, th)
	}
	listHeight := height - len(lines) - lipgloss.Height(pane) - 2
	start, end := window(len(v.rows), v.cursor, listHeight)
	for i := start; i < end; i++ {
		lines = append(lines, v.renderRow(i, th))
	}
	if pane != "" {
		lines = append(lines, pane)
	}
	if v.status != "" {
		lines = append(lines, th.status(v.status, v.statusErr))
	}
	return lipgloss.NewStyle().MaxWidth(max(0, width)).Height(max(0, height)).Render(strings.Join(lines, "\n"))
}

func (v *requestsView) renderRow(i int, th theme) string {
	entry := v.rows[i]
	req := entry.Request
	workflow := "#" + strconv.FormatInt(req.WorkflowID, 10)
	if entry.Workflow != nil {
		workflow = entry.Workflow.Name
	}
	parts := []string{
		cell(strconv.FormatInt(req.ID, 10), 6),
		cell(workflow, 20),
		cell(dataText(req.RequestData.Map()), 30),
		cell(strconv.Itoa(req.CurrentLevel), 5),
	}
	if v.cfg.ShowTimestamps {
		created := "-"
		if !req.CreatedAt.IsZero() {
			created = req.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		parts = append(parts, cell(created, 16))
	}
	line := strings.Join(parts, " ") + "  " + th.badge(req.Status)
	if i == v.cursor {
		return th.selected.Render(line)
	}
	return line
}

func (v *requestsView) renderRemarks(width int, th theme) string {
	entry, ok := v.find(v.remarksFor)
	if !ok {
		return ""
	}
	snap := lifecycle.Snapshot{Request: entry.Request, Workflow: entry.Workflow}
	body := []string{
		th.accent.Render(fmt.Sprintf("Remarks on #%d (%s)", entry.Request.ID, lifecycle.Badge(entry.Request.Status))),
		snap.Remarks(),
	}
	return th.modal.Width(max(20, min(width-4, 72))).Render(strings.Join(body, "\n"))
}
