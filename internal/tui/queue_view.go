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

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/events"
	"github.com/tOgg1/approvalctl/internal/lifecycle"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

// queueEntry is a pending item with the workflow it runs under, when known.
type queueEntry struct {
	Item     models.PendingItem
	Workflow *models.WorkflowDefinition
}

func (e queueEntry) snapshot() lifecycle.Snapshot {
	return lifecycle.Snapshot{Request: e.Item.Request, Workflow: e.Workflow}
}

type queueView struct {
	cfg     Config
	session *session.Session
	queue   api.Queue
	feed    *feed[[]queueEntry]
	ctx     context.Context

	rows     []queueEntry
	cursor   int
	loadErr  error
	decision *lifecycle.Decision
	busy     bool

	status    string
	statusErr bool
}

func newQueueView(cfg Config, queue api.Queue) *queueView {
	v := &queueView{cfg: cfg, session: cfg.Session, queue: queue, ctx: context.Background()}
	v.feed = newFeed("queue", cfg.PollInterval, v.fetch)
	return v
}

// fetch loads the queue and the workflows its items run under.
func (v *queueView) fetch(ctx context.Context) ([]queueEntry, error) {
	items, err := v.cfg.Backend.ListPending(ctx, v.queue, v.session.UserID())
	if err != nil {
		return nil, err
	}
	index := map[int64]*models.WorkflowDefinition{}
	if defs, err := v.cfg.Backend.ListWorkflows(ctx); err == nil {
		for i := range defs {
			index[defs[i].ID] = &defs[i]
		}
	}

	entries := make([]queueEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, queueEntry{Item: item, Workflow: index[item.Request.WorkflowID]})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Item.Request.ID < entries[j].Item.Request.ID
	})
	return entries, nil
}

func (v *queueView) start(ctx context.Context, send func(tea.Msg)) error {
	v.ctx = ctx
	return v.feed.start(ctx, send)
}

func (v *queueView) stop() { v.feed.stop() }

func (v *queueView) Init() tea.Cmd { return nil }

func (v *queueView) Title() string {
	return strings.ToUpper(string(v.queue[:1])) + string(v.queue[1:]) + " queue"
}

func (v *queueView) UpdatedAt() time.Time { return v.feed.updatedAt() }

func (v *queueView) Keys() string {
	switch {
	case v.decision != nil && v.decision.Rejecting():
		return "type remarks  enter confirm reject  esc cancel"
	case v.decision != nil:
		return "a approve  r reject  esc close"
	default:
		return "enter decide  R refresh"
	}
}

func (v *queueView) capturing() bool {
	return v.decision != nil && v.decision.Rejecting()
}

func (v *queueView) selected() (queueEntry, bool) {
	if v.cursor < 0 || v.cursor >= len(v.rows) {
		return queueEntry{}, false
	}
	return v.rows[v.cursor], true
}

func (v *queueView) setStatus(text string, isErr bool) {
	v.status = text
	v.statusErr = isErr
}

func (v *queueView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case feedMsg[[]queueEntry]:
		if !v.feed.accept(typed.result) {
			return nil
		}
		if typed.result.Err != nil {
			v.loadErr = typed.result.Err
			return nil
		}
		v.loadErr = nil
		v.applyRows(typed.result.Value)
		return nil
	case actionMsg:
		return v.finishAction(typed)
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

// applyRows replaces the list, keeping the cursor on the same request and
// closing the modal if its request left the queue.
func (v *queueView) applyRows(rows []queueEntry) {
	var selectedID int64
	if entry, ok := v.selected(); ok {
		selectedID = entry.Item.Request.ID
	}
	v.rows = rows
	v.cursor = 0
	for i, entry := range rows {
		if entry.Item.Request.ID == selectedID {
			v.cursor = i
			break
		}
	}
	if v.decision != nil && !v.busy && !v.contains(v.decision.RequestID()) {
		v.decision = nil
	}
}

func (v *queueView) contains(id int64) bool {
	for _, entry := range v.rows {
		if entry.Item.Request.ID == id {
			return true
		}
	}
	return false
}

func (v *queueView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.decision != nil {
		return v.handleDecisionKey(msg)
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
	case "enter":
		entry, ok := v.selected()
		if !ok {
			return nil
		}
		actions := lifecycle.Actions(v.viewer(), entry.snapshot())
		if !lifecycle.Has(actions, lifecycle.ActionApprove) {
			v.setStatus(fmt.Sprintf("#%d is not at your level", entry.Item.Request.ID), true)
			return nil
		}
		v.decision = lifecycle.NewDecision(entry.Item.Request.ID)
		v.setStatus("", false)
	}
	return nil
}

func (v *queueView) handleDecisionKey(msg tea.KeyMsg) tea.Cmd {
	if v.busy {
		return nil
	}
	d := v.decision

	if d.Rejecting() {
		switch msg.Type {
		case tea.KeyEsc:
			d.ToggleReject()
			v.setStatus("", false)
		case tea.KeyEnter:
			outcome, err := d.ConfirmReject(d.Remarks())
			if err != nil {
				v.setStatus(err.Error(), true)
				return nil
			}
			return v.sendOutcome(outcome)
		case tea.KeyBackspace:
			remarks := []rune(d.Remarks())
			if len(remarks) > 0 {
				d.SetRemarks(string(remarks[:len(remarks)-1]))
			}
		case tea.KeySpace:
			d.SetRemarks(d.Remarks() + " ")
		case tea.KeyRunes:
			d.SetRemarks(d.Remarks() + string(msg.Runes))
		}
		return nil
	}

	switch msg.String() {
	case "esc":
		v.decision = nil
	case "r":
		d.ToggleReject()
	case "a":
		outcome, err := d.Approve()
		if err != nil {
			v.setStatus(err.Error(), true)
			return nil
		}
		return v.sendOutcome(outcome)
	}
	return nil
}

func (v *queueView) viewer() lifecycle.Viewer {
	return lifecycle.Viewer{UserID: v.session.UserID(), Role: v.session.Role()}
}

func (v *queueView) entry(id int64) (queueEntry, bool) {
	for _, entry := range v.rows {
		if entry.Item.Request.ID == id {
			return entry, true
		}
	}
	return queueEntry{}, false
}

// sendOutcome issues the confirmed decision.
func (v *queueView) sendOutcome(outcome lifecycle.Outcome) tea.Cmd {
	entry, _ := v.entry(outcome.RequestID)
	payload := models.RequestActionPayload{
		ActorID:    v.session.UserID(),
		Role:       v.session.Role(),
		LevelNo:    entry.Item.Request.CurrentLevel,
		WorkflowID: entry.Item.Request.WorkflowID,
		Remarks:    outcome.Remarks,
	}
	if prediction, err := lifecycle.PredictApprove(entry.Item.Request, entry.Workflow); err == nil && outcome.Action == lifecycle.ActionApprove {
		payload.PredictedEnd = prediction.String()
	}

	v.busy = true
	v.setStatus("sending…", false)
	backend := v.cfg.Backend
	approverID := v.session.UserID()
	parent := v.ctx

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()

		msg := actionMsg{id: outcome.RequestID}
		switch outcome.Action {
		case lifecycle.ActionApprove:
			msg.verb = "Approved"
			msg.request, msg.err = backend.Approve(ctx, outcome.RequestID, approverID)
			msg.event = events.RequestAction(models.EventTypeRequestApproved, outcome.RequestID, payload)
		case lifecycle.ActionReject:
			msg.verb = "Rejected"
			msg.request, msg.err = backend.Reject(ctx, outcome.RequestID, approverID, outcome.Remarks)
			msg.event = events.RequestAction(models.EventTypeRequestRejected, outcome.RequestID, payload)
		}
		return msg
	}
}

func (v *queueView) finishAction(msg actionMsg) tea.Cmd {
	v.busy = false
	if msg.err != nil {
		v.cfg.OnEvent(events.Failure(strings.ToLower(msg.verb), msg.err))
		v.setStatus(errorText(msg.err), true)
		return nil
	}

	v.decision = nil
	v.cfg.OnEvent(msg.event)
	text := fmt.Sprintf("%s #%d", msg.verb, msg.id)
	if msg.request != nil {
		text += ": " + lifecycle.Badge(msg.request.Status)
		if !lifecycle.ParseStatus(msg.request.Status).Terminal() {
			text += " at level " + strconv.Itoa(msg.request.CurrentLevel)
		}
	}
	v.setStatus(text, false)
	return v.feed.refreshCmd()
}

func (v *queueView) View(width, height int, th theme) string {
	lines := make([]string, 0, height)

	switch {
	case v.loadErr != nil:
		lines = append(lines, th.errText.Render("refresh failed: "+errorText(v.loadErr)))
	case v.feed.updatedAt().IsZero():
		lines = append(lines, th.muted.Render("loading…"))
	case len(v.rows) == 0:
		lines = append(lines, th.muted.Render("Nothing is waiting at your level."))
	}

	if len(v.rows) > 0 {
		lines = append(lines, th.muted.Render(v.rowText("ID", "INITIATOR", "WORKFLOW", "DATA", "LEVEL", "WAITING")+"  STATUS"))
	}

	var modal string
	if v.decision != nil {
		modal = v.renderDecision(width, th)
	}
	listHeight := height - len(lines) - lipgloss.Height(modal) - 2
	start, end := window(len(v.rows), v.cursor, listHeight)
	for i := start; i < end; i++ {
		lines = append(lines, v.renderRow(i, th))
	}

	if modal != "" {
		lines = append(lines, modal)
	}
	if v.status != "" {
		lines = append(lines, th.status(v.status, v.statusErr))
	}
	return lipgloss.NewStyle().MaxWidth(max(0, width)).Height(max(0, height)).Render(strings.Join(lines, "\n"))
}

func (v *queueView) rowText(id, initiator, workflow, data, level, waiting string) string {
	return strings.Join([]string{
		cell(id, 6),
		cell(initiator, 16),
		cell(workflow, 18),
		cell(data, 32),
		cell(level, 5),
		cell(waiting, 8),
	}, " ")
}

func (v *queueView) renderRow(i int, th theme) string {
	entry := v.rows[i]
	req := entry.Item.Request
	workflow := "#" + strconv.FormatInt(req.WorkflowID, 10)
	if entry.Workflow != nil {
		workflow = entry.Workflow.Name
	}
	line := v.rowText(
		strconv.FormatInt(req.ID, 10),
		entry.Item.InitiatorName,
		workflow,
		dataText(req.RequestData.Map()),
		strconv.Itoa(req.CurrentLevel),
		since(req),
	) + "  " + th.badge(req.Status)
	if i == v.cursor {
		return th.selected.Render(line)
	}
	return line
}

func (v *queueView) renderDecision(width int, th theme) string {
	d := v.decision
	entry, _ := v.entry(d.RequestID())
	req := entry.Item.Request

	lines := []string{
		th.accent.Render(fmt.Sprintf("Request #%d from %s", req.ID, entry.Item.InitiatorName)),
		dataText(req.RequestData.Map()),
	}
	if prediction, err := lifecycle.PredictApprove(req, entry.Workflow); err == nil {
		lines = append(lines, th.muted.Render("approve → "+prediction.String()))
	}
	if d.Rejecting() {
		lines = append(lines, "Remarks: "+d.Remarks()+"█")
	} else {
		lines = append(lines, th.muted.Render("[a] approve   [r] reject"))
	}
	return th.modal.Width(max(20, min(width-4, 72))).Render(strings.Join(lines, "\n"))
}

func dataText(data map[string]any) string {
	if len(data) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, data[key]))
	}
	return strings.Join(parts, " ")
}

func since(req models.ApprovalRequest) string {
	at := req.LastActionAt
	if at.IsZero() {
		at = req.CreatedAt
	}
	if at.IsZero() {
		return "-"
	}
	d := time.Since(at.Time)
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
