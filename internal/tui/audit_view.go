package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/approvalctl/internal/models"
)

// logMsg carries a fetched request history.
type logMsg struct {
	requestID int64
	entries   []models.ApprovalLogEntry
	err       error
}

type auditView struct {
	cfg  Config
	feed *feed[*models.SummaryPage]
	ctx  context.Context

	// page is zero-based and read by the fetch goroutine.
	page atomic.Int64

	current *models.SummaryPage
	rows    []models.SummaryRow
	cursor  int
	loadErr error

	filter    string
	filtering bool

	logFor  int64
	log     []models.ApprovalLogEntry
	logErr  error
	loading bool
}

func newAuditView(cfg Config) *auditView {
	v := &auditView{cfg: cfg, ctx: context.Background()}
	v.feed = newFeed("audit", cfg.PollInterval, v.fetch)
	return v
}

func (v *auditView) fetch(ctx context.Context) (*models.SummaryPage, error) {
	return v.cfg.Backend.Summary(ctx, int(v.page.Load()), v.cfg.PageSize)
}

func (v *auditView) start(ctx context.Context, send func(tea.Msg)) error {
	v.ctx = ctx
	return v.feed.start(ctx, send)
}

func (v *auditView) stop() { v.feed.stop() }

func (v *auditView) Init() tea.Cmd { return nil }

func (v *auditView) Title() string { return "Audit summary" }

func (v *auditView) UpdatedAt() time.Time { return v.feed.updatedAt() }

func (v *auditView) Keys() string {
	switch {
	case v.filtering:
		return "type to filter  enter done  esc clear"
	case v.logFor != 0:
		return "esc close"
	default:
		return "enter history  n/p page  / filter  R refresh"
	}
}

func (v *auditView) capturing() bool { return v.filtering }

func (v *auditView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case feedMsg[*models.SummaryPage]:
		if !v.feed.accept(typed.result) {
			return nil
		}
		if typed.result.Err != nil {
			v.loadErr = typed.result.Err
			return nil
		}
		v.loadErr = nil
		v.current = typed.result.Value
		v.applyFilter()
	case logMsg:
		if typed.requestID != v.logFor {
			return nil
		}
		v.loading = false
		v.log = typed.entries
		v.logErr = typed.err
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *auditView) applyFilter() {
	if v.current == nil {
		v.rows = nil
		return
	}
	v.rows = models.FilterSummary(v.current.Data, v.filter)
	if v.cursor >= len(v.rows) {
		v.cursor = max(0, len(v.rows)-1)
	}
}

func (v *auditView) totalPages() int {
	if v.current == nil {
		return 0
	}
	return v.current.TotalPages
}

func (v *auditView) handleKey(msg tea.KeyMsg) tea.Cmd {
	if v.filtering {
		switch msg.Type {
		case tea.KeyEnter:
			v.filtering = false
		case tea.KeyEsc:
			v.filtering = false
			v.filter = ""
		case tea.KeyBackspace:
			if r := []rune(v.filter); len(r) > 0 {
				v.filter = string(r[:len(r)-1])
			}
		case tea.KeySpace:
			v.filter += " "
		case tea.KeyRunes:
			v.filter += string(msg.Runes)
		}
		v.applyFilter()
		return nil
	}
	if v.logFor != 0 {
		if msg.String() == "esc" {
			v.logFor = 0
			v.log = nil
			v.logErr = nil
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
	case "n":
		if int(v.page.Load())+1 < v.totalPages() {
			v.page.Add(1)
			v.cursor = 0
			return v.feed.refreshCmd()
		}
	case "p":
		if v.page.Load() > 0 {
			v.page.Add(-1)
			v.cursor = 0
			return v.feed.refreshCmd()
		}
	case "/":
		v.filtering = true
	case "R":
		return v.feed.refreshCmd()
	case "enter":
		if v.cursor < 0 || v.cursor >= len(v.rows) {
			return nil
		}
		return v.openLog(v.rows[v.cursor].Request.ID)
	}
	return nil
}

func (v *auditView) openLog(id int64) tea.Cmd {
	v.logFor = id
	v.log = nil
	v.logErr = nil
	v.loading = true
	backend := v.cfg.Backend
	parent := v.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		entries, err := backend.RequestLog(ctx, id)
		return logMsg{requestID: id, entries: entries, err: err}
	}
}

func (v *auditView) View(width, height int, th theme) string {
	lines := make([]string, 0, height)

	switch {
	case v.loadErr != nil:
		lines = append(lines, th.errText.Render("refresh failed: "+errorText(v.loadErr)))
	case v.current == nil:
		lines = append(lines, th.muted.Render("loading…"))
	}

	if v.filtering || v.filter != "" {
		lines = append(lines, th.accent.Render("filter: ")+v.filter)
	}

	if v.current != nil {
		if len(v.rows) == 0 {
			lines = append(lines, th.muted.Render("No requests match."))
		} else {
			lines = append(lines, th.muted.Render(auditRowText("REQUEST", "INITIATOR", "LEVEL", "LAST ACTION", "BY")+"  STATUS"))
		}
	}

	var pane string
	if v.logFor != 0 {
		pane = v.renderLog(width, th)
	}
	listHeight := height - len(lines) - lipgloss.Height(pane) - 2
	start, end := window(len(v.rows), v.cursor, listHeight)
	for i := start; i < end; i++ {
		line := v.renderRow(v.rows[i], th)
		if i == v.cursor {
			line = th.selected.Render(line)
		}
		lines = append(lines, line)
	}
	if pane != "" {
		lines = append(lines, pane)
	}
	if v.current != nil {
		lines = append(lines, th.muted.Render(fmt.Sprintf("Page %d of %d (%d requests)",
			v.page.Load()+1, max(1, v.current.TotalPages), v.current.TotalElements)))
	}
	return lipgloss.NewStyle().MaxWidth(max(0, width)).Height(max(0, height)).Render(strings.Join(lines, "\n"))
}

func auditRowText(id, initiator, level, action, by string) string {
	return strings.Join([]string{
		cell(id, 8),
		cell(initiator, 18),
		cell(level, 5),
		cell(action, 12),
		cell(by, 10),
	}, " ")
}

func (v *auditView) renderRow(row models.SummaryRow, th theme) string {
	action, by := "-", "-"
	if row.LastAction != nil {
		action = string(row.LastAction.NormalizedAction())
		by = approverText(row.LastAction.ApproverID)
	}
	return auditRowText(
		strconv.FormatInt(row.Request.ID, 10),
		row.InitiatorName,
		strconv.Itoa(row.Request.CurrentLevel),
		action,
		by,
	) + "  " + th.badge(row.Request.Status)
}

func (v *auditView) renderLog(width int, th theme) string {
	lines := []string{th.accent.Render(fmt.Sprintf("History of #%d", v.logFor))}
	switch {
	case v.loading:
		lines = append(lines, th.muted.Render("loading…"))
	case v.logErr != nil:
		lines = append(lines, th.errText.Render(errorText(v.logErr)))
	case len(v.log) == 0:
		lines = append(lines, th.muted.Render("no entries"))
	}
	for _, entry := range v.log {
		at := "-"
		if !entry.ActionAt.IsZero() {
			at = entry.ActionAt.Local().Format("2006-01-02 15:04")
		}
		line := fmt.Sprintf("%s  L%d %-9s %-10s %s → %s",
			at, entry.LevelNo, entry.Role, entry.NormalizedAction(),
			orDash(entry.PreviousStatus), orDash(entry.NewStatus))
		if remarks := strings.TrimSpace(entry.Remarks); remarks != "" {
			line += "  " + th.muted.Render(remarks)
		}
		lines = append(lines, line)
	}
	return th.modal.Width(max(20, min(width-4, 96))).Render(strings.Join(lines, "\n"))
}

func approverText(id *int64) string {
	if id == nil {
		return "system"
	}
	return "#" + strconv.FormatInt(*id, 10)
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
