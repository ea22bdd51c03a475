// Package tui implements the role dashboards: the approver queue, the
// initiator's requests, the auditor summary and the admin workflow list.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/session"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultPageSize     = 10
	actionTimeout       = 15 * time.Second
)

// Backend is the part of the service client the dashboards use.
type Backend interface {
	ListWorkflows(ctx context.Context) ([]models.WorkflowDefinition, error)
	ListPending(ctx context.Context, queue api.Queue, approverID int64) ([]models.PendingItem, error)
	ListInitiatorRequests(ctx context.Context, initiatorID int64) ([]models.ApprovalRequest, error)
	Approve(ctx context.Context, id, approverID int64) (*models.ApprovalRequest, error)
	Reject(ctx context.Context, id, approverID int64, remarks string) (*models.ApprovalRequest, error)
	DeleteRequest(ctx context.Context, id int64) error
	Summary(ctx context.Context, page, size int) (*models.SummaryPage, error)
	RequestLog(ctx context.Context, requestID int64) ([]models.ApprovalLogEntry, error)
}

var _ Backend = (*api.Client)(nil)

// Config configures a dashboard run.
type Config struct {
	Session        *session.Session
	Backend        Backend
	Theme          string
	PollInterval   time.Duration
	PageSize       int
	ShowTimestamps bool

	// OnEvent receives journal events for completed actions.
	OnEvent func(*models.Event)
}

type ViewID string

const (
	ViewQueue     ViewID = "queue"
	ViewRequests  ViewID = "requests"
	ViewAudit     ViewID = "audit"
	ViewWorkflows ViewID = "workflows"
)

// viewFor picks the dashboard for a role.
func viewFor(role models.Role) (ViewID, error) {
	switch role {
	case models.RoleManager, models.RoleFinance:
		return ViewQueue, nil
	case models.RoleInitiator:
		return ViewRequests, nil
	case models.RoleAuditor:
		return ViewAudit, nil
	case models.RoleAdmin:
		return ViewWorkflows, nil
	default:
		return "", fmt.Errorf("no dashboard for role %q", role)
	}
}

type viewModel interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, th theme) string
	Title() string
	Keys() string
	UpdatedAt() time.Time
	start(ctx context.Context, send func(tea.Msg)) error
	stop()
}

// Model is the root bubbletea model.
type Model struct {
	cfg    Config
	theme  theme
	viewID ViewID
	view   viewModel

	ctx    context.Context
	cancel context.CancelFunc

	width    int
	height   int
	showHelp bool
}

func (c Config) normalize() (Config, error) {
	if c.Session == nil || !c.Session.Active() {
		return Config{}, errors.New("an active session is required")
	}
	if c.Backend == nil {
		return Config{}, errors.New("backend is required")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultPageSize
	}
	c.Theme = strings.TrimSpace(c.Theme)
	if c.Theme == "" {
		c.Theme = "default"
	}
	if _, ok := palettes[c.Theme]; !ok {
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}
	if c.OnEvent == nil {
		c.OnEvent = func(*models.Event) {}
	}
	return c, nil
}

// NewModel builds the dashboard for the session's role.
func NewModel(cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	id, err := viewFor(normalized.Session.Role())
	if err != nil {
		return nil, err
	}

	m := &Model{
		cfg:    normalized,
		theme:  newTheme(normalized.Theme),
		viewID: id,
	}

	switch id {
	case ViewQueue:
		queue, err := api.QueueFor(normalized.Session.Role())
		if err != nil {
			return nil, err
		}
		m.view = newQueueView(normalized, queue)
	case ViewRequests:
		m.view = newRequestsView(normalized)
	case ViewAudit:
		m.view = newAuditView(normalized)
	case ViewWorkflows:
		m.view = newWorkflowsView(normalized)
	}
	return m, nil
}

// Run shows the dashboard until the user quits.
func Run(ctx context.Context, cfg Config) error {
	model, err := NewModel(cfg)
	if err != nil {
		return err
	}

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if err := model.Start(ctx, program.Send); err != nil {
		return err
	}
	defer model.Close()

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Start begins background refreshes. Results reach the program through send.
func (m *Model) Start(ctx context.Context, send func(tea.Msg)) error {
	m.ctx, m.cancel = context.WithCancel(ctx)
	return m.view.start(m.ctx, send)
}

// Close stops refreshing and cancels in-flight calls.
func (m *Model) Close() error {
	if m == nil {
		return nil
	}
	if m.view != nil {
		m.view.stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

func (m *Model) Init() tea.Cmd {
	return m.view.Init()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if !m.capturing() {
				return m, tea.Quit
			}
		case "?":
			if !m.capturing() {
				m.showHelp = !m.showHelp
				return m, nil
			}
		}
	}
	return m, m.view.Update(msg)
}

// capturing reports whether the view is taking text input.
func (m *Model) capturing() bool {
	if c, ok := m.view.(interface{ capturing() bool }); ok {
		return c.capturing()
	}
	return false
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 0 {
		contentHeight = 0
	}
	body := m.view.View(m.width, contentHeight, m.theme)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	s := m.cfg.Session
	left := "approvalctl · " + m.view.Title()
	center := fmt.Sprintf("%s (%s)", s.Name(), s.Role())
	right := "loading"
	if updated := m.view.UpdatedAt(); !updated.IsZero() {
		right = "updated " + updated.Local().Format("15:04:05")
	}
	return m.theme.header.Width(max(0, m.width)).Render(joinHeader(left, center, right, m.width-2))
}

func (m *Model) renderFooter() string {
	keys := m.view.Keys() + "  ? help  q quit"
	if m.showHelp {
		keys += "  (↑/↓ move, R refresh now; lists refresh every " + m.cfg.PollInterval.String() + ")"
	}
	return m.theme.footer.Width(max(0, m.width)).Render(truncateVis(keys, max(0, m.width-2)))
}

func joinHeader(left, center, right string, width int) string {
	if width <= 0 {
		return left
	}
	space := width - lipgloss.Width(left) - lipgloss.Width(center) - lipgloss.Width(right)
	if space < 2 {
		return truncateVis(left+"  "+right, width)
	}
	leftGap := space / 2
	return left + strings.Repeat(" ", leftGap) + center + strings.Repeat(" ", space-leftGap) + right
}

// actionMsg reports a finished mutation.
type actionMsg struct {
	verb    string
	id      int64
	request *models.ApprovalRequest
	event   *models.Event
	err     error
}

// errorText renders a backend failure as the service reported it.
func errorText(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
