package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/refresh"
	"github.com/tOgg1/approvalctl/internal/session"
)

type fakeBackend struct {
	mu sync.Mutex

	workflows []models.WorkflowDefinition
	pending   []models.PendingItem
	requests  []models.ApprovalRequest
	summary   *models.SummaryPage
	log       []models.ApprovalLogEntry
	actionErr error

	approved []int64
	rejected map[int64]string
	deleted  []int64
	pages    []int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{rejected: map[int64]string{}}
}

func (f *fakeBackend) ListWorkflows(context.Context) ([]models.WorkflowDefinition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.WorkflowDefinition(nil), f.workflows...), nil
}

func (f *fakeBackend) ListPending(context.Context, api.Queue, int64) ([]models.PendingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PendingItem(nil), f.pending...), nil
}

func (f *fakeBackend) ListInitiatorRequests(context.Context, int64) ([]models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ApprovalRequest(nil), f.requests...), nil
}

func (f *fakeBackend) Approve(_ context.Context, id, _ int64) (*models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	f.approved = append(f.approved, id)
	return &models.ApprovalRequest{ID: id, Status: "PENDING", CurrentLevel: 2}, nil
}

func (f *fakeBackend) Reject(_ context.Context, id, _ int64, remarks string) (*models.ApprovalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return nil, f.actionErr
	}
	f.rejected[id] = remarks
	return &models.ApprovalRequest{ID: id, Status: "REJECTED", Remarks: remarks, CurrentLevel: 1}, nil
}

func (f *fakeBackend) DeleteRequest(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.actionErr != nil {
		return f.actionErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) Summary(_ context.Context, page, _ int) (*models.SummaryPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages = append(f.pages, page)
	return f.summary, nil
}

func (f *fakeBackend) RequestLog(context.Context, int64) ([]models.ApprovalLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.log, nil
}

func testSession(t *testing.T, role models.Role) *session.Session {
	t.Helper()
	s, err := session.New(&models.Identity{ID: 7, Name: "Mara", Role: role, Status: models.UserStatusActive})
	require.NoError(t, err)
	return s
}

func testConfig(t *testing.T, role models.Role, backend Backend) Config {
	t.Helper()
	cfg, err := Config{Session: testSession(t, role), Backend: backend}.normalize()
	require.NoError(t, err)
	return cfg
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func result[T any](seq uint64, value T) refresh.Result[T] {
	return refresh.Result[T]{Seq: seq, Value: value, FetchedAt: time.Now()}
}

func TestViewFor(t *testing.T) {
	cases := map[models.Role]ViewID{
		models.RoleManager:   ViewQueue,
		models.RoleFinance:   ViewQueue,
		models.RoleInitiator: ViewRequests,
		models.RoleAuditor:   ViewAudit,
		models.RoleAdmin:     ViewWorkflows,
	}
	for role, want := range cases {
		got, err := viewFor(role)
		require.NoError(t, err)
		require.Equal(t, want, got, role)
	}

	_, err := viewFor(models.Role("GUEST"))
	require.Error(t, err)
}

func TestConfigNormalize(t *testing.T) {
	backend := newFakeBackend()

	_, err := Config{Backend: backend}.normalize()
	require.Error(t, err)

	pending, err := session.New(&models.Identity{ID: 3, Role: models.RoleManager, Status: models.UserStatusPending})
	require.NoError(t, err)
	_, err = Config{Session: pending, Backend: backend}.normalize()
	require.Error(t, err)

	_, err = Config{Session: testSession(t, models.RoleManager)}.normalize()
	require.Error(t, err)

	_, err = Config{Session: testSession(t, models.RoleManager), Backend: backend, Theme: "neon"}.normalize()
	require.Error(t, err)

	cfg, err := Config{Session: testSession(t, models.RoleManager), Backend: backend}.normalize()
	require.NoError(t, err)
	require.Equal(t, defaultPollInterval, cfg.PollInterval)
	require.Equal(t, defaultPageSize, cfg.PageSize)
	require.Equal(t, "default", cfg.Theme)
	require.NotNil(t, cfg.OnEvent)
}

func TestNewModelPicksView(t *testing.T) {
	backend := newFakeBackend()

	m, err := NewModel(Config{Session: testSession(t, models.RoleFinance), Backend: backend})
	require.NoError(t, err)
	require.Equal(t, ViewQueue, m.viewID)
	require.Equal(t, "Finance queue", m.view.Title())

	m, err = NewModel(Config{Session: testSession(t, models.RoleAuditor), Backend: backend, Theme: "light"})
	require.NoError(t, err)
	require.Equal(t, ViewAudit, m.viewID)
}

func TestModelQuitKeys(t *testing.T) {
	m, err := NewModel(Config{Session: testSession(t, models.RoleInitiator), Backend: newFakeBackend()})
	require.NoError(t, err)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(key("?"))
	require.Nil(t, cmd)
	require.True(t, m.showHelp)
}

func TestModelQuitIgnoredWhileTyping(t *testing.T) {
	backend := newFakeBackend()
	backend.workflows = []models.WorkflowDefinition{testWorkflow()}
	m, err := NewModel(Config{Session: testSession(t, models.RoleManager), Backend: backend})
	require.NoError(t, err)

	view := m.view.(*queueView)
	view.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41)})})
	view.Update(key("enter"))
	view.Update(key("r"))
	require.True(t, m.capturing())

	_, cmd := m.Update(key("q"))
	require.Nil(t, cmd)
	require.Equal(t, "q", view.decision.Remarks())

	_, cmd = m.Update(key("ctrl+c"))
	require.NotNil(t, cmd)
}

func TestModelViewRendersHeader(t *testing.T) {
	m, err := NewModel(Config{Session: testSession(t, models.RoleAdmin), Backend: newFakeBackend()})
	require.NoError(t, err)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 20})

	out := m.View()
	require.Contains(t, out, "Workflows")
	require.Contains(t, out, "Mara (ADMIN)")
	require.Contains(t, out, "q quit")
}

func TestErrorTextPrefersServiceMessage(t *testing.T) {
	err := &api.APIError{Method: "PUT", Path: "/requests/4/approve", Status: 500, Message: "Request already processed"}
	require.Equal(t, "Request already processed", errorText(err))
	require.Equal(t, "boom", errorText(errors.New("boom")))
}
