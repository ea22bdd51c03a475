package tui

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/models"
)

func testWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		ID:                9,
		Name:              "Purchase",
		ConditionField:    "amount",
		ConditionOperator: models.OperatorLess,
		ConditionValue:    50000,
		EscalationHours:   24,
		ApprovalLevels: []models.ApprovalLevel{
			{LevelNo: 1, Role: "MANAGER"},
			{LevelNo: 2, Role: "FINANCE"},
		},
	}
}

func testEntry(id int64) queueEntry {
	def := testWorkflow()
	return queueEntry{
		Item: models.PendingItem{
			Request: models.ApprovalRequest{
				ID:           id,
				WorkflowID:   def.ID,
				InitiatorID:  3,
				RequestData:  models.RequestData(`{"amount":1200}`),
				Status:       "PENDING",
				CurrentLevel: 1,
			},
			InitiatorName: "Ines",
		},
		Workflow: &def,
	}
}

func collectEvents(cfg *Config) *[]*models.Event {
	var got []*models.Event
	cfg.OnEvent = func(e *models.Event) { got = append(got, e) }
	return &got
}

func TestQueueViewDropsStaleResults(t *testing.T) {
	v := newQueueView(testConfig(t, models.RoleManager, newFakeBackend()), api.QueueManager)

	v.Update(feedMsg[[]queueEntry]{result: result(2, []queueEntry{testEntry(41), testEntry(42)})})
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(40)})})

	require.Len(t, v.rows, 2)
	require.Equal(t, int64(41), v.rows[0].Item.Request.ID)
}

func TestQueueViewKeepsCursorOnRefresh(t *testing.T) {
	v := newQueueView(testConfig(t, models.RoleManager, newFakeBackend()), api.QueueManager)
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41), testEntry(42)})})
	v.Update(key("j"))
	require.Equal(t, 1, v.cursor)

	v.Update(feedMsg[[]queueEntry]{result: result(2, []queueEntry{testEntry(40), testEntry(41), testEntry(42)})})
	require.Equal(t, 2, v.cursor)
}

func TestQueueViewRejectRequiresRemarks(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t, models.RoleManager, backend)
	got := collectEvents(&cfg)
	v := newQueueView(cfg, api.QueueManager)
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41)})})

	v.Update(key("enter"))
	require.NotNil(t, v.decision)
	v.Update(key("r"))
	require.True(t, v.capturing())

	v.Update(key(" "))
	cmd := v.Update(key("enter"))
	require.Nil(t, cmd)
	require.Equal(t, "remarks required", v.status)
	require.True(t, v.statusErr)
	require.Empty(t, backend.rejected)

	v.Update(key("backspace"))
	v.Update(key("over budget"))
	cmd = v.Update(key("enter"))
	require.NotNil(t, cmd)
	require.True(t, v.busy)

	msg := cmd()
	require.Equal(t, "over budget", backend.rejected[41])

	v.Update(msg)
	require.False(t, v.busy)
	require.Nil(t, v.decision)
	require.Contains(t, v.status, "Rejected #41")
	require.Len(t, *got, 1)
	require.Equal(t, models.EventTypeRequestRejected, (*got)[0].Type)
}

func TestQueueViewApprove(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig(t, models.RoleManager, backend)
	got := collectEvents(&cfg)
	v := newQueueView(cfg, api.QueueManager)
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41)})})

	v.Update(key("enter"))
	require.Contains(t, v.View(80, 20, newTheme("default")), "approve → PENDING at level 2")

	cmd := v.Update(key("a"))
	require.NotNil(t, cmd)
	v.Update(cmd())

	require.Equal(t, []int64{41}, backend.approved)
	require.Equal(t, "Approved #41: PENDING at level 2", v.status)
	require.Equal(t, models.EventTypeRequestApproved, (*got)[0].Type)
}

func TestQueueViewNotAtLevel(t *testing.T) {
	v := newQueueView(testConfig(t, models.RoleFinance, newFakeBackend()), api.QueueFinance)
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41)})})

	v.Update(key("enter"))
	require.Nil(t, v.decision)
	require.True(t, v.statusErr)
}

func TestQueueViewActionFailureKeepsModal(t *testing.T) {
	backend := newFakeBackend()
	backend.actionErr = &api.APIError{Status: 500, Message: "Request already processed"}
	cfg := testConfig(t, models.RoleManager, backend)
	got := collectEvents(&cfg)
	v := newQueueView(cfg, api.QueueManager)
	v.Update(feedMsg[[]queueEntry]{result: result(1, []queueEntry{testEntry(41)})})

	v.Update(key("enter"))
	cmd := v.Update(key("a"))
	v.Update(cmd())

	require.NotNil(t, v.decision)
	require.Equal(t, "Request already processed", v.status)
	require.Equal(t, models.EventTypeError, (*got)[0].Type)
}

func TestRequestsViewWithdraw(t *testing.T) {
	backend := newFakeBackend()
	v := newRequestsView(testConfig(t, models.RoleInitiator, backend))
	rows := []requestEntry{
		{Request: models.ApprovalRequest{ID: 5, InitiatorID: 7, Status: "APPROVED"}},
		{Request: models.ApprovalRequest{ID: 4, InitiatorID: 7, Status: "PENDING", CurrentLevel: 1}},
	}
	v.Update(feedMsg[[]requestEntry]{result: result(1, rows)})

	v.Update(key("d"))
	require.Zero(t, v.confirmDelete)
	require.True(t, v.statusErr)

	v.Update(key("j"))
	v.Update(key("d"))
	require.Equal(t, int64(4), v.confirmDelete)

	v.Update(key("n"))
	require.Zero(t, v.confirmDelete)
	require.Empty(t, backend.deleted)

	v.Update(key("d"))
	cmd := v.Update(key("y"))
	require.NotNil(t, cmd)
	v.Update(cmd())
	require.Equal(t, []int64{4}, backend.deleted)
	require.Equal(t, "Withdrew request #4", v.status)
}

func TestRequestsViewRemarks(t *testing.T) {
	v := newRequestsView(testConfig(t, models.RoleInitiator, newFakeBackend()))
	rows := []requestEntry{
		{Request: models.ApprovalRequest{ID: 4, InitiatorID: 7, Status: "REJECTED", Remarks: "missing receipt"}},
	}
	v.Update(feedMsg[[]requestEntry]{result: result(1, rows)})

	v.Update(key("v"))
	require.Equal(t, int64(4), v.remarksFor)
	require.Contains(t, v.View(80, 20, newTheme("dark")), "missing receipt")

	v.Update(key("esc"))
	require.Zero(t, v.remarksFor)
}

func auditPage() *models.SummaryPage {
	approver := int64(12)
	return &models.SummaryPage{
		Data: []models.SummaryRow{
			{Request: models.ApprovalRequest{ID: 31, InitiatorID: 7, Status: "PENDING", CurrentLevel: 2},
				InitiatorName: "Ines",
				LastAction:    &models.ApprovalLogEntry{Action: "APPROVED", ApproverID: &approver}},
			{Request: models.ApprovalRequest{ID: 30, InitiatorID: 8, Status: "REJECTED"}, InitiatorName: "Olu"},
		},
		TotalPages:    2,
		TotalElements: 12,
	}
}

func TestAuditViewPagingAndFilter(t *testing.T) {
	backend := newFakeBackend()
	v := newAuditView(testConfig(t, models.RoleAuditor, backend))
	v.Update(feedMsg[*models.SummaryPage]{result: result(1, auditPage())})
	require.Len(t, v.rows, 2)

	require.NotNil(t, v.Update(key("n")))
	require.Equal(t, int64(1), v.page.Load())
	require.Nil(t, v.Update(key("n")))
	require.Equal(t, int64(1), v.page.Load())
	v.Update(key("p"))
	require.Equal(t, int64(0), v.page.Load())

	v.Update(key("/"))
	require.True(t, v.capturing())
	v.Update(key("12"))
	require.Len(t, v.rows, 1)
	require.Equal(t, int64(31), v.rows[0].Request.ID)

	v.Update(key("esc"))
	require.False(t, v.capturing())
	require.Len(t, v.rows, 2)
}

func TestAuditViewLoadsHistory(t *testing.T) {
	backend := newFakeBackend()
	backend.log = []models.ApprovalLogEntry{
		{LevelNo: 1, Role: "MANAGER", Action: "APPROVED", PreviousStatus: "PENDING", NewStatus: "PENDING"},
	}
	v := newAuditView(testConfig(t, models.RoleAuditor, backend))
	v.Update(feedMsg[*models.SummaryPage]{result: result(1, auditPage())})

	cmd := v.Update(key("enter"))
	require.NotNil(t, cmd)
	require.Contains(t, v.View(100, 20, newTheme("default")), "loading…")

	v.Update(cmd())
	require.False(t, v.loading)
	require.Len(t, v.log, 1)
	require.Contains(t, v.View(100, 20, newTheme("default")), "History of #31")

	// a late answer for another request is ignored
	v.Update(logMsg{requestID: 30, err: errors.New("late")})
	require.NoError(t, v.logErr)
}

func TestAuditViewFetchUsesPage(t *testing.T) {
	backend := newFakeBackend()
	backend.summary = auditPage()
	v := newAuditView(testConfig(t, models.RoleAuditor, backend))
	v.page.Store(3)

	_, err := v.fetch(t.Context())
	require.NoError(t, err)
	require.Equal(t, []int{3}, backend.pages)
}

func TestWorkflowsViewDetail(t *testing.T) {
	v := newWorkflowsView(testConfig(t, models.RoleAdmin, newFakeBackend()))
	v.Update(feedMsg[[]models.WorkflowDefinition]{result: result(1, []models.WorkflowDefinition{testWorkflow()})})

	out := v.View(100, 20, newTheme("default"))
	require.Contains(t, out, "Purchase")
	require.Contains(t, out, "MANAGER → FINANCE")

	v.Update(key("enter"))
	require.Contains(t, v.View(100, 20, newTheme("default")), "Escalates after 24h")
}

func TestQueueFetchJoinsWorkflows(t *testing.T) {
	backend := newFakeBackend()
	entry := testEntry(41)
	backend.pending = []models.PendingItem{entry.Item}
	backend.workflows = []models.WorkflowDefinition{testWorkflow()}
	v := newQueueView(testConfig(t, models.RoleManager, backend), api.QueueManager)

	entries, err := v.fetch(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Workflow)
	require.Equal(t, "Purchase", entries[0].Workflow.Name)
}
