package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/approvalctl/internal/config"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/testutil"
)

func newTestClient(t *testing.T, backend *testutil.Backend) *Client {
	t.Helper()
	client, err := New(Options{BaseURL: backend.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	return client
}

func purchaseWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:              "Purchase",
		ConditionField:    "amount",
		ConditionOperator: models.OperatorGreater,
		ConditionValue:    50000,
		EscalationHours:   24,
		ApprovalLevels: []models.ApprovalLevel{
			{LevelNo: 1, Role: "Manager"},
			{LevelNo: 2, Role: "Finance"},
		},
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost"})
	require.Error(t, err)

	client, err := NewFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8080/api", client.BaseURL())
}

func TestLogin(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.AddUser(models.Identity{ID: 7, Name: "Mia", Email: "mia@example.com", Role: models.RoleManager, Status: models.UserStatusActive}, "pw")
	client := newTestClient(t, backend)
	ctx := context.Background()

	identity, err := client.Login(ctx, Credentials{Email: "mia@example.com", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, models.Identity{ID: 7, Name: "Mia", Email: "mia@example.com", Role: models.RoleManager, Status: models.UserStatusActive}, *identity)

	_, err = client.Login(ctx, Credentials{Email: "mia@example.com", Password: "nope"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "Invalid password", apiErr.Message)
}

func TestSignupAndLogout(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := newTestClient(t, backend)
	ctx := context.Background()

	msg, err := client.Signup(ctx, models.Signup{Name: "Ola", Email: "ola@example.com", Password: "pw", Role: models.RoleInitiator})
	require.NoError(t, err)
	require.Equal(t, "Signup request sent for approval", msg)

	_, err = client.Login(ctx, Credentials{Email: "ola@example.com", Password: "pw"})
	require.ErrorContains(t, err, "User not approved")

	// The backend has no logout endpoint; a 404 is not an error.
	require.NoError(t, client.Logout(ctx))
}

func TestWorkflowCRUD(t *testing.T) {
	backend := testutil.NewBackend(t)
	client := newTestClient(t, backend)
	ctx := context.Background()

	def := purchaseWorkflow()
	created, err := client.CreateWorkflow(ctx, &def)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	got, err := client.GetWorkflow(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "amount > 50000", got.Condition())

	got.Name = "Purchase v2"
	updated, err := client.UpdateWorkflow(ctx, created.ID, got)
	require.NoError(t, err)
	require.Equal(t, "Purchase v2", updated.Name)

	require.NoError(t, client.DeleteWorkflow(ctx, created.ID))
	_, err = client.GetWorkflow(ctx, created.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestRequestLifecycle(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.AddUser(models.Identity{ID: 3, Name: "Ines", Email: "ines@example.com", Role: models.RoleInitiator, Status: models.UserStatusActive}, "pw")
	wf := backend.AddWorkflow(purchaseWorkflow())
	client := newTestClient(t, backend)
	ctx := context.Background()

	created, err := client.SubmitRequest(ctx, &models.SubmitPayload{
		WorkflowID:  wf.ID,
		InitiatorID: 3,
		Data:        map[string]any{"amount": 45000.0, "reason": "laptops"},
	})
	require.NoError(t, err)
	require.Equal(t, "PENDING", created.Status)
	require.Equal(t, 1, created.CurrentLevel)
	require.Equal(t, map[string]any{"amount": 45000.0, "reason": "laptops"}, created.RequestData.Map())

	calls := backend.Calls(http.MethodPost, "/requests")
	require.Len(t, calls, 1)
	require.JSONEq(t, `{"workflowId":`+jsonInt(wf.ID)+`,"initiatorId":3,"data":{"amount":45000,"reason":"laptops"}}`, string(calls[0].Body))

	mine, err := client.ListInitiatorRequests(ctx, 3)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	managerQueue, err := client.ListPending(ctx, QueueManager, 2)
	require.NoError(t, err)
	require.Len(t, managerQueue, 1)
	require.Equal(t, "Ines", managerQueue[0].InitiatorName)

	financeQueue, err := client.ListPending(ctx, QueueFinance, 4)
	require.NoError(t, err)
	require.Empty(t, financeQueue)

	advanced, err := client.Approve(ctx, created.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, advanced.CurrentLevel)
	require.Equal(t, "PENDING", advanced.Status)

	rejected, err := client.Reject(ctx, created.ID, 4, "over budget")
	require.NoError(t, err)
	require.Equal(t, "REJECTED", rejected.Status)
	require.Equal(t, "over budget", rejected.Remarks)

	log, err := client.RequestLog(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	require.Equal(t, models.LogActionApprove, log[0].NormalizedAction())
	require.Equal(t, models.LogActionReject, log[1].NormalizedAction())

	page, err := client.Summary(ctx, 0, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), page.TotalElements)
	require.NotNil(t, page.Data[0].LastAction)

	fetched, err := client.GetRequest(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "REJECTED", fetched.Status)

	require.NoError(t, client.DeleteRequest(ctx, created.ID))
	_, err = client.GetRequest(ctx, created.ID)
	require.True(t, IsStatus(err, http.StatusNotFound))
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func TestAPIErrorCarriesBody(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.FailWith(http.MethodPut, "/requests/9/approve", http.StatusConflict, "Request already processed")
	client := newTestClient(t, backend)

	_, err := client.Approve(context.Background(), 9, 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "Request already processed", apiErr.Message)
	assert.Equal(t, "PUT /requests/9/approve: 409 Request already processed", apiErr.Error())
}

func TestErrorMessagePrefersJSONMessage(t *testing.T) {
	assert.Equal(t, "boom", errorMessage([]byte(`{"message":"boom","status":500}`)))
	assert.Equal(t, "Bad Request", errorMessage([]byte(`{"error":"Bad Request"}`)))
	assert.Equal(t, "plain", errorMessage([]byte(" plain \n")))
}

func TestCancelledCallDropsLateResponse(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()
	defer close(release)

	client, err := New(Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := client.ListWorkflows(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not return after cancel")
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	backend := testutil.NewBackend(t)
	client, err := New(Options{BaseURL: backend.URL(), RateLimit: 0.001, Burst: 1})
	require.NoError(t, err)

	_, err = client.ListWorkflows(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.ListWorkflows(ctx)
	require.Error(t, err)
	require.Len(t, backend.Calls(http.MethodGet, "/workflows"), 1)
}

func TestQueueFor(t *testing.T) {
	q, err := QueueFor(models.RoleFinance)
	require.NoError(t, err)
	require.Equal(t, QueueFinance, q)

	_, err = QueueFor(models.RoleAuditor)
	require.ErrorIs(t, err, models.ErrInvalidRole)
}
