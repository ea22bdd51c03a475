package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tOgg1/approvalctl/internal/api"
	"github.com/tOgg1/approvalctl/internal/config"
	"github.com/tOgg1/approvalctl/internal/db"
	"github.com/tOgg1/approvalctl/internal/models"
	"github.com/tOgg1/approvalctl/internal/testutil"
)

type testEnv struct {
	app     *app
	backend *testutil.Backend
	out     *bytes.Buffer
	errOut  *bytes.Buffer
}

func resetGlobals(t *testing.T) {
	t.Helper()
	prevJSON, prevQuiet, prevYes, prevNonInteractive := jsonOutput, quiet, assumeYes, nonInteractive
	jsonOutput, quiet, assumeYes, nonInteractive = false, false, false, true
	t.Cleanup(func() {
		jsonOutput, quiet, assumeYes, nonInteractive = prevJSON, prevQuiet, prevYes, prevNonInteractive
	})
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	resetGlobals(t)

	backend := testutil.NewBackend(t)
	cfg := config.DefaultConfig()
	cfg.Global.DataDir = t.TempDir()
	cfg.Global.ConfigDir = t.TempDir()
	cfg.API.BaseURL = backend.URL()
	cfg.API.RateLimit = 0

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	a, err := newApp(context.Background(), cfg, strings.NewReader(""), out, errOut)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testEnv{app: a, backend: backend, out: out, errOut: errOut}
}

func (e *testEnv) addUser(id int64, name string, role models.Role, status models.UserStatus) models.Identity {
	identity := models.Identity{
		ID:     id,
		Name:   name,
		Email:  strings.ToLower(name) + "@example.com",
		Role:   role,
		Status: status,
	}
	e.backend.AddUser(identity, "secret")
	return identity
}

func (e *testEnv) signIn(t *testing.T, identity models.Identity) {
	t.Helper()
	_, err := runLogin(context.Background(), e.app, api.Credentials{Email: identity.Email, Password: "secret"})
	require.NoError(t, err)
	e.out.Reset()
}

func purchaseWorkflow() models.WorkflowDefinition {
	return models.WorkflowDefinition{
		Name:              "Purchase",
		ConditionField:    "amount",
		ConditionOperator: models.OperatorGreater,
		ConditionValue:    50000,
		EscalationHours:   24,
		ApprovalLevels: []models.ApprovalLevel{
			{LevelNo: 1, Role: "MANAGER"},
			{LevelNo: 2, Role: "FINANCE"},
		},
	}
}

func journalTypes(t *testing.T, a *app) []models.EventType {
	t.Helper()
	page, err := a.journal.Query(context.Background(), db.EventQuery{Limit: 100})
	require.NoError(t, err)
	types := make([]models.EventType, 0, len(page.Events))
	for _, event := range page.Events {
		types = append(types, event.Type)
	}
	return types
}

func TestLoginStoresSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive)

	s, err := runLogin(ctx, env.app, api.Credentials{Email: identity.Email, Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, int64(7), s.UserID())
	assert.Contains(t, env.out.String(), "Signed in as Ines (INITIATOR)")
	assert.Contains(t, env.out.String(), "approvalctl requests list")

	env.out.Reset()
	require.NoError(t, runWhoami(ctx, env.app))
	assert.Contains(t, env.out.String(), "Ines <ines@example.com>")
	assert.Contains(t, journalTypes(t, env.app), models.EventTypeSessionStarted)
}

func TestLoginRequiresCredentials(t *testing.T) {
	env := newTestEnv(t)

	_, err := runLogin(context.Background(), env.app, api.Credentials{Email: "a@example.com"})
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
	assert.Empty(t, env.backend.Calls(http.MethodPost, "/auth/login"))
}

func TestLoginRefusesPendingAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	identity := env.addUser(8, "Pat", models.RoleManager, models.UserStatusPending)

	_, err := runLogin(ctx, env.app, api.Credentials{Email: identity.Email, Password: "secret"})
	require.Error(t, err)
	assert.Contains(t, FormatError(err), "User not approved")

	err = runWhoami(ctx, env.app)
	assert.Equal(t, ExitCodeLoginRequired, ExitCode(err))
	assert.Contains(t, journalTypes(t, env.app), models.EventTypeError)
}

func TestLogoutClearsSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	require.NoError(t, runLogout(ctx, env.app))
	assert.Contains(t, env.out.String(), "Signed out")
	assert.Nil(t, env.app.currentSession(ctx))
	assert.Contains(t, journalTypes(t, env.app), models.EventTypeSessionEnded)
}

func TestGateRefusesOtherRoles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	err := runAuditSummary(ctx, env.app, 1, 10, "")
	require.Error(t, err)
	assert.Equal(t, ExitCodeLoginRequired, ExitCode(err))
	assert.True(t, errors.Is(err, ErrLoginRequired))
	assert.Equal(t, "Error: login required\nHint: Sign in with an active account that can open this screen\nNext: approvalctl login\n", FormatError(err))
	assert.Empty(t, env.backend.Calls(http.MethodGet, "/summary"))
	assert.Contains(t, journalTypes(t, env.app), models.EventTypeAccessDenied)

	err = runWorkflowCreate(ctx, env.app, "", draftInput{})
	assert.Equal(t, ExitCodeLoginRequired, ExitCode(err))
}

func TestGateWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	err := runRequestList(context.Background(), env.app)
	assert.Equal(t, ExitCodeLoginRequired, ExitCode(err))
}

func strPtr(s string) *string { return &s }

func TestWorkflowCreateCapsLevels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(1, "Ada", models.RoleAdmin, models.UserStatusActive))

	err := runWorkflowCreate(ctx, env.app, "", draftInput{
		Name:            strPtr("Travel"),
		Field:           strPtr("amount"),
		Operator:        strPtr(">"),
		Value:           strPtr("1000"),
		EscalationHours: strPtr("12"),
		Levels:          []string{"MANAGER", "FINANCE", "AUDITOR"},
	})
	require.NoError(t, err)
	assert.Contains(t, env.errOut.String(), "ignored AUDITOR")
	assert.Contains(t, env.out.String(), "Created workflow")

	stored := env.backend.Workflows()
	require.Len(t, stored, 1)
	assert.Equal(t, "Travel", stored[0].Name)
	assert.Len(t, stored[0].ApprovalLevels, 2)
	assert.Contains(t, journalTypes(t, env.app), models.EventTypeWorkflowCreated)
}

func TestWorkflowCreateInvalidSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(1, "Ada", models.RoleAdmin, models.UserStatusActive))

	err := runWorkflowCreate(ctx, env.app, "", draftInput{Name: strPtr("")})
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
	assert.Empty(t, env.backend.Calls(http.MethodPost, "/workflows"))
}

func TestWorkflowExportAndUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	env.signIn(t, env.addUser(1, "Ada", models.RoleAdmin, models.UserStatusActive))

	path := filepath.Join(t.TempDir(), "purchase.yaml")
	require.NoError(t, runWorkflowExport(ctx, env.app, def.ID, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Purchase")

	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))
	require.NoError(t, runWorkflowUse(ctx, env.app, def.ID, false))

	stored, err := env.app.contexts.Load()
	require.NoError(t, err)
	assert.Equal(t, def.ID, stored.WorkflowID)
}

func TestSubmitOverCeilingSendsNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	_, err := runRequestSubmit(ctx, env.app, def.ID, []string{"amount=60000", "reason=laptops"})
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
	assert.Contains(t, FormatError(err), "amount")
	assert.Empty(t, env.backend.Calls(http.MethodPost, "/requests"))
}

func TestSubmitUnknownField(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	_, err := runRequestSubmit(ctx, env.app, def.ID, []string{"leaveDays=3"})
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
	assert.Contains(t, err.Error(), "amount, reason")
}

func TestSubmitWithoutWorkflow(t *testing.T) {
	env := newTestEnv(t)
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	_, err := runRequestSubmit(context.Background(), env.app, 0, []string{"amount=10"})
	var preflight *PreflightError
	require.ErrorAs(t, err, &preflight)
	assert.Contains(t, preflight.Message, "no workflow selected")
}

func TestApproveThenReject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	initiator := env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive)
	manager := env.addUser(2, "Mara", models.RoleManager, models.UserStatusActive)
	finance := env.addUser(4, "Femi", models.RoleFinance, models.UserStatusActive)

	env.signIn(t, initiator)
	req, err := runRequestSubmit(ctx, env.app, def.ID, []string{"amount=1200", "reason=monitors"})
	require.NoError(t, err)

	calls := env.backend.Calls(http.MethodPost, "/requests")
	require.Len(t, calls, 1)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(calls[0].Body, &payload))
	assert.Equal(t, 1200.0, payload["data"].(map[string]any)["amount"])

	env.signIn(t, manager)
	require.NoError(t, runQueueList(ctx, env.app, ""))
	assert.Contains(t, env.out.String(), "PENDING at level 2")

	env.out.Reset()
	require.NoError(t, runQueueApprove(ctx, env.app, "", req.ID))
	assert.Contains(t, env.out.String(), fmt.Sprintf("Approved request %d: PENDING at level 2", req.ID))

	// the request has moved on to finance
	err = runQueueApprove(ctx, env.app, "", req.ID)
	var preflight *PreflightError
	require.ErrorAs(t, err, &preflight)

	env.signIn(t, finance)
	err = runQueueReject(ctx, env.app, "", req.ID, "   ")
	require.Error(t, err)
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
	assert.True(t, errors.Is(err, models.ErrRemarksRequired))
	assert.Empty(t, env.backend.Calls(http.MethodPut, fmt.Sprintf("/requests/%d/reject", req.ID)))

	require.NoError(t, runQueueReject(ctx, env.app, "", req.ID, " over budget "))
	stored, ok := env.backend.Request(req.ID)
	require.True(t, ok)
	assert.Equal(t, "REJECTED", stored.Status)
	assert.Equal(t, "over budget", stored.Remarks)

	env.signIn(t, initiator)
	require.NoError(t, runRequestRemarks(ctx, env.app, req.ID))
	assert.Contains(t, env.out.String(), "over budget")

	types := journalTypes(t, env.app)
	assert.Contains(t, types, models.EventTypeRequestSubmitted)
	assert.Contains(t, types, models.EventTypeRequestApproved)
	assert.Contains(t, types, models.EventTypeRequestRejected)
}

func TestQueueRoleMustBeApprover(t *testing.T) {
	env := newTestEnv(t)

	err := runQueueList(context.Background(), env.app, "auditor")
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
}

func TestRequestDeleteNeedsConfirmation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	req, err := runRequestSubmit(ctx, env.app, def.ID, []string{"amount=10"})
	require.NoError(t, err)

	err = runRequestDelete(ctx, env.app, req.ID)
	var preflight *PreflightError
	require.ErrorAs(t, err, &preflight)
	_, ok := env.backend.Request(req.ID)
	assert.True(t, ok)

	assumeYes = true
	require.NoError(t, runRequestDelete(ctx, env.app, req.ID))
	_, ok = env.backend.Request(req.ID)
	assert.False(t, ok)
}

func TestRequestShowHidesOtherInitiators(t *testing.T) {
	env := newTestEnv(t)
	def := env.backend.AddWorkflow(purchaseWorkflow())
	other := env.backend.AddRequest(models.ApprovalRequest{WorkflowID: def.ID, InitiatorID: 99, Status: "PENDING", CurrentLevel: 1})
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	err := runRequestShow(context.Background(), env.app, other.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestAuditSummaryPages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	def := env.backend.AddWorkflow(purchaseWorkflow())
	for i := 0; i < 3; i++ {
		env.backend.AddRequest(models.ApprovalRequest{WorkflowID: def.ID, InitiatorID: 7, Status: "PENDING", CurrentLevel: 1})
	}
	env.signIn(t, env.addUser(5, "Aud", models.RoleAuditor, models.UserStatusActive))

	require.NoError(t, runAuditSummary(ctx, env.app, 2, 2, ""))
	assert.Contains(t, env.out.String(), "Page 2 of 2 (3 requests)")

	calls := env.backend.Calls(http.MethodGet, "/summary")
	require.Len(t, calls, 1)

	err := runAuditSummary(ctx, env.app, 0, 2, "")
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
}

func TestActivityListsJournal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	query, err := activityQuery("session.started", "", "1h", 10, "")
	require.NoError(t, err)
	require.NoError(t, runActivity(ctx, env.app, query))
	assert.Contains(t, env.out.String(), "session.started")

	_, err = activityQuery("", "", "yesterday", 10, "")
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
}

func TestActivityShow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signIn(t, env.addUser(7, "Ines", models.RoleInitiator, models.UserStatusActive))

	page, err := env.app.journal.Query(ctx, db.EventQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Events, 1)

	require.NoError(t, runActivityShow(ctx, env.app, page.Events[0].ID))
	assert.Contains(t, env.out.String(), "Type:    session.started")
	assert.Contains(t, env.out.String(), "Entity:  session:7")

	err = runActivityShow(ctx, env.app, "missing")
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(err))
}

func TestExitCodeAndFormatError(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, ExitCodeFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitCodeInvalidInput, ExitCode(invalidInput(errors.New("bad"))))

	apiErr := &api.APIError{Method: "PUT", Path: "/requests/3/approve", Status: 500, Message: "Request already processed"}
	assert.Equal(t, "Error: Request already processed\n", FormatError(fmt.Errorf("approve: %w", apiErr)))

	validation := &models.ValidationErrors{}
	validation.Add("amount", models.ErrRequired)
	formatted := FormatError(validation.Err())
	assert.True(t, strings.HasPrefix(formatted, "Error: invalid input\n"))
	assert.Contains(t, formatted, "amount")
}

func TestWriteTableAlignsColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, []string{"ID", "NAME"}, [][]string{{"1", "Purchase"}, {"22", "Leave"}}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Index(lines[0], "NAME"), strings.Index(lines[1], "Purchase"))
	assert.Equal(t, strings.Index(lines[0], "NAME"), strings.Index(lines[2], "Leave"))
}
