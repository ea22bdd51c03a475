// Package testutil provides an in-process approval backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/tOgg1/approvalctl/internal/models"
)

// Call is one request the backend received.
type Call struct {
	Method string
	Path   string
	Body   []byte
}

type failure struct {
	status int
	body   string
}

type user struct {
	identity models.Identity
	password string
}

// Backend mimics the approval REST API closely enough for client tests:
// it advances levels on approve, rejects terminally and logs every action.
type Backend struct {
	Server *httptest.Server

	mu        sync.Mutex
	users     map[string]user
	workflows []models.WorkflowDefinition
	requests  []models.ApprovalRequest
	logs      []models.ApprovalLogEntry
	calls     []Call
	failures  map[string]failure
	nextID    int64
	now       time.Time
}

// NewBackend starts a backend that is closed with the test.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	SkipIfNoNetwork(t)

	b := &Backend{
		users:    make(map[string]user),
		failures: make(map[string]failure),
		nextID:   100,
		now:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(b.record)

	api.HandleFunc("/auth/login", b.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/signup", b.signup).Methods(http.MethodPost)

	api.HandleFunc("/workflows", b.listWorkflows).Methods(http.MethodGet)
	api.HandleFunc("/workflows", b.createWorkflow).Methods(http.MethodPost)
	api.HandleFunc("/workflows/{id:[0-9]+}", b.updateWorkflow).Methods(http.MethodPut)
	api.HandleFunc("/workflows/{id:[0-9]+}", b.deleteWorkflow).Methods(http.MethodDelete)

	api.HandleFunc("/requests", b.submitRequest).Methods(http.MethodPost)
	api.HandleFunc("/requests/initiator/{id:[0-9]+}", b.initiatorRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests/pending/{queue}/{id:[0-9]+}/view", b.pendingView).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id:[0-9]+}/approve", b.approve).Methods(http.MethodPut)
	api.HandleFunc("/requests/{id:[0-9]+}/reject", b.reject).Methods(http.MethodPut)
	api.HandleFunc("/requests/{id:[0-9]+}", b.getRequest).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id:[0-9]+}", b.deleteRequest).Methods(http.MethodDelete)

	api.HandleFunc("/summary", b.summary).Methods(http.MethodGet)
	api.HandleFunc("/audit/request/{id:[0-9]+}", b.requestLog).Methods(http.MethodGet)

	b.Server = httptest.NewServer(router)
	t.Cleanup(b.Server.Close)
	return b
}

// URL is the API base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.Server.URL + "/api"
}

// AddUser registers an account.
func (b *Backend) AddUser(identity models.Identity, password string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[strings.ToLower(identity.Email)] = user{identity: identity, password: password}
}

// AddWorkflow stores a workflow, assigning an id when it has none.
func (b *Backend) AddWorkflow(def models.WorkflowDefinition) models.WorkflowDefinition {
	b.mu.Lock()
	defer b.mu.Unlock()
	if def.ID == 0 {
		def.ID = b.id()
	}
	if def.Status == "" {
		def.Status = "ACTIVE"
	}
	b.workflows = append(b.workflows, def)
	return def
}

// AddRequest stores a request as is.
func (b *Backend) AddRequest(req models.ApprovalRequest) models.ApprovalRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	if req.ID == 0 {
		req.ID = b.id()
	}
	b.requests = append(b.requests, req)
	return req
}

// Request returns the stored request.
func (b *Backend) Request(id int64) (models.ApprovalRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.requestIndex(id); idx >= 0 {
		return b.requests[idx], true
	}
	return models.ApprovalRequest{}, false
}

// Workflows returns the stored workflows.
func (b *Backend) Workflows() []models.WorkflowDefinition {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.WorkflowDefinition, len(b.workflows))
	copy(out, b.workflows)
	return out
}

// FailWith makes every later method+path call answer status with body.
func (b *Backend) FailWith(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, body: body}
}

// Calls returns the received calls matching method and path prefix.
func (b *Backend) Calls(method, pathPrefix string) []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Call
	for _, call := range b.calls {
		if call.Method == method && strings.HasPrefix(call.Path, pathPrefix) {
			out = append(out, call)
		}
	}
	return out
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *Backend) tick() models.Timestamp {
	b.now = b.now.Add(time.Minute)
	return models.Timestamp{Time: b.now}
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		path := strings.TrimPrefix(r.URL.Path, "/api")

		b.mu.Lock()
		b.calls = append(b.calls, Call{Method: r.Method, Path: path, Body: body})
		fail, failing := b.failures[r.Method+" "+path]
		b.mu.Unlock()

		if failing {
			http.Error(w, fail.body, fail.status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	u, ok := b.users[strings.ToLower(creds.Email)]
	b.mu.Unlock()

	switch {
	case !ok:
		http.Error(w, "User not found", http.StatusInternalServerError)
	case u.password != creds.Password:
		http.Error(w, "Invalid password", http.StatusInternalServerError)
	case u.identity.Status != models.UserStatusActive:
		http.Error(w, "User not approved", http.StatusInternalServerError)
	default:
		// The real backend also echoes the password hash.
		writeJSON(w, map[string]any{
			"id":       u.identity.ID,
			"name":     u.identity.Name,
			"email":    u.identity.Email,
			"role":     u.identity.Role,
			"status":   u.identity.Status,
			"password": "$2a$10$hash",
		})
	}
}

func (b *Backend) signup(w http.ResponseWriter, r *http.Request) {
	var signup models.Signup
	if err := json.NewDecoder(r.Body).Decode(&signup); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	identity := models.Identity{ID: b.id(), Name: signup.Name, Email: signup.Email, Role: signup.Role, Status: models.UserStatusPending}
	b.users[strings.ToLower(signup.Email)] = user{identity: identity, password: signup.Password}
	b.mu.Unlock()

	_, _ = io.WriteString(w, "Signup request sent for approval")
}

func (b *Backend) listWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, b.Workflows())
}

func (b *Backend) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var def models.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	def.ID = 0
	writeJSON(w, b.AddWorkflow(def))
}

func (b *Backend) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	var def models.WorkflowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	id := pathID(r)

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.workflows {
		if b.workflows[i].ID == id {
			def.ID = id
			if def.Status == "" {
				def.Status = b.workflows[i].Status
			}
			b.workflows[i] = def
			writeJSON(w, def)
			return
		}
	}
	http.Error(w, "Workflow not found", http.StatusNotFound)
}

func (b *Backend) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.workflows {
		if b.workflows[i].ID == id {
			b.workflows = append(b.workflows[:i], b.workflows[i+1:]...)
			return
		}
	}
}

func (b *Backend) workflow(id int64) *models.WorkflowDefinition {
	for i := range b.workflows {
		if b.workflows[i].ID == id {
			return &b.workflows[i]
		}
	}
	return nil
}

func (b *Backend) requestIndex(id int64) int {
	for i := range b.requests {
		if b.requests[i].ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) submitRequest(w http.ResponseWriter, r *http.Request) {
	var payload models.SubmitPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	data, _ := json.Marshal(payload.Data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.workflow(payload.WorkflowID) == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}
	now := b.tick()
	req := models.ApprovalRequest{
		ID:           b.id(),
		WorkflowID:   payload.WorkflowID,
		InitiatorID:  payload.InitiatorID,
		RequestData:  models.RequestData(data),
		Status:       "PENDING",
		CurrentLevel: 1,
		CreatedAt:    now,
		LastActionAt: now,
	}
	b.requests = append(b.requests, req)
	writeJSON(w, req)
}

func (b *Backend) getRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := b.Request(pathID(r))
	if !ok {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	writeJSON(w, req)
}

func (b *Backend) deleteRequest(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx := b.requestIndex(id); idx >= 0 {
		b.requests = append(b.requests[:idx], b.requests[idx+1:]...)
	}
}

func (b *Backend) initiatorRequests(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	out := []models.ApprovalRequest{}
	for _, req := range b.requests {
		if req.InitiatorID == id {
			out = append(out, req)
		}
	}
	b.mu.Unlock()
	writeJSON(w, out)
}

func (b *Backend) initiatorName(id int64) string {
	for _, u := range b.users {
		if u.identity.ID == id {
			return u.identity.Name
		}
	}
	return "Unknown"
}

func (b *Backend) pendingView(w http.ResponseWriter, r *http.Request) {
	queue := strings.ToLower(mux.Vars(r)["queue"])

	b.mu.Lock()
	out := []map[string]any{}
	for _, req := range b.requests {
		if req.Status != "PENDING" && !strings.HasPrefix(req.Status, "ESCALATED") {
			continue
		}
		def := b.workflow(req.WorkflowID)
		if def == nil {
			continue
		}
		level, ok := def.Level(req.CurrentLevel)
		if !ok || !strings.EqualFold(level.Role, queue) {
			continue
		}
		out = append(out, map[string]any{"request": req, "initiatorName": b.initiatorName(req.InitiatorID)})
	}
	b.mu.Unlock()
	writeJSON(w, out)
}

func (b *Backend) approve(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApproverID int64 `json:"approverId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.requestIndex(pathID(r))
	if idx < 0 {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	req := &b.requests[idx]
	def := b.workflow(req.WorkflowID)
	if def == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}
	level, _ := def.Level(req.CurrentLevel)
	previous := req.Status
	if req.CurrentLevel < def.LastLevel() {
		req.CurrentLevel++
		req.Status = "PENDING"
	} else {
		req.Status = "APPROVED"
		approver := body.ApproverID
		req.ApprovedBy = &approver
	}
	req.LastActionAt = b.tick()
	b.appendLog(req, level, &body.ApproverID, "APPROVED", previous, "")
	writeJSON(w, req)
}

func (b *Backend) reject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ApproverID int64  `json:"approverId"`
		Remarks    string `json:"remarks"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.requestIndex(pathID(r))
	if idx < 0 {
		http.Error(w, "Request not found", http.StatusNotFound)
		return
	}
	req := &b.requests[idx]
	var level models.ApprovalLevel
	if def := b.workflow(req.WorkflowID); def != nil {
		level, _ = def.Level(req.CurrentLevel)
	}
	previous := req.Status
	req.Status = "REJECTED"
	req.Remarks = body.Remarks
	req.LastActionAt = b.tick()
	b.appendLog(req, level, &body.ApproverID, "REJECTED", previous, body.Remarks)
	writeJSON(w, req)
}

func (b *Backend) appendLog(req *models.ApprovalRequest, level models.ApprovalLevel, approver *int64, action, previous, remarks string) {
	b.logs = append(b.logs, models.ApprovalLogEntry{
		ID:             b.id(),
		RequestID:      req.ID,
		WorkflowID:     req.WorkflowID,
		LevelNo:        level.LevelNo,
		Role:           level.Role,
		ApproverID:     approver,
		Action:         action,
		PreviousStatus: previous,
		NewStatus:      req.Status,
		Remarks:        remarks,
		ActionAt:       req.LastActionAt,
	})
}

// Escalate records a backend escalation of the request's current level.
func (b *Backend) Escalate(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	idx := b.requestIndex(id)
	if idx < 0 {
		return
	}
	req := &b.requests[idx]
	var level models.ApprovalLevel
	if def := b.workflow(req.WorkflowID); def != nil {
		level, _ = def.Level(req.CurrentLevel)
		previous := req.Status
		req.Status = fmt.Sprintf("ESCALATED_%d", req.CurrentLevel)
		if req.CurrentLevel < def.LastLevel() {
			req.CurrentLevel++
		}
		req.LastActionAt = b.tick()
		b.appendLog(req, level, nil, "ESCALATED", previous, "")
	}
}

func (b *Backend) summary(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 10
	}

	b.mu.Lock()
	requests := make([]models.ApprovalRequest, len(b.requests))
	copy(requests, b.requests)
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID > requests[j].ID })

	total := len(requests)
	start := page * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	rows := []models.SummaryRow{}
	for _, req := range requests[start:end] {
		row := models.SummaryRow{Request: req, InitiatorName: b.initiatorName(req.InitiatorID)}
		for i := len(b.logs) - 1; i >= 0; i-- {
			if b.logs[i].RequestID == req.ID {
				entry := b.logs[i]
				row.LastAction = &entry
				break
			}
		}
		rows = append(rows, row)
	}
	b.mu.Unlock()

	writeJSON(w, models.SummaryPage{
		Data:          rows,
		CurrentPage:   page,
		TotalPages:    (total + size - 1) / size,
		TotalElements: int64(total),
	})
}

func (b *Backend) requestLog(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	b.mu.Lock()
	out := []models.ApprovalLogEntry{}
	for _, entry := range b.logs {
		if entry.RequestID == id {
			out = append(out, entry)
		}
	}
	b.mu.Unlock()
	writeJSON(w, out)
}
