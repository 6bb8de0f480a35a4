package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldops/internal/infra/blob"
	"fieldops/internal/infra/persistence/memory"
	"fieldops/pkg/domain"
)

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	srv := New(memory.NewStore(), blob.NewMemory(), zap.NewNop(), "test-secret", prometheus.NewRegistry())
	return &testAPI{t: t, handler: srv.Handler()}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// register creates an account and returns the token and user id.
func (a *testAPI) register(username string, role domain.Role) (token, userID string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/register", "", map[string]any{
		"username": username,
		"password": "long-enough-password",
		"role":     string(role),
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decodeJSON[authResponse](a.t, rec)
	return resp.Token, resp.User.ID
}

func TestHealthReportsDriver(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON[map[string]string](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["driver"])
}

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/register", "", map[string]any{
		"username": "boss", "password": "long-enough-password", "role": "Supervisor",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeJSON[authResponse](t, rec)
	assert.NotEmpty(t, created.Token)
	assert.True(t, domain.IsValidID(created.User.ID))
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = api.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "BOSS", "password": "long-enough-password",
	})
	require.Equal(t, http.StatusOK, rec.Code, "login is case-insensitive on username")

	rec = api.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "boss", "password": "wrong-password-here",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decodeJSON[errorBody](t, rec).Error)

	rec = api.do(http.MethodPost, "/api/login", "", map[string]any{
		"username": "nobody", "password": "whatever-password",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", decodeJSON[errorBody](t, rec).Error, "unknown user gets the same answer")
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(http.MethodPost, "/api/register", "", map[string]any{
		"username": "boss", "password": "short", "role": "Supervisor",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))

	rec = api.do(http.MethodGet, "/api/tasks", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSupervisorOnlyRoutes(t *testing.T) {
	api := newTestAPI(t)
	fieldToken, _ := api.register("worker", domain.RoleField)

	rec := api.do(http.MethodPut, "/api/tasks/bulk-status", fieldToken, map[string]any{
		"ids": []string{}, "status": "Completed",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(http.MethodPost, "/api/boundaries", fieldToken, map[string]any{})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.register("boss", domain.RoleSupervisor)

	rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "inspect chamber"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	task := decodeJSON[domain.Task](t, rec)
	assert.Equal(t, domain.TaskUnassigned, task.Status)
	assert.Equal(t, userID, task.CreatedBy)

	rec = api.do(http.MethodPut, "/api/tasks/"+task.ID+"/status", token, map[string]any{"status": "In Progress"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeJSON[domain.Task](t, rec)
	assert.Equal(t, domain.TaskInProgress, updated.Status)

	rec = api.do(http.MethodGet, "/api/tasks/"+task.ID+"/updates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trail := decodeJSON[[]domain.TaskUpdate](t, rec)
	require.Len(t, trail, 1)
	assert.Equal(t, "Status updated to In Progress", trail[0].Comment)
	assert.Equal(t, userID, trail[0].UserID)

	rec = api.do(http.MethodPut, "/api/tasks/"+task.ID+"/assign", token, map[string]any{"userId": userID})
	require.Equal(t, http.StatusOK, rec.Code)
	assigned := decodeJSON[domain.Task](t, rec)
	assert.Equal(t, domain.TaskAssigned, assigned.Status)

	rec = api.do(http.MethodGet, "/api/users/"+userID+"/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.Task](t, rec), 1)
}

func TestBulkStatusOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "one"})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decodeJSON[domain.Task](t, rec)

	rec = api.do(http.MethodPut, "/api/tasks/bulk-status", token, map[string]any{
		"ids": []string{task.ID, "malformed"}, "status": "Completed",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "one bad id rejects the batch")

	rec = api.do(http.MethodPut, "/api/tasks/bulk-status", token, map[string]any{
		"ids": []string{task.ID}, "status": "Completed",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeJSON[bulkStatusResponse](t, rec).Updated)
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	// Malformed id reads as absent.
	rec := api.do(http.MethodGet, "/api/tasks/not-an-id", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Missing title fails validation.
	rec = api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown assignee breaks a weak reference.
	ghost := domain.NewID()
	rec = api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "t", "assignedTo": ghost})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Unknown fields in the body are rejected.
	rec = api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "t", "bogus": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeatureEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	point := map[string]any{"type": "Point", "coordinates": []float64{2, 2}}
	rec := api.do(http.MethodPost, "/api/features", token, map[string]any{
		"name": "Junction Chamber", "feaType": "chamber", "geometry": point,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	feature := decodeJSON[domain.Feature](t, rec)
	assert.Equal(t, domain.FeaturePlan, feature.FeaState)

	rec = api.do(http.MethodGet, "/api/features?type=chamber", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.Feature](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/features?type=chamber&status=x", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "type and status are mutually exclusive")

	rec = api.do(http.MethodGet, "/api/features/search?q=junction", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.Feature](t, rec), 1)

	rec = api.do(http.MethodDelete, "/api/features/"+feature.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeJSON[map[string]bool](t, rec)["deleted"])

	rec = api.do(http.MethodDelete, "/api/features/"+feature.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeJSON[map[string]bool](t, rec)["deleted"])
}

func TestBoundaryEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	polygon := map[string]any{
		"type":        "Polygon",
		"coordinates": [][][]float64{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}},
	}
	rec := api.do(http.MethodPost, "/api/boundaries", token, map[string]any{
		"name": "Sector 7", "geometry": polygon,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	boundary := decodeJSON[domain.Boundary](t, rec)
	assert.Equal(t, "Unassigned", boundary.Status)

	point := map[string]any{"type": "Point", "coordinates": []float64{2, 2}}
	rec = api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "inside", "location": point})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(http.MethodGet, "/api/boundaries/"+boundary.ID+"/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.Task](t, rec), 1)
}

func TestUsersNearEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.register("boss", domain.RoleSupervisor)

	point := map[string]any{"type": "Point", "coordinates": []float64{0.001, 0}}
	rec := api.do(http.MethodPut, "/api/users/"+userID+"/location", token, map[string]any{"location": point})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/users/near?lng=0&lat=0&maxDistance=500", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]userView](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/users/near?lng=abc&lat=0&maxDistance=500", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamWorkflowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token, bossID := api.register("boss", domain.RoleSupervisor)

	rec := api.do(http.MethodPost, "/api/teams", token, map[string]any{"name": "Crew A"})
	require.Equal(t, http.StatusCreated, rec.Code)
	team := decodeJSON[domain.Team](t, rec)
	assert.Equal(t, domain.TeamPending, team.Status)

	rec = api.do(http.MethodPut, "/api/teams/"+team.ID+"/status", token, map[string]any{"status": "Approved"})
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decodeJSON[domain.Team](t, rec)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, bossID, *approved.ApprovedBy, "acting supervisor is the approver")

	_, workerID := api.register("worker", domain.RoleField)
	rec = api.do(http.MethodPut, "/api/users/"+workerID+"/team", token, map[string]any{"teamId": team.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(http.MethodGet, "/api/teams/"+team.ID+"/members", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decodeJSON[[]userView](t, rec)
	require.Len(t, members, 1)
	assert.Equal(t, workerID, members[0].ID)
}

func TestEvidenceUpload(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{"title": "t"})
	require.Equal(t, http.StatusCreated, rec.Code)
	task := decodeJSON[domain.Task](t, rec)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "site.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("description", "before excavation"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+task.ID+"/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	evidence := decodeJSON[domain.TaskEvidence](t, rr)
	assert.Equal(t, task.ID, evidence.TaskID)
	assert.Equal(t, "before excavation", evidence.Description)
	assert.True(t, strings.HasPrefix(evidence.ImageURL, "memory://tasks/"+task.ID+"/"), evidence.ImageURL)

	rec = api.do(http.MethodGet, "/api/tasks/"+task.ID+"/evidence", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.TaskEvidence](t, rec), 1)
}

func TestEvidenceUploadUnknownTask(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("boss", domain.RoleSupervisor)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("photo", "site.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/tasks/"+domain.NewID()+"/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.do(http.MethodGet, "/healthz", "", nil)

	rec := api.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fieldops_http_requests_total")
}

func TestTaskStatsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	token, userID := api.register("boss", domain.RoleSupervisor)

	for i := 0; i < 2; i++ {
		rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{
			"title": fmt.Sprintf("task %d", i), "assignedTo": userID,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := api.do(http.MethodGet, "/api/users/"+userID+"/task-stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeJSON[domain.TaskStats](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[domain.TaskAssigned])
}

// The per-user task views and the per-task subresources both hang a wildcard
// off a four-segment GET path. Registering them together must not panic, and
// each must resolve to its own handler rather than swallowing the other.
func TestPerUserAndPerTaskRoutesCoexist(t *testing.T) {
	var api *testAPI
	require.NotPanics(t, func() { api = newTestAPI(t) })

	token, userID := api.register("boss", domain.RoleSupervisor)

	rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{
		"title": "inspect valve", "assignedTo": userID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	taskID := decodeJSON[domain.Task](t, rec).ID

	rec = api.do(http.MethodGet, "/api/tasks/"+taskID+"/updates", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeJSON[[]domain.TaskUpdate](t, rec))

	rec = api.do(http.MethodGet, "/api/tasks/"+taskID+"/evidence", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(http.MethodGet, "/api/users/"+userID+"/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assigned := decodeJSON[[]domain.Task](t, rec)
	require.Len(t, assigned, 1)
	assert.Equal(t, taskID, assigned[0].ID)

	rec = api.do(http.MethodGet, "/api/users/"+userID+"/created-tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeJSON[[]domain.Task](t, rec), 1)

	rec = api.do(http.MethodGet, "/api/users/"+userID+"/task-stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decodeJSON[domain.TaskStats](t, rec).Total)
}
