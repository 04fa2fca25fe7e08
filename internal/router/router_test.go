package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	alerthandler "github.com/jwalitptl/mortuary-api/internal/handler/alert"
	authhandler "github.com/jwalitptl/mortuary-api/internal/handler/auth"
	dashboardhandler "github.com/jwalitptl/mortuary-api/internal/handler/dashboard"
	deceasedhandler "github.com/jwalitptl/mortuary-api/internal/handler/deceased"
	"github.com/jwalitptl/mortuary-api/internal/handler/health"
	postmortemhandler "github.com/jwalitptl/mortuary-api/internal/handler/postmortem"
	prometheushandler "github.com/jwalitptl/mortuary-api/internal/handler/prometheus"
	releasehandler "github.com/jwalitptl/mortuary-api/internal/handler/release"
	storagehandler "github.com/jwalitptl/mortuary-api/internal/handler/storage"
	taskhandler "github.com/jwalitptl/mortuary-api/internal/handler/task"
	userhandler "github.com/jwalitptl/mortuary-api/internal/handler/user"
	"github.com/jwalitptl/mortuary-api/internal/email"
	"github.com/jwalitptl/mortuary-api/internal/middleware"
	"github.com/jwalitptl/mortuary-api/internal/model"
	"github.com/jwalitptl/mortuary-api/internal/repository/memory"
	"github.com/jwalitptl/mortuary-api/internal/service/alert"
	authsvc "github.com/jwalitptl/mortuary-api/internal/service/auth"
	"github.com/jwalitptl/mortuary-api/internal/service/dashboard"
	"github.com/jwalitptl/mortuary-api/internal/service/deceased"
	"github.com/jwalitptl/mortuary-api/internal/service/event"
	"github.com/jwalitptl/mortuary-api/internal/service/notification"
	"github.com/jwalitptl/mortuary-api/internal/service/postmortem"
	"github.com/jwalitptl/mortuary-api/internal/service/release"
	"github.com/jwalitptl/mortuary-api/internal/service/report"
	"github.com/jwalitptl/mortuary-api/internal/service/storage"
	"github.com/jwalitptl/mortuary-api/internal/service/task"
	"github.com/jwalitptl/mortuary-api/internal/service/user"
	"github.com/jwalitptl/mortuary-api/pkg/auth"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
	"github.com/jwalitptl/mortuary-api/pkg/security"
	"github.com/jwalitptl/mortuary-api/pkg/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterGin(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testServer struct {
	router *Router
	store  *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.NewStore()
	log := logger.Nop()
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("mortuary_test", registry)
	events := event.NewService(log)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)

	storageSvc := storage.NewService(store, events, m, log)
	dashboardSvc := dashboard.NewService(store.Dashboard(), time.Minute)
	events.OnEmit(dashboardSvc.OnEvent)
	authService := authsvc.NewService(store.Users(), auth.NewJWTService("test-secret", "mortuary-api", time.Hour), hasher, log)

	h := Handlers{
		Auth:       authhandler.NewHandler(authService),
		Health:     health.NewHandler(map[string]health.Pinger{"store": store}),
		Metrics:    prometheushandler.New("mortuary_test", registry),
		Deceased:   deceasedhandler.NewHandler(deceased.NewService(store, events, m, log, 0), storageSvc),
		Storage:    storagehandler.NewHandler(storageSvc),
		Postmortem: postmortemhandler.NewHandler(postmortem.NewService(store, events, m, log)),
		Release:    releasehandler.NewHandler(release.NewService(store, storageSvc, events, m, log)),
		Task:       taskhandler.NewHandler(task.NewService(store, events)),
		Alert:      alerthandler.NewHandler(alert.NewService(store, events, notification.NewService(email.NoopService{}, nil, log))),
		Dashboard:  dashboardhandler.NewHandler(dashboardSvc, report.NewService(store.Reports())),
		User:       userhandler.NewHandler(user.NewService(store.Users(), hasher)),
	}

	r := NewRouter(middleware.NewAuthMiddleware(authService), h, RouterConfig{
		CORSConfig: middleware.DefaultCORSConfig([]string{"*"}),
	})
	r.Setup()

	for _, u := range []struct {
		name string
		role model.Role
	}{
		{"admin", model.RoleAdmin},
		{"mortician", model.RoleMortuaryStaff},
		{"viewer", model.RoleViewer},
	} {
		hash, err := hasher.Hash(u.name + "-pass")
		require.NoError(t, err)
		require.NoError(t, store.Users().Create(context.Background(), &model.User{
			Username: u.name, PasswordHash: hash, Role: u.role, CreatedAt: time.Now(),
		}))
	}

	return &testServer{router: r, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, username string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: username, Password: username + "-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data model.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXRequestID))

	w = s.do(t, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mortuary_test_http_requests_total")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.NotEmpty(t, resp.TraceID)

	w = s.do(t, http.MethodGet, "/api/v1/patients", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Username: "admin", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleGates(t *testing.T) {
	s := newTestServer(t)
	viewer := s.login(t, "viewer")
	mortician := s.login(t, "mortician")
	unit := model.CreateStorageUnitRequest{UnitNumber: "A-01", Section: "A"}

	w := s.do(t, http.MethodPost, "/api/v1/storage-units", viewer, unit)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/storage-units", viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/storage-units", mortician, unit)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/api/v1/users", mortician, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/users", s.login(t, "admin"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterPatient(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "mortician")

	req := map[string]interface{}{
		"mr_number":           "MR-24-1",
		"full_name":           "Jane Roe",
		"age":                 70,
		"gender":              "female",
		"date_of_death":       time.Now().Add(-time.Hour).Format(time.RFC3339),
		"cause_of_death":      "stroke",
		"ward_from":           "ICU",
		"attending_physician": "Dr. Smith",
	}

	w := s.do(t, http.MethodPost, "/api/v1/patients", token, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	require.Len(t, resp.Details, 1)
	assert.Equal(t, "mr_number", resp.Details[0].Field)

	req["mr_number"] = "MR-2024-0100"
	w = s.do(t, http.MethodPost, "/api/v1/patients", token, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Status string                `json:"status"`
		Data   model.DeceasedPatient `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "success", created.Status)
	assert.Equal(t, "MR-2024-0100", created.Data.MRNumber)
	assert.Equal(t, model.PatientStatusRegistered, created.Data.Status)

	w = s.do(t, http.MethodPost, "/api/v1/patients", token, req)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/patients/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodGet, "/api/v1/patients/999", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func (s *testServer) seedPatient(t *testing.T, mr string) *model.DeceasedPatient {
	t.Helper()
	p := &model.DeceasedPatient{
		MRNumber:         mr,
		FullName:         "John Doe",
		Gender:           model.GenderMale,
		DateOfDeath:      time.Now().Add(-time.Hour),
		RegistrationDate: time.Now(),
		WardFrom:         "ICU",
		Status:           model.PatientStatusRegistered,
	}
	require.NoError(t, s.store.Patients().Create(context.Background(), p))
	return p
}

func TestPatchUnclaimedOpensFollowUpTask(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "mortician")
	p := s.seedPatient(t, "MR-2024-0001")
	path := fmt.Sprintf("/api/v1/patients/%d", p.ID)

	w := s.do(t, http.MethodPatch, path, token, map[string]string{"status": "unclaimed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	tasks, err := s.store.Tasks().List(context.Background(), model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, p.ID, *tasks[0].RelatedEntityID)

	w = s.do(t, http.MethodPatch, path, token, map[string]string{"status": "pending_autopsy"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestRejectReadsChunkedNotes(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "mortician")
	ctx := context.Background()

	newRelease := func(mr string) *model.BodyReleaseRequest {
		p := s.seedPatient(t, mr)
		r := &model.BodyReleaseRequest{
			DeceasedID:        p.ID,
			RequestDate:       time.Now(),
			NextOfKinName:     "Mary Doe",
			NextOfKinRelation: "spouse",
			NextOfKinContact:  "+1 555 0100",
			ApprovalStatus:    model.ApprovalStatusPending,
		}
		require.NoError(t, s.store.Releases().Create(ctx, r))
		return r
	}

	chunked := newRelease("MR-2024-0001")
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/releases/%d/reject", chunked.ID),
		bytes.NewBufferString(`{"notes":"death certificate missing"}`))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got, err := s.store.Releases().Get(ctx, chunked.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Notes)
	assert.Equal(t, "death certificate missing", *got.Notes)

	empty := newRelease("MR-2024-0002")
	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/releases/%d/reject", empty.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/releases/%d/reject", empty.ID), token, "not an object")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", decodeError(t, w).Message)
}
