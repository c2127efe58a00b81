package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-student-records/internal/auth"
	"go-student-records/internal/config"
	"go-student-records/internal/handler"
	"go-student-records/internal/middleware"
	"go-student-records/internal/model"
	"go-student-records/internal/repository/memory"
	"go-student-records/internal/service"
)

type envelope[T any] struct {
	Success bool            `json:"success"`
	Data    T               `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

type testServer struct {
	handler http.Handler
	store   *memory.Store
	tokens  *auth.TokenService
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{store: memory.New(), now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}

	tokens, err := auth.NewTokenService([]byte("router-test-signing-key-00000001"), 15*time.Minute, 7*24*time.Hour,
		auth.WithClock(func() time.Time { return ts.now }))
	require.NoError(t, err)
	ts.tokens = tokens

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		RateLimitRPM:     -1,
		AuthRateLimitRPM: 1000,
		CORSOrigins:      []string{"*"},
		MetricsEnabled:   true,
	}

	audit := service.NewAuditService(ts.store.Audit())
	accounts := service.NewAccountService(ts.store.Accounts(), tokens, audit, bcrypt.MinCost)
	users := service.NewUserService(ts.store.Users())
	courses := service.NewCourseService(ts.store.Courses(), audit)

	ts.handler = New(cfg,
		middleware.NewAuthenticator(tokens, ts.store.Accounts()),
		middleware.NewAuthorizer(auth.NewEvaluator(ts.store.Courses())),
		Handlers{
			Auth:    handler.NewAuthHandler(accounts),
			Account: handler.NewAccountHandler(accounts),
			User:    handler.NewUserHandler(users, courses),
			Course:  handler.NewCourseHandler(courses),
			Audit:   handler.NewAuditHandler(audit),
		},
		nil,
	)
	return ts
}

func (ts *testServer) do(t *testing.T, method string, path string, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()

	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

// seedAccount creates an account with role and, when profileID is non-zero,
// links it to that profile. It returns a fresh access token.
func (ts *testServer) seedAccount(t *testing.T, username string, role auth.Role, profileID int64) string {
	t.Helper()
	ctx := context.Background()

	account, err := ts.store.Accounts().Create(ctx, username, "unused-hash", role)
	require.NoError(t, err)
	if profileID != 0 {
		_, err = ts.store.Accounts().LinkUser(ctx, account.ID, profileID)
		require.NoError(t, err)
	}

	token, err := ts.tokens.IssueAccessToken(username)
	require.NoError(t, err)
	return token
}

func (ts *testServer) seedUsers(t *testing.T, n int) {
	t.Helper()

	for i := 1; i <= n; i++ {
		_, err := ts.store.Users().Create(context.Background(), model.UserRequest{
			FirstName: fmt.Sprintf("First%d", i),
			LastName:  fmt.Sprintf("Last%d", i),
		})
		require.NoError(t, err)
	}
}

func (ts *testServer) seedCourses(t *testing.T, n int, capacity int) {
	t.Helper()

	for i := 1; i <= n; i++ {
		_, err := ts.store.Courses().Create(context.Background(), model.CourseRequest{
			Name:        fmt.Sprintf("Course %d", i),
			MaxCapacity: capacity,
		})
		require.NoError(t, err)
	}
}

func TestRegister(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/register", "", model.RegisterRequest{Username: "bob", Password: "pw1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[model.AuthResponse](t, rec)
	assert.True(t, env.Success)
	assert.NotEmpty(t, env.Data.AccessToken)
	assert.NotEmpty(t, env.Data.RefreshToken)
	assert.Equal(t, "Bearer", env.Data.TokenType)

	rec = ts.do(t, http.MethodPost, "/api/v1/register", "", model.RegisterRequest{Username: "bob", Password: "pw2"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_EXISTS", decode[any](t, rec).Error.Code)

	_, meta, err := ts.store.Accounts().List(context.Background(), 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)

	account, err := ts.store.Accounts().FindByUsername(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, account.Role)
	require.NotNil(t, account.UserID)
}

func TestRegister_ValidatesBody(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/register", "", map[string]string{"username": "al"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[any](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "username")
	assert.Contains(t, env.Error.Fields, "password")
}

func TestRegister_RejectsBlankUsernames(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.seedAccount(t, "root", auth.RoleAdmin, 0)

	for _, username := range []string{"    ", "  x  "} {
		rec := ts.do(t, http.MethodPost, "/api/v1/register", "", model.RegisterRequest{Username: username, Password: "pw1"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		env := decode[any](t, rec)
		assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
		assert.Contains(t, env.Error.Fields, "username")

		rec = ts.do(t, http.MethodPost, "/api/v1/accounts", admin, model.CreateAccountRequest{Username: username, Password: "pw1"})
		require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	}

	ctx := context.Background()
	for _, username := range []string{"", "x"} {
		exists, err := ts.store.Accounts().ExistsByUsername(ctx, username)
		require.NoError(t, err)
		assert.False(t, exists, username)
	}

	_, meta, err := ts.store.Accounts().List(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Total)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/register", "", model.RegisterRequest{Username: "bob", Password: "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/login", "", model.LoginRequest{Username: "bob", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/login", "", model.LoginRequest{Username: "ghost", Password: "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/login", "", model.LoginRequest{Username: "bob", Password: "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode[model.AuthResponse](t, rec)

	for _, token := range []string{env.Data.AccessToken, env.Data.RefreshToken} {
		v := ts.tokens.Verify(token)
		require.True(t, v.Valid)
		assert.Equal(t, "bob", v.Subject)
	}

	rec = ts.do(t, http.MethodGet, "/api/v1/me", env.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[model.MeResponse](t, rec)
	assert.Equal(t, "bob", me.Data.Account.Username)
	assert.Contains(t, me.Data.Authorities, "ROLE_STUDENT")
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestRefreshToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/register", "", model.RegisterRequest{Username: "bob", Password: "pw1"})
	require.Equal(t, http.StatusOK, rec.Code)
	access := decode[model.AuthResponse](t, rec).Data.AccessToken

	ts.now = ts.now.Add(time.Hour)
	require.False(t, ts.tokens.Verify(access).Valid)

	rec = ts.do(t, http.MethodPost, "/api/v1/refresh-token", access, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[model.AuthResponse](t, rec)
	assert.Empty(t, env.Data.AccessToken)
	require.NotEmpty(t, env.Data.RefreshToken)

	subject, ok := ts.tokens.ExtractSubject(env.Data.RefreshToken)
	require.True(t, ok)
	assert.Equal(t, "bob", subject)

	rec = ts.do(t, http.MethodPost, "/api/v1/refresh-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/refresh-token", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnonymousRequestsAreRejected(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/me"},
		{http.MethodGet, "/api/v1/courses"},
		{http.MethodGet, "/api/v1/users/1"},
		{http.MethodPost, "/api/v1/courses/1/users/1"},
		{http.MethodGet, "/api/v1/audit"},
	} {
		rec := ts.do(t, tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
		assert.Equal(t, "UNAUTHORIZED", decode[any](t, rec).Error.Code, tc.path)
	}
}

func TestExpiredTokenIsAnonymous(t *testing.T) {
	ts := newTestServer(t)
	token := ts.seedAccount(t, "sam", auth.RoleStudent, 0)

	ts.now = ts.now.Add(15 * time.Minute)
	rec := ts.do(t, http.MethodGet, "/api/v1/courses", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTeacherCourseMembership(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUsers(t, 4)
	ts.seedCourses(t, 7, 30)

	outsider := ts.seedAccount(t, "tim", auth.RoleTeacher, 1)
	member := ts.seedAccount(t, "tom", auth.RoleTeacher, 2)
	require.NoError(t, ts.store.Courses().AddUser(context.Background(), 7, 2))

	rec := ts.do(t, http.MethodPost, "/api/v1/courses/7/users/4", outsider, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[any](t, rec).Error.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/courses/7/users/4", member, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	enrolled, err := ts.store.Courses().IsEnrolled(context.Background(), 4, 7)
	require.NoError(t, err)
	assert.True(t, enrolled)

	rec = ts.do(t, http.MethodPost, "/api/v1/courses/7/users/4", member, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/courses/7", member, model.CourseRequest{Name: "Renamed", MaxCapacity: 40})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Renamed", decode[model.Course](t, rec).Data.Name)

	rec = ts.do(t, http.MethodPut, "/api/v1/courses/7", outsider, model.CourseRequest{Name: "Nope", MaxCapacity: 40})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/courses/7/users/4", member, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/courses/7/users/4", member, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStudentProfileAccess(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUsers(t, 4)
	ts.seedCourses(t, 2, 1)

	student := ts.seedAccount(t, "sam", auth.RoleStudent, 3)

	rec := ts.do(t, http.MethodGet, "/api/v1/users/3", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), decode[model.User](t, rec).Data.ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/4", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/users/3", student, model.UserRequest{FirstName: "Sam", LastName: "Stone", Email: "sam@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "sam@example.com", decode[model.User](t, rec).Data.Email)

	rec = ts.do(t, http.MethodPost, "/api/v1/users/3/courses/1", student, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/users/4/courses/1", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/users/3/courses", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	courses := decode[[]model.Course](t, rec).Data
	require.Len(t, courses, 1)
	assert.Equal(t, int64(1), courses[0].ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/courses/1/users", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec).Data, 1)

	rec = ts.do(t, http.MethodDelete, "/api/v1/users/3", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/courses", student, model.CourseRequest{Name: "Hacking", MaxCapacity: 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCourseCapacity(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUsers(t, 2)
	admin := ts.seedAccount(t, "root", auth.RoleAdmin, 0)

	rec := ts.do(t, http.MethodPost, "/api/v1/courses", admin, model.CourseRequest{Name: "Seminar", MaxCapacity: 1})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	courseID := decode[model.Course](t, rec).Data.ID

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/users/1", courseID), admin, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/courses/%d/users/2", courseID), admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "course is full", decode[any](t, rec).Error.Message)

	rec = ts.do(t, http.MethodPost, "/api/v1/courses/999/users/1", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/courses", admin, model.CourseRequest{Name: "Empty", MaxCapacity: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminAccountManagement(t *testing.T) {
	ts := newTestServer(t)
	ts.seedUsers(t, 1)
	admin := ts.seedAccount(t, "root", auth.RoleAdmin, 0)
	teacher := ts.seedAccount(t, "tom", auth.RoleTeacher, 0)

	rec := ts.do(t, http.MethodGet, "/api/v1/accounts", teacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/accounts", admin, model.CreateAccountRequest{Username: "tess", Password: "secret", Role: "teacher"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Account](t, rec).Data
	assert.Equal(t, auth.RoleTeacher, created.Role)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(t, http.MethodPost, fmt.Sprintf("/api/v1/accounts/%d/user/1", created.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	linked := decode[model.Account](t, rec).Data
	require.NotNil(t, linked.UserID)
	assert.Equal(t, int64(1), *linked.UserID)

	rec = ts.do(t, http.MethodGet, "/api/v1/accounts?page=1&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.Account](t, rec)
	assert.Len(t, list.Data, 2)
	require.NotNil(t, list.Meta)
	assert.Equal(t, 3, list.Meta.Total)

	rec = ts.do(t, http.MethodDelete, "/api/v1/accounts", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(2), decode[model.DeletedResponse](t, rec).Data.Deleted)

	rec = ts.do(t, http.MethodGet, "/api/v1/me", admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/audit?action=account.delete_all", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	audit := decode[model.AuditListData](t, rec)
	require.Len(t, audit.Data.Items, 1)
	assert.Equal(t, "root", audit.Data.Items[0].Actor.Username)
}

func TestAudit_RejectsBadFilters(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.seedAccount(t, "root", auth.RoleAdmin, 0)

	for _, query := range []string{"from=yesterday", "account_id=abc", "status=maybe",
		"from=2026-06-02T00:00:00Z&to=2026-06-01T00:00:00Z"} {
		rec := ts.do(t, http.MethodGet, "/api/v1/audit?"+query, admin, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_in_flight")
}

func TestHealth_ReportsStoreFailure(t *testing.T) {
	cfg := &config.Config{RequestTimeout: time.Second, RateLimitRPM: -1}
	h := New(cfg, middleware.NewAuthenticator(nil, nil), middleware.NewAuthorizer(nil), Handlers{},
		func(context.Context) error { return errors.New("pool exhausted") })

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
