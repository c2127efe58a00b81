//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-student-records/internal/auth"
	"go-student-records/internal/config"
	"go-student-records/internal/database"
	"go-student-records/internal/handler"
	"go-student-records/internal/middleware"
	"go-student-records/internal/repository"
	"go-student-records/internal/router"
	"go-student-records/internal/service"
)

const adminUsername = "admin"
const adminPassword = "admin123"

type testEnv struct {
	server *httptest.Server
	db     *database.DB
	tokens *auth.TokenService
}

// newTestEnv serves the full stack against the database named by
// TEST_DATABASE_URL. Every table is truncated first.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE audit_entries, enrollments, accounts, courses, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	tokens, err := auth.NewTokenService([]byte("integration-signing-key-00000001"), 15*time.Minute, 24*time.Hour)
	require.NoError(t, err)

	accountsRepo := repository.NewAccountRepository(db.Pool)
	coursesRepo := repository.NewCourseRepository(db.Pool)
	audit := service.NewAuditService(repository.NewAuditRepository(db.Pool))
	accounts := service.NewAccountService(accountsRepo, tokens, audit, bcrypt.MinCost)
	users := service.NewUserService(repository.NewUserRepository(db.Pool))
	courses := service.NewCourseService(coursesRepo, audit)

	require.NoError(t, accounts.EnsureAdmin(ctx, adminUsername, adminPassword))

	cfg := &config.Config{
		RequestTimeout:   10 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	server := httptest.NewServer(router.New(cfg,
		middleware.NewAuthenticator(tokens, accountsRepo),
		middleware.NewAuthorizer(auth.NewEvaluator(coursesRepo)),
		router.Handlers{
			Auth:    handler.NewAuthHandler(accounts),
			Account: handler.NewAccountHandler(accounts),
			User:    handler.NewUserHandler(users, courses),
			Course:  handler.NewCourseHandler(courses),
			Audit:   handler.NewAuditHandler(audit),
		},
		db.Health,
	))
	t.Cleanup(server.Close)

	return &testEnv{server: server, db: db, tokens: tokens}
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (e *testEnv) login(t *testing.T, username string, password string) tokenPair {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/v1/login", map[string]string{"username": username, "password": password}, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Success bool      `json:"success"`
		Data    tokenPair `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NotEmpty(t, parsed.Data.AccessToken)
	return parsed.Data
}

func (e *testEnv) do(t *testing.T, method string, path string, body any, accessToken string) *http.Response {
	t.Helper()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// expectStatus performs a request and closes the response.
func (e *testEnv) expectStatus(t *testing.T, want int, method string, path string, body any, accessToken string) {
	t.Helper()

	resp := e.do(t, method, path, body, accessToken)
	_ = resp.Body.Close()
	require.Equal(t, want, resp.StatusCode, "%s %s", method, path)
}

func decodeData[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var parsed struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed.Data
}
