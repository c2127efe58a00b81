package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"go-student-records/internal/auth"
	"go-student-records/internal/model"
	"go-student-records/pkg/apierror"
)

var tokenVerifications = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auth_token_verifications_total",
		Help: "Bearer token verification outcomes",
	},
	[]string{"result"},
)

const (
	resultValid          = "valid"
	resultUnknownAccount = "unknown_account"
	resultLookupFailed   = "lookup_failed"
)

// publicPaths are the credential endpoints that never carry a bearer token.
// Matching is exact and ignores the method.
var publicPaths = map[string]struct{}{
	"/api/v1/register": {},
	"/api/v1/login":    {},
}

type tokenVerifier interface {
	Verify(token string) auth.Verification
}

// AccountResolver loads the account named by a token subject.
type AccountResolver interface {
	FindByUsername(ctx context.Context, username string) (model.Account, error)
}

// Authenticator attaches the caller identity to the request context. It never
// rejects a request: anonymous requests continue and authorization decides.
type Authenticator struct {
	tokens   tokenVerifier
	accounts AccountResolver
}

func NewAuthenticator(tokens tokenVerifier, accounts AccountResolver) *Authenticator {
	return &Authenticator{tokens: tokens, accounts: accounts}
}

func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if _, attached := auth.IdentityFrom(r.Context()); attached {
			next.ServeHTTP(w, r)
			return
		}

		verification := a.tokens.Verify(token)
		if !verification.Valid {
			tokenVerifications.WithLabelValues(string(verification.Reason)).Inc()
			slog.Debug("bearer token rejected", "reason", verification.Reason, "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		account, err := a.accounts.FindByUsername(r.Context(), verification.Subject)
		if err != nil {
			if errors.Is(err, model.ErrAccountNotFound) {
				tokenVerifications.WithLabelValues(resultUnknownAccount).Inc()
				slog.Debug("token subject has no account", "subject", verification.Subject)
			} else {
				tokenVerifications.WithLabelValues(resultLookupFailed).Inc()
				slog.Warn("account lookup failed", "subject", verification.Subject, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		tokenVerifications.WithLabelValues(resultValid).Inc()
		annotateAccount(r.Context(), account.Username)
		ctx := auth.WithIdentity(r.Context(), account.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isPublicRequest(r *http.Request) bool {
	_, ok := publicPaths[r.URL.Path]
	return ok
}

// bearerToken returns the credential after a case-insensitive "Bearer " prefix.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// Authorizer enforces the endpoint policy table.
type Authorizer struct {
	evaluator *auth.Evaluator
}

func NewAuthorizer(evaluator *auth.Evaluator) *Authorizer {
	return &Authorizer{evaluator: evaluator}
}

// Require resolves endpoint's policy once, so a route bound to an unknown
// endpoint fails when the router is built.
func (a *Authorizer) Require(endpoint auth.Endpoint) func(http.Handler) http.Handler {
	policy := auth.PolicyFor(endpoint)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			params := func(name string) string { return chi.URLParam(r, name) }

			switch policy.Decide(r.Context(), a.evaluator, params) {
			case auth.DecisionAllow:
				next.ServeHTTP(w, r)
			case auth.DecisionUnauthenticated:
				writeError(w, http.StatusUnauthorized, apierror.CodeUnauthorized, "authentication required")
			default:
				slog.Debug("access denied", "endpoint", endpoint, "path", r.URL.Path)
				writeError(w, http.StatusForbidden, apierror.CodeForbidden, "access denied")
			}
		})
	}
}
