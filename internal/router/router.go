package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-student-records/internal/auth"
	"go-student-records/internal/config"
	"go-student-records/internal/handler"
	"go-student-records/internal/middleware"
)

type Handlers struct {
	Auth    *handler.AuthHandler
	Account *handler.AccountHandler
	User    *handler.UserHandler
	Course  *handler.CourseHandler
	Audit   *handler.AuditHandler
}

// HealthFunc reports whether the backing store is reachable.
type HealthFunc func(ctx context.Context) error

func New(
	cfg *config.Config,
	authenticator *middleware.Authenticator,
	authorizer *middleware.Authorizer,
	h Handlers,
	health HealthFunc,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	if cfg.MetricsEnabled {
		r.Use(middleware.Metrics)
	}
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				slog.Warn("health check failed", "error", err)
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))
		api.Use(authenticator.Authenticate)

		guard := authorizer.Require

		api.With(guard(auth.EndpointRegister)).Post("/register", h.Auth.Register)
		api.With(guard(auth.EndpointLogin)).Post("/login", h.Auth.Login)
		api.With(guard(auth.EndpointRefreshToken)).Post("/refresh-token", h.Auth.Refresh)
		api.With(guard(auth.EndpointMe)).Get("/me", h.Auth.Me)

		api.Route("/accounts", func(accounts chi.Router) {
			accounts.With(guard(auth.EndpointAccountList)).Get("/", h.Account.List)
			accounts.With(guard(auth.EndpointAccountCreate)).Post("/", h.Account.Create)
			accounts.With(guard(auth.EndpointAccountPurge)).Delete("/", h.Account.DeleteAll)
			accounts.With(guard(auth.EndpointAccountGet)).Get("/{id}", h.Account.Get)
			accounts.With(guard(auth.EndpointAccountUpdate)).Put("/{id}", h.Account.Update)
			accounts.With(guard(auth.EndpointAccountDelete)).Delete("/{id}", h.Account.Delete)
			accounts.With(guard(auth.EndpointAccountLinkUser)).Post("/{accountId}/user/{userId}", h.Account.LinkUser)
		})

		api.Route("/users", func(users chi.Router) {
			users.With(guard(auth.EndpointUserList)).Get("/", h.User.List)
			users.With(guard(auth.EndpointUserCreate)).Post("/", h.User.Create)
			users.With(guard(auth.EndpointUserPurge)).Delete("/", h.User.DeleteAll)
			users.With(guard(auth.EndpointUserGet)).Get("/{id}", h.User.Get)
			users.With(guard(auth.EndpointUserUpdate)).Put("/{id}", h.User.Update)
			users.With(guard(auth.EndpointUserDelete)).Delete("/{id}", h.User.Delete)
			users.With(guard(auth.EndpointUserCourses)).Get("/{id}/courses", h.User.Courses)
			users.With(guard(auth.EndpointUserAddCourse)).Post("/{userId}/courses/{courseId}", h.User.AddCourse)
			users.With(guard(auth.EndpointUserDropCourse)).Delete("/{userId}/courses/{courseId}", h.User.DropCourse)
		})

		api.Route("/courses", func(courses chi.Router) {
			courses.With(guard(auth.EndpointCourseList)).Get("/", h.Course.List)
			courses.With(guard(auth.EndpointCourseCreate)).Post("/", h.Course.Create)
			courses.With(guard(auth.EndpointCoursePurge)).Delete("/", h.Course.DeleteAll)
			courses.With(guard(auth.EndpointCourseGet)).Get("/{id}", h.Course.Get)
			courses.With(guard(auth.EndpointCourseUpdate)).Put("/{id}", h.Course.Update)
			courses.With(guard(auth.EndpointCourseDelete)).Delete("/{id}", h.Course.Delete)
			courses.With(guard(auth.EndpointCourseUsers)).Get("/{id}/users", h.Course.Users)
			courses.With(guard(auth.EndpointCourseAddUser)).Post("/{courseId}/users/{userId}", h.Course.AddUser)
			courses.With(guard(auth.EndpointCourseRemoveUser)).Delete("/{courseId}/users/{userId}", h.Course.RemoveUser)
		})

		api.With(guard(auth.EndpointAuditList)).Get("/audit", h.Audit.List)
	})

	return r
}
