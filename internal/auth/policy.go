package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Params resolves a named path parameter of the current request.
type Params func(name string) string

// Expr is a boolean authorization expression evaluated once per request.
type Expr func(ctx context.Context, ev *Evaluator, params Params) bool

// Authenticated holds for any attached identity.
func Authenticated() Expr {
	return func(ctx context.Context, _ *Evaluator, _ Params) bool {
		_, ok := IdentityFrom(ctx)
		return ok
	}
}

// HasRole holds when the caller carries role's authority label.
func HasRole(role Role) Expr {
	label := role.Authority()
	return func(ctx context.Context, _ *Evaluator, _ Params) bool {
		id, ok := IdentityFrom(ctx)
		return ok && id.Authorities.Has(label)
	}
}

// SameProfile holds when the caller's profile id equals the path parameter.
func SameProfile(param string) Expr {
	return func(ctx context.Context, ev *Evaluator, params Params) bool {
		userID, ok := idParam(params, param)
		return ok && ev.SameProfile(ctx, userID)
	}
}

// EnrolledIn holds when the caller's profile is enrolled in the course named by
// the path parameter.
func EnrolledIn(param string) Expr {
	return func(ctx context.Context, ev *Evaluator, params Params) bool {
		courseID, ok := idParam(params, param)
		return ok && ev.EnrolledIn(ctx, courseID)
	}
}

// AnyOf short-circuits on the first expression that holds.
func AnyOf(exprs ...Expr) Expr {
	return func(ctx context.Context, ev *Evaluator, params Params) bool {
		for _, expr := range exprs {
			if expr(ctx, ev, params) {
				return true
			}
		}
		return false
	}
}

// AllOf short-circuits on the first expression that fails.
func AllOf(exprs ...Expr) Expr {
	return func(ctx context.Context, ev *Evaluator, params Params) bool {
		for _, expr := range exprs {
			if !expr(ctx, ev, params) {
				return false
			}
		}
		return len(exprs) > 0
	}
}

func idParam(params Params, name string) (int64, bool) {
	if params == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(params(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Decision is the outcome of evaluating a Policy.
type Decision int

const (
	DecisionAllow Decision = iota
	DecisionUnauthenticated
	DecisionForbidden
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Policy guards one endpoint.
type Policy struct {
	Public bool
	Allow  Expr
}

// Decide evaluates the policy. Anonymous callers of non-public endpoints are
// unauthenticated; identities failing Allow are forbidden.
func (p Policy) Decide(ctx context.Context, ev *Evaluator, params Params) Decision {
	if p.Public {
		return DecisionAllow
	}
	if _, ok := IdentityFrom(ctx); !ok {
		return DecisionUnauthenticated
	}
	if p.Allow == nil || !p.Allow(ctx, ev, params) {
		return DecisionForbidden
	}
	return DecisionAllow
}

// Endpoint names a guarded route in the policy table.
type Endpoint string

const (
	EndpointRegister     Endpoint = "auth.register"
	EndpointLogin        Endpoint = "auth.login"
	EndpointRefreshToken Endpoint = "auth.refresh_token"
	EndpointMe           Endpoint = "auth.me"

	EndpointAccountList     Endpoint = "accounts.list"
	EndpointAccountGet      Endpoint = "accounts.get"
	EndpointAccountCreate   Endpoint = "accounts.create"
	EndpointAccountUpdate   Endpoint = "accounts.update"
	EndpointAccountDelete   Endpoint = "accounts.delete"
	EndpointAccountPurge    Endpoint = "accounts.delete_all"
	EndpointAccountLinkUser Endpoint = "accounts.link_user"

	EndpointUserList       Endpoint = "users.list"
	EndpointUserGet        Endpoint = "users.get"
	EndpointUserCourses    Endpoint = "users.courses"
	EndpointUserCreate     Endpoint = "users.create"
	EndpointUserUpdate     Endpoint = "users.update"
	EndpointUserDelete     Endpoint = "users.delete"
	EndpointUserPurge      Endpoint = "users.delete_all"
	EndpointUserAddCourse  Endpoint = "users.add_course"
	EndpointUserDropCourse Endpoint = "users.remove_course"

	EndpointCourseList       Endpoint = "courses.list"
	EndpointCourseGet        Endpoint = "courses.get"
	EndpointCourseUsers      Endpoint = "courses.users"
	EndpointCourseCreate     Endpoint = "courses.create"
	EndpointCourseUpdate     Endpoint = "courses.update"
	EndpointCourseDelete     Endpoint = "courses.delete"
	EndpointCoursePurge      Endpoint = "courses.delete_all"
	EndpointCourseAddUser    Endpoint = "courses.add_user"
	EndpointCourseRemoveUser Endpoint = "courses.remove_user"

	EndpointAuditList Endpoint = "audit.list"
)

var (
	adminOnly = HasRole(RoleAdmin)

	adminOrSelf = AnyOf(
		HasRole(RoleAdmin),
		SameProfile("id"),
	)

	adminOrEnrolledTeacher = AnyOf(
		HasRole(RoleAdmin),
		AllOf(HasRole(RoleTeacher), EnrolledIn("id")),
	)

	enrollmentChange = AnyOf(
		HasRole(RoleAdmin),
		AllOf(HasRole(RoleTeacher), EnrolledIn("courseId")),
		SameProfile("userId"),
	)
)

// Policies is the authorization table of the HTTP API.
var Policies = map[Endpoint]Policy{
	EndpointRegister:     {Public: true},
	EndpointLogin:        {Public: true},
	EndpointRefreshToken: {Public: true},
	EndpointMe:           {Allow: Authenticated()},

	EndpointAccountList:     {Allow: adminOnly},
	EndpointAccountGet:      {Allow: adminOnly},
	EndpointAccountCreate:   {Allow: adminOnly},
	EndpointAccountUpdate:   {Allow: adminOnly},
	EndpointAccountDelete:   {Allow: adminOnly},
	EndpointAccountPurge:    {Allow: adminOnly},
	EndpointAccountLinkUser: {Allow: adminOnly},

	EndpointUserList:       {Allow: Authenticated()},
	EndpointUserGet:        {Allow: adminOrSelf},
	EndpointUserCourses:    {Allow: adminOrSelf},
	EndpointUserCreate:     {Allow: adminOnly},
	EndpointUserUpdate:     {Allow: adminOrSelf},
	EndpointUserDelete:     {Allow: adminOnly},
	EndpointUserPurge:      {Allow: adminOnly},
	EndpointUserAddCourse:  {Allow: enrollmentChange},
	EndpointUserDropCourse: {Allow: enrollmentChange},

	EndpointCourseList:       {Allow: Authenticated()},
	EndpointCourseGet:        {Allow: Authenticated()},
	EndpointCourseUsers:      {Allow: Authenticated()},
	EndpointCourseCreate:     {Allow: adminOnly},
	EndpointCourseUpdate:     {Allow: adminOrEnrolledTeacher},
	EndpointCourseDelete:     {Allow: adminOrEnrolledTeacher},
	EndpointCoursePurge:      {Allow: adminOnly},
	EndpointCourseAddUser:    {Allow: enrollmentChange},
	EndpointCourseRemoveUser: {Allow: enrollmentChange},

	EndpointAuditList: {Allow: adminOnly},
}

// PolicyFor returns the table entry for endpoint and panics when it is missing,
// which can only happen through a routing mistake.
func PolicyFor(endpoint Endpoint) Policy {
	policy, ok := Policies[endpoint]
	if !ok {
		panic(fmt.Sprintf("auth: no policy registered for endpoint %q", endpoint))
	}
	return policy
}
