package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func paramsOf(values map[string]string) Params {
	return func(name string) string { return values[name] }
}

func TestPolicy_Decide(t *testing.T) {
	t.Parallel()

	store := &fakeEnrollments{set: map[enrollmentKey]bool{{userID: 10, courseID: 7}: true}}
	ev := NewEvaluator(store)

	anonymous := context.Background()
	admin := WithIdentity(context.Background(), NewIdentity(1, "root", RoleAdmin, nil))
	enrolledTeacher := WithIdentity(context.Background(), NewIdentity(2, "tom", RoleTeacher, int64Ptr(10)))
	otherTeacher := WithIdentity(context.Background(), NewIdentity(3, "tim", RoleTeacher, int64Ptr(11)))
	student := WithIdentity(context.Background(), NewIdentity(4, "sam", RoleStudent, int64Ptr(3)))
	enrolledStudent := WithIdentity(context.Background(), NewIdentity(5, "eve", RoleStudent, int64Ptr(10)))

	tests := []struct {
		name     string
		endpoint Endpoint
		ctx      context.Context
		params   map[string]string
		want     Decision
	}{
		{name: "register is public", endpoint: EndpointRegister, ctx: anonymous, want: DecisionAllow},
		{name: "login is public", endpoint: EndpointLogin, ctx: anonymous, want: DecisionAllow},
		{name: "refresh is public", endpoint: EndpointRefreshToken, ctx: anonymous, want: DecisionAllow},
		{name: "me requires identity", endpoint: EndpointMe, ctx: anonymous, want: DecisionUnauthenticated},
		{name: "me for student", endpoint: EndpointMe, ctx: student, want: DecisionAllow},

		{name: "account list anonymous", endpoint: EndpointAccountList, ctx: anonymous, want: DecisionUnauthenticated},
		{name: "account list student", endpoint: EndpointAccountList, ctx: student, want: DecisionForbidden},
		{name: "account list teacher", endpoint: EndpointAccountList, ctx: enrolledTeacher, want: DecisionForbidden},
		{name: "account list admin", endpoint: EndpointAccountList, ctx: admin, want: DecisionAllow},
		{name: "account purge admin", endpoint: EndpointAccountPurge, ctx: admin, want: DecisionAllow},

		{name: "user list authenticated", endpoint: EndpointUserList, ctx: student, want: DecisionAllow},
		{name: "own profile", endpoint: EndpointUserGet, ctx: student, params: map[string]string{"id": "3"}, want: DecisionAllow},
		{name: "foreign profile", endpoint: EndpointUserGet, ctx: student, params: map[string]string{"id": "4"}, want: DecisionForbidden},
		{name: "admin reads any profile", endpoint: EndpointUserGet, ctx: admin, params: map[string]string{"id": "4"}, want: DecisionAllow},
		{name: "own course list", endpoint: EndpointUserCourses, ctx: student, params: map[string]string{"id": "3"}, want: DecisionAllow},
		{name: "own profile update", endpoint: EndpointUserUpdate, ctx: student, params: map[string]string{"id": "3"}, want: DecisionAllow},
		{name: "non numeric profile id", endpoint: EndpointUserGet, ctx: student, params: map[string]string{"id": "3abc"}, want: DecisionForbidden},
		{name: "zero profile id", endpoint: EndpointUserGet, ctx: student, params: map[string]string{"id": "0"}, want: DecisionForbidden},
		{name: "user create teacher", endpoint: EndpointUserCreate, ctx: enrolledTeacher, want: DecisionForbidden},
		{name: "user delete own", endpoint: EndpointUserDelete, ctx: student, params: map[string]string{"id": "3"}, want: DecisionForbidden},

		{name: "course get authenticated", endpoint: EndpointCourseGet, ctx: student, params: map[string]string{"id": "7"}, want: DecisionAllow},
		{name: "course create teacher", endpoint: EndpointCourseCreate, ctx: enrolledTeacher, want: DecisionForbidden},
		{name: "course update enrolled teacher", endpoint: EndpointCourseUpdate, ctx: enrolledTeacher, params: map[string]string{"id": "7"}, want: DecisionAllow},
		{name: "course update other teacher", endpoint: EndpointCourseUpdate, ctx: otherTeacher, params: map[string]string{"id": "7"}, want: DecisionForbidden},
		{name: "course update enrolled student", endpoint: EndpointCourseUpdate, ctx: enrolledStudent, params: map[string]string{"id": "7"}, want: DecisionForbidden},
		{name: "course delete admin", endpoint: EndpointCourseDelete, ctx: admin, params: map[string]string{"id": "7"}, want: DecisionAllow},

		{name: "add user enrolled teacher", endpoint: EndpointCourseAddUser, ctx: enrolledTeacher, params: map[string]string{"courseId": "7", "userId": "99"}, want: DecisionAllow},
		{name: "add user other teacher", endpoint: EndpointCourseAddUser, ctx: otherTeacher, params: map[string]string{"courseId": "7", "userId": "99"}, want: DecisionForbidden},
		{name: "add self student", endpoint: EndpointCourseAddUser, ctx: student, params: map[string]string{"courseId": "7", "userId": "3"}, want: DecisionAllow},
		{name: "add other student", endpoint: EndpointCourseAddUser, ctx: student, params: map[string]string{"courseId": "7", "userId": "4"}, want: DecisionForbidden},
		{name: "enrolled student cannot add others", endpoint: EndpointCourseAddUser, ctx: enrolledStudent, params: map[string]string{"courseId": "7", "userId": "4"}, want: DecisionForbidden},
		{name: "drop self via user route", endpoint: EndpointUserDropCourse, ctx: student, params: map[string]string{"courseId": "7", "userId": "3"}, want: DecisionAllow},
		{name: "admin removes anyone", endpoint: EndpointCourseRemoveUser, ctx: admin, params: map[string]string{"courseId": "7", "userId": "4"}, want: DecisionAllow},

		{name: "audit student", endpoint: EndpointAuditList, ctx: student, want: DecisionForbidden},
		{name: "audit admin", endpoint: EndpointAuditList, ctx: admin, want: DecisionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PolicyFor(tt.endpoint).Decide(tt.ctx, ev, paramsOf(tt.params))
			require.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestPolicyFor_UnknownEndpointPanics(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { PolicyFor(Endpoint("nope")) })
}

func TestPolicies_OnlyAuthFlowIsPublic(t *testing.T) {
	t.Parallel()

	public := map[Endpoint]bool{}
	for endpoint, policy := range Policies {
		if policy.Public {
			public[endpoint] = true
			continue
		}
		require.NotNil(t, policy.Allow, endpoint)
	}
	require.Equal(t, map[Endpoint]bool{
		EndpointRegister:     true,
		EndpointLogin:        true,
		EndpointRefreshToken: true,
	}, public)
}

func TestCombinators(t *testing.T) {
	t.Parallel()

	yes := func(context.Context, *Evaluator, Params) bool { return true }
	no := func(context.Context, *Evaluator, Params) bool { return false }
	ctx := context.Background()

	require.True(t, AnyOf(no, yes)(ctx, nil, nil))
	require.False(t, AnyOf(no, no)(ctx, nil, nil))
	require.False(t, AnyOf()(ctx, nil, nil))
	require.True(t, AllOf(yes, yes)(ctx, nil, nil))
	require.False(t, AllOf(yes, no)(ctx, nil, nil))
	require.False(t, AllOf()(ctx, nil, nil))

	require.False(t, SameProfile("id")(ctx, nil, nil))
	require.Equal(t, "forbidden", DecisionForbidden.String())
}
