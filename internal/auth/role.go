package auth

import (
	"fmt"
	"sort"
	"strings"
)

// Role is the closed set of account roles. The zero value is not a valid role.
type Role uint8

const (
	RoleStudent Role = iota + 1
	RoleTeacher
	RoleAdmin
)

// Permission is an atomic capability label.
type Permission string

const (
	PermCourseRead    Permission = "course:read"
	PermCourseEnroll  Permission = "course:enroll"
	PermCourseWrite   Permission = "course:write"
	PermUserRead      Permission = "user:read"
	PermUserWrite     Permission = "user:write"
	PermAccountManage Permission = "account:manage"
	PermAuditRead     Permission = "audit:read"
)

// RoleAuthorityPrefix marks the canonical authority label of a role.
const RoleAuthorityPrefix = "ROLE_"

type roleEntry struct {
	name        string
	permissions []Permission
}

var roleTable = map[Role]roleEntry{
	RoleStudent: {
		name:        "STUDENT",
		permissions: []Permission{PermCourseRead, PermCourseEnroll, PermUserRead},
	},
	RoleTeacher: {
		name:        "TEACHER",
		permissions: []Permission{PermCourseRead, PermCourseEnroll, PermUserRead, PermCourseWrite},
	},
	RoleAdmin: {
		name: "ADMIN",
		permissions: []Permission{
			PermCourseRead, PermCourseEnroll, PermCourseWrite,
			PermUserRead, PermUserWrite, PermAccountManage, PermAuditRead,
		},
	},
}

// Roles lists every role in declaration order.
func Roles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleAdmin}
}

// ParseRole resolves a role name from external input (database rows, admin requests).
func ParseRole(raw string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, RoleAuthorityPrefix)
	for _, role := range Roles() {
		if roleTable[role].name == name {
			return role, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", raw)
}

func (r Role) String() string {
	entry, ok := roleTable[r]
	if !ok {
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
	return entry.name
}

// Valid reports whether r belongs to the enumeration.
func (r Role) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

// Authority returns the canonical ROLE_<NAME> label.
func (r Role) Authority() string {
	return RoleAuthorityPrefix + r.mustEntry().name
}

// Permissions returns a copy of the role's permission set.
func (r Role) Permissions() []Permission {
	perms := r.mustEntry().permissions
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("marshal invalid role %d", uint8(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Role) mustEntry() roleEntry {
	entry, ok := roleTable[r]
	if !ok {
		panic(fmt.Sprintf("auth: role %d is not part of the role enumeration", uint8(r)))
	}
	return entry
}

// Authorities is the derived authority set of an identity.
type Authorities map[string]struct{}

// AuthoritiesOf returns the role's permission labels plus its ROLE_<NAME> label.
// It panics when role is outside the enumeration.
func AuthoritiesOf(role Role) Authorities {
	entry := role.mustEntry()
	set := make(Authorities, len(entry.permissions)+1)
	for _, p := range entry.permissions {
		set[string(p)] = struct{}{}
	}
	set[RoleAuthorityPrefix+entry.name] = struct{}{}
	return set
}

// Has reports whether the set contains label.
func (a Authorities) Has(label string) bool {
	_, ok := a[label]
	return ok
}

// HasRole reports whether the set carries the canonical label of role.
func (a Authorities) HasRole(role Role) bool {
	if !role.Valid() {
		return false
	}
	return a.Has(role.Authority())
}

// Sorted returns the labels in lexical order.
func (a Authorities) Sorted() []string {
	out := make([]string, 0, len(a))
	for label := range a {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
