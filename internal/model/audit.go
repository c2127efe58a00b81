package model

import "time"

const (
	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

// Audited actions.
const (
	AuditRegister      = "auth.register"
	AuditLogin         = "auth.login"
	AuditRefresh       = "auth.refresh"
	AuditAccountCreate = "account.create"
	AuditAccountUpdate = "account.update"
	AuditAccountDelete = "account.delete"
	AuditAccountPurge  = "account.delete_all"
	AuditAccountLink   = "account.link_user"
	AuditEnroll        = "course.enroll"
	AuditUnenroll      = "course.unenroll"
)

type AuditActor struct {
	AccountID int64  `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	IP        string `json:"ip,omitempty"`
}

type AuditEntry struct {
	ID         int64      `json:"id"`
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurred_at"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Error      string     `json:"error,omitempty"`
}

type AuditQuery struct {
	Action    string
	AccountID int64
	Status    string
	Resource  string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type AuditListData struct {
	Items []AuditEntry `json:"items"`
}
