package domain

import "time"

// Audit action types emitted by the auth flows.
const (
	ActionCreate         = "CREATE"
	ActionLogin          = "LOGIN"
	ActionLogout         = "LOGOUT"
	ActionUpdate         = "UPDATE"
	ActionPasswordChange = "PASSWORD_CHANGE"
	ActionStatusChange   = "STATUS_CHANGE"
	ActionHardDelete     = "HARD_DELETE"
)

// ActivityEvent is a best-effort audit record. Emission never blocks or
// fails the flow that produced it.
type ActivityEvent struct {
	UserID      string    `json:"user_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	IP          string    `json:"ip"`
	At          time.Time `json:"at"`
}
