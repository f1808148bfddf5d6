// Package queue defines message payloads exchanged over the message
// broker, plus the background consumer that turns them into an audit
// log.
package queue

// Security event types published to the auth.events queue.
const (
	EventSignup                 = "user.registered"
	EventLoginSucceeded         = "login.succeeded"
	EventLoginFailed            = "login.failed"
	EventAccountLocked          = "account.locked"
	EventLogout                 = "logout"
	EventEmailVerified          = "email.verified"
	EventPasswordResetRequested = "password_reset.requested"
	EventPasswordResetCompleted = "password_reset.completed"
)

// SecurityEvent is published whenever the auth core observes
// something worth auditing. It carries enough for downstream
// consumers to log, alert or feed analytics without querying the
// primary database. Raw tokens and password material never appear
// here.
type SecurityEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id,omitempty"`
	Email      string `json:"email,omitempty"`
	SourceAddr string `json:"source_addr,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
