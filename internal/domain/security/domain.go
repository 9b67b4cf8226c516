package security

import "time"

type EventType string

const (
	EventLogin              EventType = "login"
	EventLogout             EventType = "logout"
	EventTokenRefresh       EventType = "token_refresh"
	EventAuthFailed         EventType = "auth_failed"
	EventAPIRequest         EventType = "api_request"
	EventCodeRequested      EventType = "code_requested"
	EventSuspiciousActivity EventType = "suspicious_activity"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type Event struct {
	UserID    int64             `json:"user_id"`
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"user_agent"`
	Timestamp time.Time         `json:"ts"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Action string

const (
	ActionNone                Action = "none"
	ActionRotateTokens        Action = "rotate_tokens"
	ActionRequireVerification Action = "require_verification"
	ActionBlockUser           Action = "block_user"
)

// Finding is one fired rule from a single Analyze pass.
type Finding struct {
	Pattern  string
	Severity Severity
	Action   Action
}
