package sms

import "time"

// Message is one outbound SMS delivery request, produced by auth-api and
// consumed by sms-notifier.
type Message struct {
	RequestID string    `json:"request_id"`
	Phone     string    `json:"phone"`
	Body      string    `json:"body"`
	Ts        time.Time `json:"ts"`
}
