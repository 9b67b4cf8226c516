package sms

import "context"

type Events interface {
	PublishSMSRequested(ctx context.Context, m Message) error
}

// Gateway delivers a message to the carrier. Failures are delivery errors,
// distinct from request validation errors.
type Gateway interface {
	Send(ctx context.Context, phone, body string) error
}
