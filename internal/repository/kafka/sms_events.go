package kafka

import (
	"context"

	"github.com/NordCoder/Gatehouse/internal/domain/sms"
)

type SMSEventsKafka struct {
	p *Producer
}

func NewSMSEventsKafka(p *Producer) *SMSEventsKafka { return &SMSEventsKafka{p: p} }

var _ sms.Events = (*SMSEventsKafka)(nil)

func (e *SMSEventsKafka) PublishSMSRequested(ctx context.Context, m sms.Message) error {
	// Keyed by phone so retries for one number stay ordered on a partition.
	return e.p.PublishJSON(ctx, []byte(m.Phone), m)
}
