package notifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatehouse/internal/domain/sms"
	"github.com/NordCoder/Gatehouse/internal/obs"
	kafkax "github.com/NordCoder/Gatehouse/internal/repository/kafka"
)

// Runner consumes delivery requests and pushes them through the gateway. A
// gateway failure leaves the offset uncommitted so the message is retried;
// a malformed message is dropped with a warning.
type Runner struct {
	log  *zap.Logger
	cons *kafkax.Consumer
	gw   sms.Gateway

	mConsumed prometheus.Counter
	mSent     prometheus.Counter
	mErrors   prometheus.Counter
}

func NewRunner(log *zap.Logger, cons *kafkax.Consumer, gw sms.Gateway) *Runner {
	return &Runner{
		log:  log,
		cons: cons,
		gw:   gw,
		mConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_notifier_messages_consumed_total",
			Help: "Delivery requests consumed",
		}),
		mSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_notifier_sms_sent_total",
			Help: "SMS handed to the gateway",
		}),
		mErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sms_notifier_errors_total",
			Help: "Errors",
		}),
	}
}

func (r *Runner) Run(ctx context.Context) error {
	handler := kafkax.JSONHandler[sms.Message](r.handle)

	if err := r.cons.Consume(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		r.mErrors.Inc()
		r.log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

func (r *Runner) handle(ctx context.Context, _ []byte, m *sms.Message) error {
	r.mConsumed.Inc()
	log := obs.WithTrace(ctx, r.log)

	if m.Phone == "" || m.Body == "" {
		log.Warn("malformed delivery request dropped", zap.String("request_id", m.RequestID))
		return nil
	}

	if err := r.gw.Send(ctx, m.Phone, m.Body); err != nil {
		r.mErrors.Inc()
		return fmt.Errorf("send sms %s: %w", m.RequestID, err)
	}
	r.mSent.Inc()
	log.Debug("sms sent", zap.String("request_id", m.RequestID), zap.String("phone", m.Phone))
	return nil
}
