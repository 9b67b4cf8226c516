package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
)

// Runner deletes refresh rows past their expiry on a fixed interval. Expired
// tokens already fail validation; the sweep only reclaims storage, so an
// occasional failed pass is harmless.
type Runner struct {
	log      *zap.Logger
	tokens   domainauth.RefreshTokenRepo
	interval time.Duration
	now      func() time.Time

	mDeleted prometheus.Counter
	mErr     prometheus.Counter
	mDur     prometheus.Histogram
}

func New(log *zap.Logger, tokens domainauth.RefreshTokenRepo, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Runner{
		log:      log,
		tokens:   tokens,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		mDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_tokens_deleted_total", Help: "Expired refresh tokens deleted",
		}),
		mErr: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_errors_total", Help: "Errors in sweep passes",
		}),
		mDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "sweeper_pass_duration_seconds", Help: "Sweep pass duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Runner) sweep(ctx context.Context) {
	start := time.Now()
	n, err := r.tokens.DeleteExpired(ctx, r.now())
	if err != nil {
		r.mErr.Inc()
		r.log.Warn("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		r.mDeleted.Add(float64(n))
		r.log.Info("swept expired refresh tokens", zap.Int64("deleted", n))
	}
	r.mDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}
