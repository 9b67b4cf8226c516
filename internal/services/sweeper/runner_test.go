package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
)

type stubTokens struct {
	mu      sync.Mutex
	calls   []time.Time
	deleted int64
	fail    error
}

func (s *stubTokens) Create(context.Context, *domainauth.RefreshToken) error { return nil }
func (s *stubTokens) DeleteByHash(context.Context, string) (bool, error)     { return false, nil }
func (s *stubTokens) DeleteAllForUser(context.Context, int64) error          { return nil }
func (s *stubTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, now)
	if s.fail != nil {
		return 0, s.fail
	}
	return s.deleted, nil
}

func newTestRunner(tokens domainauth.RefreshTokenRepo, now time.Time) *Runner {
	f := promauto.With(prometheus.NewRegistry())
	return &Runner{
		log:      zap.NewNop(),
		tokens:   tokens,
		interval: time.Hour,
		now:      func() time.Time { return now },
		mDeleted: f.NewCounter(prometheus.CounterOpts{Name: "deleted"}),
		mErr:     f.NewCounter(prometheus.CounterOpts{Name: "errors"}),
		mDur:     f.NewHistogram(prometheus.HistogramOpts{Name: "duration"}),
	}
}

func TestSweepPassesClockToRepo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tokens := &stubTokens{deleted: 3}
	r := newTestRunner(tokens, now)

	r.sweep(context.Background())

	require.Len(t, tokens.calls, 1)
	require.Equal(t, now, tokens.calls[0])
}

func TestSweepSurvivesRepoError(t *testing.T) {
	tokens := &stubTokens{fail: errors.New("db down")}
	r := newTestRunner(tokens, time.Now().UTC())

	// Must not panic or abort the loop.
	r.sweep(context.Background())
	r.sweep(context.Background())
	require.Len(t, tokens.calls, 2)
}
