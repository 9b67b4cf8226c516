package security

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
	sec "github.com/NordCoder/Gatehouse/internal/domain/security"
	"github.com/NordCoder/Gatehouse/internal/domain/user"
)

// flagTTL bounds how long a monitor-imposed restriction survives without a
// new finding re-arming it.
const flagTTL = time.Hour

// Monitor is the behavioral anomaly detector. Every auth event flows through
// Record, which appends it to the per-user log, re-evaluates the rule table
// and applies the strongest matching response. Detection errors never fail
// the request that produced the event.
type Monitor struct {
	log    *zap.Logger
	events sec.EventLog
	flags  domainauth.Flags
	tokens domainauth.RefreshTokenRepo
	users  user.Repo
	rules  []Rule
	now    func() time.Time

	m *metrics
}

type metrics struct {
	recorded *prometheus.CounterVec
	findings *prometheus.CounterVec
	actions  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		recorded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "security_events_recorded_total", Help: "Security events appended to the per-user log",
		}, []string{"type"}),
		findings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "security_findings_total", Help: "Detection rules fired",
		}, []string{"pattern", "severity"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "security_actions_total", Help: "Automatic responses applied",
		}, []string{"action"}),
	}
}

type Option func(*Monitor)

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithRules(rules []Rule) Option {
	return func(m *Monitor) { m.rules = rules }
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Monitor) { m.m = newMetrics(reg) }
}

func NewMonitor(
	log *zap.Logger,
	events sec.EventLog,
	flags domainauth.Flags,
	tokens domainauth.RefreshTokenRepo,
	users user.Repo,
	opts ...Option,
) *Monitor {
	m := &Monitor{
		log:    log.With(zap.String("component", "security.monitor")),
		events: events,
		flags:  flags,
		tokens: tokens,
		users:  users,
		rules:  defaultRules(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.m == nil {
		m.m = newMetrics(prometheus.DefaultRegisterer)
	}
	return m
}

// Record appends the event and runs detection for the affected user.
// It never returns an error: losing a data point must not break auth.
func (m *Monitor) Record(ctx context.Context, ev sec.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = m.now()
	}
	if ev.Severity == "" {
		ev.Severity = sec.SeverityLow
	}

	if err := m.events.Append(ctx, ev); err != nil {
		m.log.Warn("event append failed", zap.Int64("user_id", ev.UserID), zap.Error(err))
		return
	}
	m.m.recorded.WithLabelValues(string(ev.Type)).Inc()

	// Anonymous events (unknown phone) and the monitor's own markers carry
	// no user to analyze.
	if ev.UserID == 0 || ev.Type == sec.EventSuspiciousActivity {
		return
	}

	findings, err := m.Analyze(ctx, ev.UserID)
	if err != nil {
		m.log.Warn("analyze failed", zap.Int64("user_id", ev.UserID), zap.Error(err))
		return
	}
	for _, f := range findings {
		m.apply(ctx, ev.UserID, f, ev)
	}
}

// Analyze evaluates the rule table over the user's recent events and returns
// every fired rule. It applies nothing.
func (m *Monitor) Analyze(ctx context.Context, userID int64) ([]sec.Finding, error) {
	events, err := m.events.Recent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	now := m.now()
	var findings []sec.Finding
	for _, r := range m.rules {
		if r.Match(now, events) {
			findings = append(findings, sec.Finding{Pattern: r.Pattern, Severity: r.Severity, Action: r.Action})
		}
	}
	return findings, nil
}

func (m *Monitor) apply(ctx context.Context, userID int64, f sec.Finding, trigger sec.Event) {
	m.m.findings.WithLabelValues(f.Pattern, string(f.Severity)).Inc()
	m.log.Warn("suspicious pattern detected",
		zap.Int64("user_id", userID),
		zap.String("pattern", f.Pattern),
		zap.String("severity", string(f.Severity)),
		zap.String("action", string(f.Action)),
	)

	marker := sec.Event{
		UserID:    userID,
		Type:      sec.EventSuspiciousActivity,
		Severity:  f.Severity,
		IP:        trigger.IP,
		UserAgent: trigger.UserAgent,
		Timestamp: m.now(),
		Metadata:  map[string]string{"pattern": f.Pattern, "action": string(f.Action)},
	}
	if err := m.events.Append(ctx, marker); err != nil {
		m.log.Warn("marker append failed", zap.Error(err))
	}

	switch f.Action {
	case sec.ActionRotateTokens:
		m.rotate(ctx, userID)
	case sec.ActionRequireVerification:
		if err := m.flags.SetVerificationRequired(ctx, userID, f.Pattern, flagTTL); err != nil {
			m.log.Warn("set verification flag failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	case sec.ActionNone:
		// Log-only rule.
	}
	m.m.actions.WithLabelValues(string(f.Action)).Inc()
}

// rotate kills every session and forces a fresh phone login.
func (m *Monitor) rotate(ctx context.Context, userID int64) {
	if err := m.tokens.DeleteAllForUser(ctx, userID); err != nil {
		m.log.Error("revoke sessions failed", zap.Int64("user_id", userID), zap.Error(err))
	}
	if err := m.flags.SetReauthRequired(ctx, userID, flagTTL); err != nil {
		m.log.Error("set reauth flag failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// BlockUser is the operator response: suspend the account and kill every
// live session. Unlike rule actions this is durable until unblocked.
func (m *Monitor) BlockUser(ctx context.Context, userID int64, reason string) error {
	if err := m.users.SetStatus(ctx, userID, user.StatusSuspended); err != nil {
		return fmt.Errorf("suspend user: %w", err)
	}
	if err := m.tokens.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	m.Record(ctx, sec.Event{
		UserID:   userID,
		Type:     sec.EventSuspiciousActivity,
		Severity: sec.SeverityCritical,
		Metadata: map[string]string{"pattern": "manual_block", "action": string(sec.ActionBlockUser), "reason": reason},
	})
	m.m.actions.WithLabelValues(string(sec.ActionBlockUser)).Inc()
	return nil
}
