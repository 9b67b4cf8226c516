package security

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
	sec "github.com/NordCoder/Gatehouse/internal/domain/security"
	"github.com/NordCoder/Gatehouse/internal/domain/user"
)

type memEventLog struct {
	byUser map[int64][]sec.Event
}

func newMemEventLog() *memEventLog { return &memEventLog{byUser: make(map[int64][]sec.Event)} }

func (l *memEventLog) Append(_ context.Context, ev sec.Event) error {
	l.byUser[ev.UserID] = append([]sec.Event{ev}, l.byUser[ev.UserID]...)
	return nil
}

func (l *memEventLog) Recent(_ context.Context, userID int64) ([]sec.Event, error) {
	return l.byUser[userID], nil
}

type memFlags struct {
	reauth map[int64]bool
	verify map[int64]string
}

func newMemFlags() *memFlags {
	return &memFlags{reauth: make(map[int64]bool), verify: make(map[int64]string)}
}

func (f *memFlags) SetReauthRequired(_ context.Context, id int64, _ time.Duration) error {
	f.reauth[id] = true
	return nil
}
func (f *memFlags) ReauthRequired(_ context.Context, id int64) (bool, error) {
	return f.reauth[id], nil
}
func (f *memFlags) ClearReauthRequired(_ context.Context, id int64) error {
	delete(f.reauth, id)
	return nil
}
func (f *memFlags) SetVerificationRequired(_ context.Context, id int64, reason string, _ time.Duration) error {
	f.verify[id] = reason
	return nil
}
func (f *memFlags) VerificationRequired(_ context.Context, id int64) (string, bool, error) {
	reason, ok := f.verify[id]
	return reason, ok, nil
}
func (f *memFlags) ClearVerificationRequired(_ context.Context, id int64) error {
	delete(f.verify, id)
	return nil
}

type memTokens struct {
	revokedAll map[int64]int
}

func newMemTokens() *memTokens { return &memTokens{revokedAll: make(map[int64]int)} }

func (t *memTokens) Create(context.Context, *domainauth.RefreshToken) error { return nil }
func (t *memTokens) DeleteByHash(context.Context, string) (bool, error)     { return false, nil }
func (t *memTokens) DeleteAllForUser(_ context.Context, userID int64) error {
	t.revokedAll[userID]++
	return nil
}
func (t *memTokens) DeleteExpired(context.Context, time.Time) (int64, error) { return 0, nil }

type memUsers struct {
	statuses map[int64]user.Status
}

func newMemUsers() *memUsers { return &memUsers{statuses: make(map[int64]user.Status)} }

func (u *memUsers) Create(context.Context, *user.User) error            { return nil }
func (u *memUsers) GetByID(context.Context, int64) (*user.User, error)  { return nil, nil }
func (u *memUsers) GetByPhone(context.Context, string) (*user.User, error) {
	return nil, nil
}
func (u *memUsers) SetStatus(_ context.Context, id int64, s user.Status) error {
	u.statuses[id] = s
	return nil
}
func (u *memUsers) Update(context.Context, *user.User) error { return nil }

type fixture struct {
	mon    *Monitor
	events *memEventLog
	flags  *memFlags
	tokens *memTokens
	users  *memUsers
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events: newMemEventLog(),
		flags:  newMemFlags(),
		tokens: newMemTokens(),
		users:  newMemUsers(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.mon = NewMonitor(zap.NewNop(), f.events, f.flags, f.tokens, f.users,
		WithClock(func() time.Time { return f.now }),
		WithRegisterer(prometheus.NewRegistry()),
	)
	return f
}

const browserUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"

func TestRapidRefreshRotatesTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(7)

	for i := 0; i < 11; i++ {
		f.now = f.now.Add(20 * time.Second)
		f.mon.Record(ctx, sec.Event{
			UserID: userID, Type: sec.EventTokenRefresh, IP: "10.0.0.1", UserAgent: browserUA,
		})
	}

	require.Equal(t, 1, f.tokens.revokedAll[userID], "all sessions revoked exactly once")
	reauth, err := f.flags.ReauthRequired(ctx, userID)
	require.NoError(t, err)
	require.True(t, reauth)

	events, err := f.events.Recent(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, sec.EventSuspiciousActivity, events[0].Type)
	require.Equal(t, "rapid_token_refresh", events[0].Metadata["pattern"])
}

func TestTenRefreshesWithinWindowAreFine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(8)

	for i := 0; i < 10; i++ {
		f.now = f.now.Add(20 * time.Second)
		f.mon.Record(ctx, sec.Event{
			UserID: userID, Type: sec.EventTokenRefresh, IP: "10.0.0.1", UserAgent: browserUA,
		})
	}

	require.Zero(t, f.tokens.revokedAll[userID])
	reauth, err := f.flags.ReauthRequired(ctx, userID)
	require.NoError(t, err)
	require.False(t, reauth)
}

func TestFrequentFailedAuthRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(9)

	for i := 0; i < 6; i++ {
		f.now = f.now.Add(time.Minute)
		f.mon.Record(ctx, sec.Event{
			UserID: userID, Type: sec.EventAuthFailed, IP: "10.0.0.2", UserAgent: browserUA,
		})
	}

	reason, required, err := f.flags.VerificationRequired(ctx, userID)
	require.NoError(t, err)
	require.True(t, required)
	require.Equal(t, "frequent_failed_auth", reason)
	require.Zero(t, f.tokens.revokedAll[userID], "verification flag does not revoke sessions")
}

func TestManyIPsRotateTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(10)

	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.6"}
	for _, ip := range ips {
		f.now = f.now.Add(time.Minute)
		f.mon.Record(ctx, sec.Event{
			UserID: userID, Type: sec.EventAPIRequest, IP: ip, UserAgent: browserUA,
		})
	}

	require.Equal(t, 1, f.tokens.revokedAll[userID])
}

func TestSuspiciousUserAgentLogsOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(11)

	f.mon.Record(ctx, sec.Event{
		UserID: userID, Type: sec.EventLogin, IP: "10.0.0.3", UserAgent: "curl/8.4.0",
	})

	findings, err := f.mon.Analyze(ctx, userID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	require.Equal(t, "suspicious_user_agent", findings[0].Pattern)
	require.Equal(t, sec.ActionNone, findings[0].Action)

	require.Zero(t, f.tokens.revokedAll[userID])
	_, required, err := f.flags.VerificationRequired(ctx, userID)
	require.NoError(t, err)
	require.False(t, required)
}

func TestQuietHistoryHasNoFindings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(12)

	f.mon.Record(ctx, sec.Event{UserID: userID, Type: sec.EventLogin, IP: "10.0.0.4", UserAgent: browserUA})
	f.now = f.now.Add(time.Minute)
	f.mon.Record(ctx, sec.Event{UserID: userID, Type: sec.EventAPIRequest, IP: "10.0.0.4", UserAgent: browserUA})

	findings, err := f.mon.Analyze(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestBlockUserSuspendsAndRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const userID = int64(13)

	require.NoError(t, f.mon.BlockUser(ctx, userID, "fraud report"))
	require.Equal(t, user.StatusSuspended, f.users.statuses[userID])
	require.Equal(t, 1, f.tokens.revokedAll[userID])

	events, err := f.events.Recent(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, "manual_block", events[0].Metadata["pattern"])
}
