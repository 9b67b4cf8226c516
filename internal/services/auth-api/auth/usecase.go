package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
	sec "github.com/NordCoder/Gatehouse/internal/domain/security"
	"github.com/NordCoder/Gatehouse/internal/domain/sms"
	"github.com/NordCoder/Gatehouse/internal/domain/user"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
	"github.com/NordCoder/Gatehouse/internal/token"
)

var (
	ErrInvalidPhone   = errors.New("invalid phone number")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidCode    = errors.New("invalid or expired code")
	ErrNotVerified    = errors.New("phone not verified")
	ErrAlreadyExists  = errors.New("phone, username or email already registered")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrSuspended      = errors.New("account suspended")
	ErrReauthRequired = errors.New("re-authentication required")
	ErrSMSUnavailable = errors.New("sms delivery unavailable")
)

// reauthTTL bounds the forced-logout window opened by a refresh replay.
const reauthTTL = time.Hour

const defaultTrustScore = 50

// SecurityRecorder receives every auth event. Recording is fire-and-forget;
// implementations must not fail the calling request.
type SecurityRecorder interface {
	Record(ctx context.Context, ev sec.Event)
}

type Config struct {
	CodeTTL     time.Duration
	VerifiedTTL time.Duration
	Now         func() time.Time
}

type Deps struct {
	Users     user.Repo
	Tokens    domainauth.RefreshTokenRepo
	Codes     domainauth.CodeStore
	Blacklist domainauth.Blacklist
	Flags     domainauth.Flags
	Codec     *token.Codec
	SMS       sms.Events
	Security  SecurityRecorder
	Log       *zap.Logger
}

type Usecase struct {
	d   Deps
	cfg Config
}

func NewUsecase(d Deps, cfg Config) *Usecase {
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 5 * time.Minute
	}
	if cfg.VerifiedTTL <= 0 {
		cfg.VerifiedTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = zap.L()
	}
	return &Usecase{d: d, cfg: cfg}
}

// CodeTTL reports how long a freshly issued verification code stays valid.
func (u *Usecase) CodeTTL() time.Duration { return u.cfg.CodeTTL }

var phoneRe = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// normalizePhone strips visual separators and validates E.164 form.
func normalizePhone(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if !phoneRe.MatchString(s) {
		return "", ErrInvalidPhone
	}
	return s, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// SendVerification stores a fresh single-use code for the phone and asks the
// notifier to deliver it. A new request overwrites any outstanding code.
func (u *Usecase) SendVerification(ctx context.Context, phone, ip, userAgent string) error {
	phone, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}
	if err := u.d.Codes.PutCode(ctx, phone, code, u.cfg.CodeTTL); err != nil {
		return err
	}

	msg := sms.Message{
		RequestID: uuid.NewString(),
		Phone:     phone,
		Body:      fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(u.cfg.CodeTTL.Minutes())),
		Ts:        u.cfg.Now(),
	}
	if err := u.d.SMS.PublishSMSRequested(ctx, msg); err != nil {
		u.d.Log.Error("sms publish failed", zap.String("request_id", msg.RequestID), zap.Error(err))
		return ErrSMSUnavailable
	}

	u.d.Security.Record(ctx, sec.Event{
		UserID: u.lookupUserID(ctx, phone), Type: sec.EventCodeRequested, IP: ip, UserAgent: userAgent,
	})
	return nil
}

// Result is the outcome of a successful phone verification. For a known
// account it is a login; for an unknown phone it opens a signup window and
// carries the normalized phone the window is keyed on.
type Result struct {
	IsNewUser bool
	Phone     string
	User      *user.User
	Pair      domainauth.Pair
}

// VerifyPhone redeems the code. The code is burned on first use regardless of
// what happens afterwards.
func (u *Usecase) VerifyPhone(ctx context.Context, phone, code, ip, userAgent string) (*Result, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}

	ok, err := u.d.Codes.RedeemCode(ctx, phone, code)
	if err != nil {
		return nil, fmt.Errorf("redeem code: %w", err)
	}
	if !ok {
		u.d.Security.Record(ctx, sec.Event{
			UserID: u.lookupUserID(ctx, phone), Type: sec.EventAuthFailed, IP: ip, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "bad_code"},
		})
		return nil, ErrInvalidCode
	}

	rec, err := u.d.Users.GetByPhone(ctx, phone)
	switch {
	case errors.Is(err, pg.ErrNotFound):
		// Unknown phone: open a signup window instead of creating a row here.
		if err := u.d.Codes.MarkVerified(ctx, phone, u.cfg.VerifiedTTL); err != nil {
			return nil, fmt.Errorf("mark verified: %w", err)
		}
		return &Result{IsNewUser: true, Phone: phone}, nil
	case err != nil:
		return nil, fmt.Errorf("get user: %w", err)
	}

	if rec.Suspended() {
		u.d.Security.Record(ctx, sec.Event{
			UserID: rec.ID, Type: sec.EventAuthFailed, IP: ip, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "suspended"},
		})
		return nil, ErrSuspended
	}

	if !rec.PhoneVerified {
		rec.PhoneVerified = true
		if err := u.d.Users.Update(ctx, rec); err != nil {
			return nil, fmt.Errorf("mark user verified: %w", err)
		}
	}

	// Proving phone possession satisfies any monitor-imposed restriction.
	if err := u.d.Flags.ClearReauthRequired(ctx, rec.ID); err != nil {
		u.d.Log.Warn("clear reauth flag", zap.Int64("user_id", rec.ID), zap.Error(err))
	}
	if err := u.d.Flags.ClearVerificationRequired(ctx, rec.ID); err != nil {
		u.d.Log.Warn("clear verification flag", zap.Int64("user_id", rec.ID), zap.Error(err))
	}

	pair, err := u.issue(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	u.d.Security.Record(ctx, sec.Event{UserID: rec.ID, Type: sec.EventLogin, IP: ip, UserAgent: userAgent})
	return &Result{User: rec, Pair: pair}, nil
}

type SignupInput struct {
	Phone       string
	Name        string
	Username    string
	Email       string
	Bio         string
	AccountType user.AccountType
}

// Signup creates the account. It requires a live "recently verified" marker
// left by VerifyPhone and consumes it, so one verification admits one signup.
func (u *Usecase) Signup(ctx context.Context, in SignupInput, ip, userAgent string) (*user.User, domainauth.Pair, error) {
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return nil, domainauth.Pair{}, err
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, domainauth.Pair{}, ErrInvalidInput
	}
	if in.AccountType == "" {
		in.AccountType = user.TypePersonal
	}
	if in.AccountType != user.TypePersonal && in.AccountType != user.TypeBusiness {
		return nil, domainauth.Pair{}, ErrInvalidInput
	}

	ok, err := u.d.Codes.ConsumeVerified(ctx, phone)
	if err != nil {
		return nil, domainauth.Pair{}, fmt.Errorf("consume verified: %w", err)
	}
	if !ok {
		return nil, domainauth.Pair{}, ErrNotVerified
	}

	now := u.cfg.Now()
	rec := &user.User{
		Phone:         phone,
		Name:          strings.TrimSpace(in.Name),
		Username:      strings.TrimSpace(in.Username),
		Email:         strings.ToLower(strings.TrimSpace(in.Email)),
		Bio:           in.Bio,
		AccountType:   in.AccountType,
		Status:        user.StatusActive,
		TrustScore:    defaultTrustScore,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.d.Users.Create(ctx, rec); err != nil {
		// Give the verification back so a fixed payload can retry without a
		// new SMS round-trip.
		if mverr := u.d.Codes.MarkVerified(ctx, phone, u.cfg.VerifiedTTL); mverr != nil {
			u.d.Log.Warn("re-mark verified", zap.Error(mverr))
		}
		if errors.Is(err, pg.ErrConflict) {
			return nil, domainauth.Pair{}, ErrAlreadyExists
		}
		return nil, domainauth.Pair{}, fmt.Errorf("create user: %w", err)
	}

	pair, err := u.issue(ctx, rec.ID)
	if err != nil {
		return nil, domainauth.Pair{}, err
	}
	u.d.Security.Record(ctx, sec.Event{UserID: rec.ID, Type: sec.EventLogin, IP: ip, UserAgent: userAgent,
		Metadata: map[string]string{"signup": "true"}})
	return rec, pair, nil
}

// Refresh rotates the pair. The presented refresh token is deleted before
// new tokens are minted; a token that validates but has no ledger row was
// already spent, which means replay, and every session for that user dies.
func (u *Usecase) Refresh(ctx context.Context, raw, ip, userAgent string) (domainauth.Pair, error) {
	claims, err := u.d.Codec.ValidateRefresh(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return domainauth.Pair{}, ErrTokenExpired
		}
		return domainauth.Pair{}, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return domainauth.Pair{}, ErrInvalidToken
	}

	spent, err := u.d.Tokens.DeleteByHash(ctx, token.Hash(raw))
	if err != nil {
		return domainauth.Pair{}, fmt.Errorf("rotate refresh: %w", err)
	}
	if !spent {
		if err := u.d.Tokens.DeleteAllForUser(ctx, userID); err != nil {
			u.d.Log.Error("revoke after replay", zap.Int64("user_id", userID), zap.Error(err))
		}
		if err := u.d.Flags.SetReauthRequired(ctx, userID, reauthTTL); err != nil {
			u.d.Log.Error("set reauth after replay", zap.Int64("user_id", userID), zap.Error(err))
		}
		u.d.Security.Record(ctx, sec.Event{
			UserID: userID, Type: sec.EventAuthFailed, Severity: sec.SeverityHigh, IP: ip, UserAgent: userAgent,
			Metadata: map[string]string{"reason": "refresh_replay"},
		})
		return domainauth.Pair{}, ErrInvalidToken
	}

	reauth, err := u.d.Flags.ReauthRequired(ctx, userID)
	if err != nil {
		return domainauth.Pair{}, fmt.Errorf("reauth flag: %w", err)
	}
	if reauth {
		return domainauth.Pair{}, ErrReauthRequired
	}

	rec, err := u.d.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			return domainauth.Pair{}, ErrInvalidToken
		}
		return domainauth.Pair{}, fmt.Errorf("get user: %w", err)
	}
	if rec.Suspended() {
		return domainauth.Pair{}, ErrSuspended
	}

	pair, err := u.issue(ctx, userID)
	if err != nil {
		return domainauth.Pair{}, err
	}
	u.d.Security.Record(ctx, sec.Event{UserID: userID, Type: sec.EventTokenRefresh, IP: ip, UserAgent: userAgent})
	return pair, nil
}

// Logout is idempotent: unknown or already-dead tokens are not an error.
// The access token is denied for its remaining lifetime, and every refresh
// session for the account is revoked. When neither token identifies the
// account, only the presented refresh row is removed.
func (u *Usecase) Logout(ctx context.Context, accessRaw, refreshRaw, ip, userAgent string) error {
	var userID int64
	if accessRaw != "" {
		if claims, err := u.d.Codec.ValidateAccess(accessRaw); err == nil {
			userID, _ = claims.UserID()
		}
		if exp, err := u.d.Codec.ExpiryUnverified(accessRaw); err == nil {
			if err := u.d.Blacklist.Add(ctx, token.Hash(accessRaw), exp.Sub(u.cfg.Now())); err != nil {
				return fmt.Errorf("blacklist access: %w", err)
			}
		}
	}
	if userID == 0 && refreshRaw != "" {
		if claims, err := u.d.Codec.ValidateRefresh(refreshRaw); err == nil {
			userID, _ = claims.UserID()
		}
	}
	switch {
	case userID != 0:
		if err := u.d.Tokens.DeleteAllForUser(ctx, userID); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
	case refreshRaw != "":
		if _, err := u.d.Tokens.DeleteByHash(ctx, token.Hash(refreshRaw)); err != nil {
			return fmt.Errorf("delete refresh: %w", err)
		}
	}
	if userID != 0 {
		u.d.Security.Record(ctx, sec.Event{UserID: userID, Type: sec.EventLogout, IP: ip, UserAgent: userAgent})
	}
	return nil
}

// Authenticate resolves a bearer access token to its live account. Any
// storage failure here denies access; the check fails closed.
func (u *Usecase) Authenticate(ctx context.Context, raw string) (*user.User, error) {
	claims, err := u.d.Codec.ValidateAccess(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidToken
	}

	denied, err := u.d.Blacklist.Contains(ctx, token.Hash(raw))
	if err != nil {
		return nil, fmt.Errorf("blacklist check: %w", err)
	}
	if denied {
		return nil, ErrInvalidToken
	}

	reauth, err := u.d.Flags.ReauthRequired(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reauth flag: %w", err)
	}
	if reauth {
		return nil, ErrReauthRequired
	}

	rec, err := u.d.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if rec.Suspended() {
		return nil, ErrSuspended
	}
	return rec, nil
}

// VerificationStatus reports whether the monitor wants extra verification
// from this user, and which rule asked for it. Informational: a flag-store
// outage reads as "nothing required".
func (u *Usecase) VerificationStatus(ctx context.Context, userID int64) (string, bool) {
	reason, required, err := u.d.Flags.VerificationRequired(ctx, userID)
	if err != nil {
		u.d.Log.Warn("verification flag", zap.Int64("user_id", userID), zap.Error(err))
		return "", false
	}
	return reason, required
}

func (u *Usecase) issue(ctx context.Context, userID int64) (domainauth.Pair, error) {
	pair, refreshExp, err := u.d.Codec.Issue(userID)
	if err != nil {
		return domainauth.Pair{}, fmt.Errorf("issue tokens: %w", err)
	}
	rec := &domainauth.RefreshToken{
		UserID:    userID,
		TokenHash: token.Hash(pair.RefreshToken),
		IssuedAt:  u.cfg.Now(),
		ExpiresAt: refreshExp,
	}
	if err := u.d.Tokens.Create(ctx, rec); err != nil {
		return domainauth.Pair{}, fmt.Errorf("save refresh: %w", err)
	}
	return pair, nil
}

func (u *Usecase) lookupUserID(ctx context.Context, phone string) int64 {
	rec, err := u.d.Users.GetByPhone(ctx, phone)
	if err != nil {
		return 0
	}
	return rec.ID
}
