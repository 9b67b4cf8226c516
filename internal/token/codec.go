package token

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/NordCoder/Gatehouse/internal/domain/auth"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

const (
	issuer      = "gatehouse"
	audAccess   = "gatehouse/access"
	audRefresh  = "gatehouse/refresh"
	defaultSkew = 30 * time.Second
)

type Claims struct {
	jwt.RegisteredClaims
}

func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// Codec mints and validates the two token kinds. It owns no storage; signing
// is pure computation over the configured secrets.
type Codec struct {
	cfg Config
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 24 * time.Hour
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Codec{cfg: cfg}, nil
}

// Issue mints an access+refresh pair for userID. The returned time is the
// refresh token expiry, which the ledger row must carry.
func (c *Codec) Issue(userID int64) (auth.Pair, time.Time, error) {
	now := c.cfg.Now()

	access, err := c.sign(userID, now, now.Add(c.cfg.AccessTTL), audAccess, c.cfg.AccessSecret)
	if err != nil {
		return auth.Pair{}, time.Time{}, fmt.Errorf("sign access: %w", err)
	}

	refreshExp := now.Add(c.cfg.RefreshTTL)
	refresh, err := c.sign(userID, now, refreshExp, audRefresh, c.cfg.RefreshSecret)
	if err != nil {
		return auth.Pair{}, time.Time{}, fmt.Errorf("sign refresh: %w", err)
	}

	return auth.Pair{AccessToken: access, RefreshToken: refresh}, refreshExp, nil
}

func (c *Codec) ValidateAccess(raw string) (*Claims, error) {
	return c.validate(raw, audAccess, c.cfg.AccessSecret, defaultSkew)
}

// ValidateRefresh allows no expiry leeway. The ledger reads a missing row as
// replay, so a refresh token must be either inside its window or expired;
// a skew grace here would turn honest just-expired tokens into replays.
func (c *Codec) ValidateRefresh(raw string) (*Claims, error) {
	return c.validate(raw, audRefresh, c.cfg.RefreshSecret, 0)
}

// ExpiryUnverified reads exp without checking the signature. Used only to
// size blacklist TTLs; never use it to authenticate.
func (c *Codec) ExpiryUnverified(raw string) (time.Time, error) {
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return time.Time{}, ErrTokenInvalid
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrTokenInvalid
	}
	return claims.ExpiresAt.Time, nil
}

func (c *Codec) sign(userID int64, iat, exp time.Time, aud string, secret []byte) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{aud},
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (c *Codec) validate(raw, aud string, secret []byte, leeway time.Duration) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrTokenInvalid
			}
			return secret, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(aud),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(c.cfg.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Hash is the ledger/blacklist key for a raw token.
func Hash(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(h[:])
}
