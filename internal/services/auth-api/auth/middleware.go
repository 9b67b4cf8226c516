package auth

import (
	"crypto/subtle"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	domainauth "github.com/NordCoder/Gatehouse/internal/domain/auth"
	sec "github.com/NordCoder/Gatehouse/internal/domain/security"
	"github.com/NordCoder/Gatehouse/internal/domain/user"
)

const ctxUserKey = "gatehouse.user"

type RateLimitConfig struct {
	AuthLimit  int
	AuthWindow time.Duration
	APILimit   int
	APIWindow  time.Duration
}

type Middleware struct {
	log      *zap.Logger
	uc       *Usecase
	limiter  domainauth.RateLimiter
	security SecurityRecorder
	rl       RateLimitConfig
	adminKey string
}

func NewMiddleware(
	log *zap.Logger,
	uc *Usecase,
	limiter domainauth.RateLimiter,
	security SecurityRecorder,
	rl RateLimitConfig,
	adminKey string,
) *Middleware {
	if rl.AuthLimit <= 0 {
		rl.AuthLimit = 5
	}
	if rl.AuthWindow <= 0 {
		rl.AuthWindow = time.Minute
	}
	if rl.APILimit <= 0 {
		rl.APILimit = 100
	}
	if rl.APIWindow <= 0 {
		rl.APIWindow = time.Minute
	}
	return &Middleware{log: log, uc: uc, limiter: limiter, security: security, rl: rl, adminKey: adminKey}
}

// CurrentUser returns the account attached by RequireAuth.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth validates the bearer token, checks the blacklist and the
// monitor's flags, and attaches the account. Storage failures deny access.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abortError(c, 401, codeUnauthorized, "missing bearer token")
			return
		}

		u, err := m.uc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, ErrTokenExpired):
				abortError(c, 401, codeUnauthorized, "token expired")
			case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrSuspended):
				abortError(c, 401, codeUnauthorized, "invalid token")
			case errors.Is(err, ErrReauthRequired):
				abortError(c, 401, codeReauthRequired, "re-authentication required")
			default:
				m.log.Error("authenticate", zap.Error(err))
				abortError(c, 503, codeUnavailable, "authentication temporarily unavailable")
			}
			return
		}

		c.Set(ctxUserKey, u)
		m.security.Record(c.Request.Context(), sec.Event{
			UserID: u.ID, Type: sec.EventAPIRequest, IP: c.ClientIP(), UserAgent: c.Request.UserAgent(),
		})
		c.Next()
	}
}

// RateLimitAuth guards the unauthenticated auth endpoints, keyed by client
// address. A limiter outage denies the request: these endpoints mint
// credentials, so the check fails closed.
func (m *Middleware) RateLimitAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := m.limiter.Allow(c.Request.Context(), "auth:ip:"+c.ClientIP(), m.rl.AuthLimit, m.rl.AuthWindow)
		if err != nil {
			m.log.Error("auth rate limit", zap.Error(err))
			abortError(c, 503, codeUnavailable, "try again later")
			return
		}
		setRateHeaders(c, d)
		if !d.Allowed {
			abortError(c, 429, codeRateLimited, "too many requests")
			return
		}
		c.Next()
	}
}

// RateLimitAPI guards authenticated endpoints, keyed by user with a quota
// scaled by trust score. A limiter outage lets the request through: the
// caller already holds a valid token, so the check fails open.
func (m *Middleware) RateLimitAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "api:ip:" + c.ClientIP()
		limit := m.rl.APILimit
		if u, ok := CurrentUser(c); ok {
			key = "api:user:" + strconv.FormatInt(u.ID, 10)
			limit = scaleByTrust(m.rl.APILimit, u.TrustScore)
		}

		d, err := m.limiter.Allow(c.Request.Context(), key, limit, m.rl.APIWindow)
		if err != nil {
			m.log.Warn("api rate limit", zap.Error(err))
			c.Next()
			return
		}
		setRateHeaders(c, d)
		if !d.Allowed {
			abortError(c, 429, codeRateLimited, "too many requests")
			return
		}
		c.Next()
	}
}

// scaleByTrust widens the quota for accounts with a track record.
func scaleByTrust(base, trust int) int {
	switch {
	case trust >= 75:
		return base * 4
	case trust >= 50:
		return base * 2
	default:
		return base
	}
}

func setRateHeaders(c *gin.Context, d domainauth.Decision) {
	c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if !d.Allowed {
		retry := int(time.Until(d.ResetAt).Seconds())
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
	}
}

// RequireAdmin guards operator endpoints with a static key. With no key
// configured the endpoints are dead.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader("X-API-Key")
		if m.adminKey == "" || presented == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(m.adminKey)) != 1 {
			abortError(c, 401, codeUnauthorized, "invalid api key")
			return
		}
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}
