package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatehouse/internal/domain/user"
	"github.com/NordCoder/Gatehouse/internal/ratelimit"
)

const adminKey = "test-admin-key"

type blockerFunc func(ctx context.Context, userID int64, reason string) error

func (f blockerFunc) BlockUser(ctx context.Context, userID int64, reason string) error {
	return f(ctx, userID, reason)
}

type httpEnv struct {
	*env
	router *gin.Engine
}

func newHTTPEnv(t *testing.T, rl RateLimitConfig) *httpEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := newEnv(t)
	he := &httpEnv{env: e, router: gin.New()}

	mem := ratelimit.NewMemory().WithClock(func() time.Time { return e.now })
	blocker := blockerFunc(func(ctx context.Context, userID int64, reason string) error {
		if err := e.users.SetStatus(ctx, userID, user.StatusSuspended); err != nil {
			return err
		}
		return e.tokens.DeleteAllForUser(ctx, userID)
	})

	mw := NewMiddleware(zap.NewNop(), e.uc, mem, e.rec, rl, adminKey)
	ctrl := NewController(zap.NewNop(), e.uc, blocker)
	ctrl.Register(he.router, mw)
	return he
}

func (h *httpEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", testUA)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestSignupFlowOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})

	w := h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{"phone": testPhone}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	code := h.codes.codeFor(testPhone)
	require.NotEmpty(t, code)

	w = h.do(t, http.MethodPost, "/v1/auth/verify-phone", gin.H{"phone": testPhone, "code": code}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var vp verifyPhoneResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vp))
	require.True(t, vp.IsNewUser)
	require.True(t, vp.RequiresSignup)
	require.Equal(t, testPhone, vp.Phone)
	require.Empty(t, vp.AccessToken)

	w = h.do(t, http.MethodPost, "/v1/auth/signup", gin.H{
		"phone": testPhone, "name": "Ada", "username": "ada", "accountType": "personal",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var created tokensResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.AccessToken)
	require.NotEmpty(t, created.RefreshToken)
	require.Equal(t, "ada", created.User.Username)

	w = h.do(t, http.MethodGet, "/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + created.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var me meResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.False(t, me.VerificationRequired)

	// A monitor flag shows up on the profile without blocking the request.
	require.NoError(t, h.flags.SetVerificationRequired(context.Background(), created.User.ID, "frequent_failed_auth", time.Hour))
	w = h.do(t, http.MethodGet, "/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + created.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.True(t, me.VerificationRequired)
	require.Equal(t, "frequent_failed_auth", me.VerificationReason)
}

func TestVerifyPhoneBadCodeOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})

	w := h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{"phone": testPhone}, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = h.do(t, http.MethodPost, "/v1/auth/verify-phone", gin.H{"phone": testPhone, "code": "999999"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, codeValidation, errCode(t, w))
}

func TestValidationErrorsOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})

	w := h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, codeValidation, errCode(t, w))

	w = h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{"phone": "bogus"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, codeValidation, errCode(t, w))
}

func TestAuthRateLimitOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 2, AuthWindow: time.Minute, APILimit: 100})

	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{"phone": testPhone}, nil)
		require.Equal(t, http.StatusAccepted, w.Code, "request %d", i+1)
	}
	w := h.do(t, http.MethodPost, "/v1/auth/send-verification", gin.H{"phone": testPhone}, nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, codeRateLimited, errCode(t, w))
	require.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestMeRequiresToken(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})

	w := h.do(t, http.MethodGet, "/v1/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/v1/me", nil, map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, codeUnauthorized, errCode(t, w))
}

func TestRefreshAndLogoutOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})
	_, pair := h.signupUser(t, testPhone)

	w := h.do(t, http.MethodPost, "/v1/auth/refresh", gin.H{"refreshToken": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rotated tokensResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rotated))
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// Replaying the spent token is rejected.
	w = h.do(t, http.MethodPost, "/v1/auth/refresh", gin.H{"refreshToken": pair.RefreshToken}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, "/v1/auth/logout", gin.H{"refreshToken": rotated.RefreshToken}, map[string]string{
		"Authorization": "Bearer " + rotated.AccessToken,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// The blacklisted access token no longer opens the endpoint.
	w = h.do(t, http.MethodPost, "/v1/auth/logout", nil, map[string]string{
		"Authorization": "Bearer " + rotated.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutRequiresBearerOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})

	w := h.do(t, http.MethodPost, "/v1/auth/logout", nil, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, codeUnauthorized, errCode(t, w))

	w = h.do(t, http.MethodPost, "/v1/auth/logout", nil, map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, codeUnauthorized, errCode(t, w))
}

func TestAdminBlockOverHTTP(t *testing.T) {
	h := newHTTPEnv(t, RateLimitConfig{AuthLimit: 100, APILimit: 100})
	u, pair := h.signupUser(t, testPhone)

	path := fmt.Sprintf("/v1/admin/users/%d/block", u.ID)

	w := h.do(t, http.MethodPost, path, gin.H{"reason": "abuse"}, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, path, gin.H{"reason": "abuse"}, map[string]string{"X-API-Key": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodPost, path, gin.H{"reason": "abuse"}, map[string]string{"X-API-Key": adminKey})
	require.Equal(t, http.StatusOK, w.Code)

	// The suspended account can no longer use its token.
	w = h.do(t, http.MethodGet, "/v1/me", nil, map[string]string{
		"Authorization": "Bearer " + pair.AccessToken,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
