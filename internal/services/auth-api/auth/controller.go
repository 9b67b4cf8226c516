package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/NordCoder/Gatehouse/internal/domain/user"
	pg "github.com/NordCoder/Gatehouse/internal/repository/postgres"
)

// Machine-readable error codes carried in every failure body.
const (
	codeValidation     = "VALIDATION_ERROR"
	codeUnauthorized   = "UNAUTHORIZED"
	codeReauthRequired = "REAUTH_REQUIRED"
	codeNotFound       = "NOT_FOUND"
	codeConflict       = "CONFLICT"
	codeRateLimited    = "RATE_LIMITED"
	codeUnavailable    = "UNAVAILABLE"
	codeInternal       = "INTERNAL"
)

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorInfo `json:"error"`
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorInfo{Code: code, Message: msg}})
}

// UserBlocker is the operator action behind the admin surface.
type UserBlocker interface {
	BlockUser(ctx context.Context, userID int64, reason string) error
}

type Controller struct {
	log     *zap.Logger
	uc      *Usecase
	blocker UserBlocker
}

func NewController(log *zap.Logger, uc *Usecase, blocker UserBlocker) *Controller {
	return &Controller{log: log, uc: uc, blocker: blocker}
}

// Register wires the HTTP surface. The anonymous auth endpoints sit behind
// the fail-closed limiter; logout and everything user-facing require a
// bearer token.
func (ct *Controller) Register(r gin.IRouter, mw *Middleware) {
	v1 := r.Group("/v1")

	a := v1.Group("/auth")
	a.Use(mw.RateLimitAuth())
	a.POST("/send-verification", ct.sendVerification)
	a.POST("/verify-phone", ct.verifyPhone)
	a.POST("/signup", ct.signup)
	a.POST("/refresh", ct.refresh)
	a.POST("/logout", mw.RequireAuth(), ct.logout)

	api := v1.Group("")
	api.Use(mw.RequireAuth(), mw.RateLimitAPI())
	api.GET("/me", ct.me)

	admin := v1.Group("/admin")
	admin.Use(mw.RequireAdmin())
	admin.POST("/users/:id/block", ct.blockUser)
}

type sendVerificationReq struct {
	Phone string `json:"phone" binding:"required"`
}

func (ct *Controller) sendVerification(c *gin.Context) {
	var req sendVerificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeValidation, "phone is required")
		return
	}
	if err := ct.uc.SendVerification(c.Request.Context(), req.Phone, c.ClientIP(), c.Request.UserAgent()); err != nil {
		ct.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent", "expiresIn": int(ct.uc.CodeTTL().Seconds())})
}

type verifyPhoneReq struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type verifyPhoneResp struct {
	IsNewUser      bool       `json:"isNewUser"`
	RequiresSignup bool       `json:"requiresSignup,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	User           *user.User `json:"user,omitempty"`
	AccessToken    string     `json:"accessToken,omitempty"`
	RefreshToken   string     `json:"refreshToken,omitempty"`
}

func (ct *Controller) verifyPhone(c *gin.Context) {
	var req verifyPhoneReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeValidation, "phone and code are required")
		return
	}
	res, err := ct.uc.VerifyPhone(c.Request.Context(), req.Phone, req.Code, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ct.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, verifyPhoneResp{
		IsNewUser:      res.IsNewUser,
		RequiresSignup: res.IsNewUser,
		Phone:          res.Phone,
		User:           res.User,
		AccessToken:    res.Pair.AccessToken,
		RefreshToken:   res.Pair.RefreshToken,
	})
}

type signupReq struct {
	Phone       string `json:"phone" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Username    string `json:"username"`
	Email       string `json:"email" binding:"omitempty,email"`
	Bio         string `json:"bio"`
	AccountType string `json:"accountType"`
}

type tokensResp struct {
	User         *user.User `json:"user,omitempty"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

func (ct *Controller) signup(c *gin.Context) {
	var req signupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeValidation, "invalid signup payload")
		return
	}
	u, pair, err := ct.uc.Signup(c.Request.Context(), SignupInput{
		Phone:       req.Phone,
		Name:        req.Name,
		Username:    req.Username,
		Email:       req.Email,
		Bio:         req.Bio,
		AccountType: user.AccountType(req.AccountType),
	}, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ct.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tokensResp{User: u, AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (ct *Controller) refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, codeValidation, "refreshToken is required")
		return
	}
	pair, err := ct.uc.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ct.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokensResp{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (ct *Controller) logout(c *gin.Context) {
	var req logoutReq
	_ = c.ShouldBindJSON(&req)
	err := ct.uc.Logout(c.Request.Context(), bearerToken(c), req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		ct.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

type meResp struct {
	*user.User
	VerificationRequired bool   `json:"verificationRequired,omitempty"`
	VerificationReason   string `json:"verificationReason,omitempty"`
}

func (ct *Controller) me(c *gin.Context) {
	u, ok := CurrentUser(c)
	if !ok {
		abortError(c, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
		return
	}
	reason, required := ct.uc.VerificationStatus(c.Request.Context(), u.ID)
	c.JSON(http.StatusOK, meResp{User: u, VerificationRequired: required, VerificationReason: reason})
}

type blockUserReq struct {
	Reason string `json:"reason"`
}

func (ct *Controller) blockUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, codeValidation, "invalid user id")
		return
	}
	var req blockUserReq
	_ = c.ShouldBindJSON(&req)

	if err := ct.blocker.BlockUser(c.Request.Context(), id, req.Reason); err != nil {
		if errors.Is(err, pg.ErrNotFound) {
			abortError(c, http.StatusNotFound, codeNotFound, "user not found")
			return
		}
		ct.log.Error("block user", zap.Int64("user_id", id), zap.Error(err))
		abortError(c, http.StatusInternalServerError, codeInternal, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "blocked"})
}

func (ct *Controller) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidPhone), errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidCode), errors.Is(err, ErrNotVerified):
		abortError(c, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrSuspended):
		abortError(c, http.StatusUnauthorized, codeUnauthorized, err.Error())
	case errors.Is(err, ErrReauthRequired):
		abortError(c, http.StatusUnauthorized, codeReauthRequired, err.Error())
	case errors.Is(err, ErrAlreadyExists):
		abortError(c, http.StatusConflict, codeConflict, err.Error())
	case errors.Is(err, ErrSMSUnavailable):
		abortError(c, http.StatusServiceUnavailable, codeUnavailable, err.Error())
	default:
		ct.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortError(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}
