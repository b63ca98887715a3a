// File: internal/auth/handler.go
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/config"
	"student_portal_backend/internal/identity"
	"student_portal_backend/internal/session"
	"student_portal_backend/internal/wizard"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ActionCodeApplier consumes the out-of-band codes mailed by a provider that
// has no hosted action page of its own.
type ActionCodeApplier interface {
	ApplyEmailVerification(ctx context.Context, code string) error
	ConfirmPasswordReset(ctx context.Context, code, newPassword string) error
}

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	bridge     *Bridge
	cookieOpts session.CookieOptions
	actions    ActionCodeApplier
	appBaseURL string
	logger     *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(bridge *Bridge, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		bridge:     bridge,
		cookieOpts: session.OptionsFromConfig(cfg),
		appBaseURL: strings.TrimRight(cfg.AppBaseURL, "/"),
		logger:     logger.Named("AuthHandler"),
	}
}

// WithActionCodes enables the /auth/action endpoints.
func (h *Handler) WithActionCodes(a ActionCodeApplier) *Handler {
	h.actions = a
	return h
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/session", h.establishSession)
		authGroup.DELETE("/session", h.clearSession)
		authGroup.GET("/session", h.currentSession)
		authGroup.POST("/preflight", h.preflight)
		authGroup.POST("/verification", h.resendVerification)

		authGroup.POST("/signin", h.signIn)
		authGroup.POST("/signin/federated", h.signInFederated)
		authGroup.POST("/register", h.register)
		authGroup.POST("/password-reset", h.requestPasswordReset)
		authGroup.POST("/signout", h.signOut)

		if h.actions != nil {
			authGroup.GET("/action", h.applyAction)
			authGroup.POST("/action", h.confirmPasswordReset)
		}
	}
}

func (h *Handler) jar(c *gin.Context) session.Jar {
	return session.NewCookieJar(c, h.cookieOpts)
}

func (h *Handler) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Warn("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			common.RespondWithError(c, common.NewValidationAPIError(common.FormatValidationErrors(ve)))
			return false
		}
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Malformed JSON body."))
		return false
	}
	return true
}

func (h *Handler) fail(c *gin.Context, err error) {
	if code := CodeOf(err); code == "" {
		h.logger.Error("Unexpected auth error", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		h.logger.Debug("Auth request failed", zap.String("path", c.FullPath()), zap.String("code", string(code)), zap.Error(err))
	}
	common.RespondWithError(c, ToAPIError(err))
}

func (h *Handler) establishSession(c *gin.Context) {
	var req SessionRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.bridge.EstablishSession(c.Request.Context(), h.jar(c), req.Token)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Session established.", gin.H{"user": s})
}

func (h *Handler) clearSession(c *gin.Context) {
	h.bridge.ClearSession(c.Request.Context(), h.jar(c))
	common.RespondOK(c, "Session cleared.", nil)
}

func (h *Handler) currentSession(c *gin.Context) {
	s, err := h.bridge.CurrentSession(c.Request.Context(), h.jar(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Session is active.", gin.H{"user": s})
}

func (h *Handler) preflight(c *gin.Context) {
	var req PreflightRequest
	if !h.bind(c, &req) {
		return
	}
	res, err := h.bridge.Preflight(c.Request.Context(), req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Preflight completed.", res)
}

func (h *Handler) resendVerification(c *gin.Context) {
	var req VerificationRequest
	if !h.bind(c, &req) {
		return
	}
	already, err := h.bridge.ResendVerification(c.Request.Context(), h.jar(c), req.Token, req.ContinueURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	if already {
		common.RespondOK(c, "Email is already verified.", gin.H{"alreadyVerified": true})
		return
	}
	common.RespondOK(c, "Verification email sent.", gin.H{"alreadyVerified": false})
}

func (h *Handler) signIn(c *gin.Context) {
	var req SignInRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.bridge.SignIn(c.Request.Context(), h.jar(c), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Sign-in successful.", gin.H{"user": s})
}

func (h *Handler) signInFederated(c *gin.Context) {
	var req FederatedSignInRequest
	if !h.bind(c, &req) {
		return
	}
	s, err := h.bridge.SignInFederated(c.Request.Context(), h.jar(c), req.IDToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Sign-in successful.", gin.H{"user": s})
}

func (h *Handler) register(c *gin.Context) {
	var req wizard.RegistrationRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.bridge.Register(c.Request.Context(), h.jar(c), req); err != nil {
		h.fail(c, err)
		return
	}
	common.RespondCreated(c, "Registration successful. Please verify your email, then sign in.", gin.H{
		"email":            req.Email,
		"verificationSent": h.bridge.Mode() == ModeLive,
	})
}

func (h *Handler) requestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.bridge.RequestPasswordReset(c.Request.Context(), req.Email, req.ContinueURL); err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "If an account exists for this email, a reset link has been sent.", nil)
}

func (h *Handler) signOut(c *gin.Context) {
	if err := h.bridge.SignOut(c.Request.Context(), h.jar(c)); err != nil {
		h.fail(c, err)
		return
	}
	common.RespondOK(c, "Signed out.", nil)
}

func (h *Handler) applyAction(c *gin.Context) {
	code := c.Query("oobCode")
	if code == "" {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Missing oobCode."))
		return
	}
	switch c.Query("mode") {
	case identity.ActionVerifyEmail:
		if err := h.actions.ApplyEmailVerification(c.Request.Context(), code); err != nil {
			h.fail(c, fromIdentity(err, CodeNetworkError))
			return
		}
		// Only redirect back into the app.
		if next := c.Query("continueUrl"); next != "" && strings.HasPrefix(next, h.appBaseURL+"/") {
			c.Redirect(http.StatusSeeOther, next)
			return
		}
		common.RespondOK(c, "Email verified. You can now sign in.", nil)
	case identity.ActionResetPassword:
		common.RespondOK(c, "Submit a new password to complete the reset.", gin.H{"oobCode": code})
	default:
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Unknown action mode."))
	}
}

func (h *Handler) confirmPasswordReset(c *gin.Context) {
	var req ConfirmPasswordResetRequest
	if !h.bind(c, &req) {
		return
	}
	if err := h.actions.ConfirmPasswordReset(c.Request.Context(), req.OOBCode, req.NewPassword); err != nil {
		h.fail(c, fromIdentity(err, CodeNetworkError))
		return
	}
	common.RespondOK(c, "Password updated. You can now sign in.", nil)
}
