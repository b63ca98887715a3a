// File: internal/user/handler.go
package user

import (
	"errors"

	"student_portal_backend/internal/common"
	"student_portal_backend/internal/rolefields"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for user handlers.
type Handler struct {
	service Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("UserHandler"),
	}
}

// RegisterRoutes sets up the routes for user operations.
// sessionMW must put the session identity into the context; it runs in order
// before every route except the role catalog.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, sessionMW ...gin.HandlerFunc) {
	userGroup := router.Group("/users")
	{
		userGroup.GET("/roles", h.listRoles)

		authenticated := userGroup.Group("")
		authenticated.Use(sessionMW...)
		{
			authenticated.POST("/sync", h.sync)
			authenticated.GET("/me", h.getMe)
			authenticated.PATCH("/me", h.updateMe)
			authenticated.POST("/me/complete-profile", h.completeProfile)
		}
	}
}

func (h *Handler) listRoles(c *gin.Context) {
	common.RespondOK(c, "Role catalog retrieved successfully.", gin.H{"roles": rolefields.All()})
}

func bindJSON(c *gin.Context, logger *zap.Logger, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		logger.Warn("Invalid request body", zap.String("path", c.FullPath()), zap.Error(err))
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

func (h *Handler) sync(c *gin.Context) {
	var req SyncRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	uid := common.GetIdentityUIDFromContext(c)
	if req.FirebaseUID != "" && req.FirebaseUID != uid {
		common.RespondWithError(c, common.ErrForbidden.WithDetails("Cannot sync a record for another identity."))
		return
	}
	email := common.GetIdentityEmailFromContext(c)
	if email == "" {
		email = req.Email
	} else if NormalizeEmail(req.Email) != NormalizeEmail(email) {
		common.RespondWithError(c, common.ErrForbidden.WithDetails("Email does not match the signed-in identity."))
		return
	}

	in := SyncInput{
		UID:        uid,
		Email:      email,
		Name:       req.Name,
		Role:       req.Role,
		University: req.University,
		Contact:    req.Contact,
		MarkLogin:  true,
	}
	if req.Role != "" && req.RoleDetails != nil {
		resolved, errs := rolefields.ValidateRoleFields(req.Role, *req.RoleDetails)
		if !errs.Empty() {
			common.RespondWithError(c, common.NewValidationAPIError(errs))
			return
		}
		in.RoleDetails = &resolved
	}

	u, created, err := h.service.Sync(c.Request.Context(), in)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User synced successfully.", gin.H{"user": ToUserResponse(u), "created": created})
}

func (h *Handler) getMe(c *gin.Context) {
	uid := common.GetIdentityUIDFromContext(c)
	if uid == "" {
		h.logger.Error("Identity not found in context for /me", zap.String("path", c.Request.URL.Path))
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}
	u, err := h.service.FindByID(c.Request.Context(), uid)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "User profile retrieved successfully.", ToUserResponse(u))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req ProfileUpdate
	if !bindJSON(c, h.logger, &req) {
		return
	}
	u, err := h.service.UpdateProfile(c.Request.Context(), common.GetIdentityUIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile updated successfully.", ToUserResponse(u))
}

func (h *Handler) completeProfile(c *gin.Context) {
	var req CompleteProfileRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	u, err := h.service.CompleteProfile(c.Request.Context(), common.GetIdentityUIDFromContext(c), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Profile completed successfully.", ToUserResponse(u))
}
