package routes

import (
	"Aporte/internal/contracts"
	"Aporte/internal/domain/account"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/user"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/logger"
	"Aporte/internal/middleware"
	"Aporte/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

type Handler struct {
	UserService    *user.Service
	JwtService     *middleware.JwtService
	GoalService    *goal.Service
	AccountService *account.Service
	FamilyService  *family.Service

	Flows    *contribution.Manager
	Sync     *contribution.SyncManager
	Recorder contribution.Recorder
}

func (h *Handler) GetUserIDFromContext(c *gin.Context) (ulid.ULID, error) {
	userIDStr, exists := c.Get("user_id")
	if !exists {
		return ulid.ULID{}, appErrors.ErrUnauthorized
	}

	userID, err := pkg.ParseULID(userIDStr.(string))
	if err != nil {
		return ulid.ULID{}, appErrors.ErrUnauthorized.WithError(err)
	}

	return userID, nil
}

func (h *Handler) parsePagination(c *gin.Context) *pkg.PaginationParams {
	page := c.DefaultQuery("page", "1")
	limit := c.DefaultQuery("limit", "10")

	var pageNum, limitNum int
	if p, err := pkg.ParseInt(page); err == nil && p > 0 {
		pageNum = p
	} else {
		pageNum = 1
	}

	if l, err := pkg.ParseInt(limit); err == nil && l > 0 {
		limitNum = l
	} else {
		limitNum = 10
	}

	return &pkg.PaginationParams{
		Page:  pageNum,
		Limit: limitNum,
	}
}

// respondError serializa erros do fluxo de aporte com a carga completa
// (título, ações sugeridas, retryable); os demais seguem o formato AppError.
func (h *Handler) respondError(c *gin.Context, err error) {
	if flowErr, ok := appErrors.AsFlowError(err); ok {
		logger.Warn().
			Str("kind", string(flowErr.Kind)).
			Str("path", c.FullPath()).
			Msg("flow_error")
		c.JSON(flowErr.StatusCode(), gin.H{
			"error": contracts.ToFlowErrorPayload(flowErr),
		})
		return
	}

	appErr := appErrors.FromError(err)
	event := logger.Error().Str("code", appErr.Code).Str("path", c.FullPath())
	if appErr.Err != nil {
		event = event.Err(appErr.Err)
	}
	event.Msg("request_error")
	payload := gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
	}
	if len(appErr.Details) > 0 {
		payload["details"] = appErr.Details
	}
	c.JSON(appErr.StatusCode, payload)
}
