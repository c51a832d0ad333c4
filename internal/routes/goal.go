package routes

import (
	"context"
	"net/http"

	"Aporte/internal/contracts"
	"Aporte/internal/domain/goal"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

func (h *Handler) CreateGoal(c *gin.Context) {
	var body contracts.GoalCreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, appErrors.ParseValidationErrors(err))
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	target, err := pkg.ParseAmount(body.Target)
	if err != nil {
		h.respondError(c, appErrors.NewValidationError("target", "formato inválido"))
		return
	}

	var familyID *ulid.ULID
	if body.FamilyId != "" {
		fid, err := pkg.ParseULID(body.FamilyId)
		if err != nil {
			h.respondError(c, appErrors.NewValidationError("family_id", "formato inválido"))
			return
		}
		familyID = &fid
	}

	ctx := c.Request.Context()
	entity, err := h.GoalService.CreateGoal(ctx, &goal.CreateGoalRequest{
		UserId:     userID,
		FamilyId:   familyID,
		Name:       body.Name,
		Target:     target,
		TargetDate: body.TargetDate,
		Priority:   goal.GoalPriority(body.Priority),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, contracts.GoalResponse{Goal: entity})
}

func (h *Handler) UpdateGoal(c *gin.Context) {
	var body contracts.GoalUpdateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, appErrors.ParseValidationErrors(err))
		return
	}

	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	target, err := pkg.ParseAmount(body.Target)
	if err != nil {
		h.respondError(c, appErrors.NewValidationError("target", "formato inválido"))
		return
	}

	ctx := c.Request.Context()
	if err := h.GoalService.UpdateGoal(ctx, &goal.UpdateGoalRequest{
		Id:         goalID,
		UserId:     userID,
		Name:       body.Name,
		Target:     target,
		TargetDate: body.TargetDate,
		Priority:   goal.GoalPriority(body.Priority),
	}); err != nil {
		h.respondError(c, err)
		return
	}

	h.Sync.Invalidate(goalID)
	c.JSON(http.StatusOK, contracts.MessageResponse{Message: "Meta atualizada com sucesso"})
}

func (h *Handler) ListGoals(c *gin.Context) {
	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	pagination := h.parsePagination(c)

	ctx := c.Request.Context()
	goals, total, err := h.GoalService.GetGoalsByUserID(ctx, userID, pagination)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := pkg.NewPaginatedResponse(goals, pagination.Page, pagination.Limit, total)
	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetGoal(c *gin.Context) {
	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()

	// Leitura pelo cache de sincronização: metas compartilhadas mudam por
	// fora e o cache é invalidado pelas notificações do banco.
	entity, err := h.Sync.GetGoal(ctx, goalID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if entity.UserId != userID && !h.canSeeSharedGoal(ctx, c, entity, userID) {
		return
	}

	c.JSON(http.StatusOK, contracts.GoalResponse{Goal: entity})
}

func (h *Handler) CancelGoal(c *gin.Context) {
	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.GoalService.CancelGoal(ctx, goalID, userID); err != nil {
		h.respondError(c, err)
		return
	}

	h.Sync.Invalidate(goalID)
	c.JSON(http.StatusOK, contracts.MessageResponse{Message: "Meta cancelada com sucesso"})
}

func (h *Handler) GetGoalProgress(c *gin.Context) {
	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	entity, err := h.Sync.GetGoal(ctx, goalID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if entity.UserId != userID && !h.canSeeSharedGoal(ctx, c, entity, userID) {
		return
	}

	c.JSON(http.StatusOK, contracts.GoalProgressResponse{Progress: goal.ProgressOf(entity)})
}

func (h *Handler) GetGoalContributions(c *gin.Context) {
	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	contributions, err := h.Recorder.GetContributionsByGoalId(ctx, goalID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts.ContributionListResponse{Contributions: contributions, Total: len(contributions)})
}

// GetGoalTransactions lista os lançamentos do razão gerados pelos aportes na
// meta, a visão contábil que o extrato geral também enxerga.
func (h *Handler) GetGoalTransactions(c *gin.Context) {
	goalID, err := h.parseIDParam(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	transactions, err := h.Recorder.GetTransactionsByGoalId(ctx, goalID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts.TransactionListResponse{Transactions: transactions, Total: len(transactions)})
}

func (h *Handler) parseIDParam(c *gin.Context) (ulid.ULID, error) {
	id := c.Param("id")
	if id == "" {
		return ulid.ULID{}, appErrors.NewValidationError("id", "é obrigatório")
	}
	parsed, err := pkg.ParseULID(id)
	if err != nil {
		return ulid.ULID{}, appErrors.NewValidationError("id", "formato inválido")
	}
	return parsed, nil
}

// canSeeSharedGoal resolve visibilidade de meta que não pertence ao usuário:
// compartilhada com família em que ele participa. Responde o erro e retorna
// false quando o acesso é negado.
func (h *Handler) canSeeSharedGoal(ctx context.Context, c *gin.Context, g *goal.Goal, userID ulid.ULID) bool {
	if !g.IsShared() {
		h.respondError(c, appErrors.ErrResourceNotOwned)
		return false
	}
	membership, err := h.FamilyService.Repository.GetMembership(ctx, userID, *g.FamilyId)
	if err != nil || !membership.IsActive {
		h.respondError(c, appErrors.ErrResourceNotOwned)
		return false
	}
	return true
}
