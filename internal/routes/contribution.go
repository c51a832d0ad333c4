package routes

import (
	"net/http"

	"Aporte/internal/contracts"
	"Aporte/internal/domain/contribution"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

// OpenContributionFlow abre um fluxo novo no passo de seleção de meta.
func (h *Handler) OpenContributionFlow(c *gin.Context) {
	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	flow := h.Flows.Open(userID)
	c.JSON(http.StatusCreated, contracts.ToFlowStateResponse(flow.State()))
}

func (h *Handler) GetContributionFlow(c *gin.Context) {
	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, contracts.ToFlowStateResponse(flow.State()))
}

// GetEligibleGoals lista as metas que aceitam aporte para o dono do fluxo.
func (h *Handler) GetEligibleGoals(c *gin.Context) {
	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	goals, err := flow.EligibleGoals(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, contracts.EligibleGoalsResponse{Goals: goals, Total: len(goals)})
}

func (h *Handler) SelectFlowGoal(c *gin.Context) {
	var body contracts.FlowSelectGoalRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, appErrors.ParseValidationErrors(err))
		return
	}

	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	goalID, err := pkg.ParseULID(body.GoalId)
	if err != nil {
		h.respondError(c, appErrors.NewValidationError("goal_id", "formato inválido"))
		return
	}

	state, err := flow.SelectGoal(c.Request.Context(), goalID)
	h.respondFlowState(c, state, err)
}

// PatchFlowDraft atualiza os campos editáveis do rascunho.
func (h *Handler) PatchFlowDraft(c *gin.Context) {
	var body contracts.FlowDraftPatchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.respondError(c, appErrors.ParseValidationErrors(err))
		return
	}

	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	patch := contribution.DraftPatch{
		Amount: body.Amount,
		Note:   body.Note,
	}
	if body.AccountId != nil {
		accountID, err := pkg.ParseULID(*body.AccountId)
		if err != nil {
			h.respondError(c, appErrors.NewValidationError("account_id", "formato inválido"))
			return
		}
		patch.AccountId = &accountID
	}

	state, err := flow.UpdateDraft(patch)
	h.respondFlowState(c, state, err)
}

func (h *Handler) ProceedFlow(c *gin.Context) {
	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	state, err := flow.Proceed(c.Request.Context())
	h.respondFlowState(c, state, err)
}

func (h *Handler) FlowBack(c *gin.Context) {
	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	state, err := flow.Back()
	h.respondFlowState(c, state, err)
}

func (h *Handler) ConfirmFlow(c *gin.Context) {
	flow, ok := h.flowFromRequest(c)
	if !ok {
		return
	}

	state, err := flow.Confirm(c.Request.Context())
	h.respondFlowState(c, state, err)
}

// CancelFlow descarta o fluxo; nada foi gravado até aqui.
func (h *Handler) CancelFlow(c *gin.Context) {
	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	flowID, err := h.parseFlowID(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.Flows.Close(flowID, userID)
	c.JSON(http.StatusOK, contracts.MessageResponse{Message: "Fluxo de aporte cancelado"})
}

func (h *Handler) parseFlowID(c *gin.Context) (ulid.ULID, error) {
	id := c.Param("flowId")
	if id == "" {
		return ulid.ULID{}, appErrors.NewValidationError("flow_id", "é obrigatório")
	}
	parsed, err := pkg.ParseULID(id)
	if err != nil {
		return ulid.ULID{}, appErrors.NewValidationError("flow_id", "formato inválido")
	}
	return parsed, nil
}

func (h *Handler) flowFromRequest(c *gin.Context) (*contribution.Flow, bool) {
	userID, err := h.GetUserIDFromContext(c)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	flowID, err := h.parseFlowID(c)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}

	flow, err := h.Flows.Get(flowID, userID)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return flow, true
}

// respondFlowState devolve o estado do fluxo mesmo em caso de erro: a
// interface renderiza o passo atual e o erro tipado juntos.
func (h *Handler) respondFlowState(c *gin.Context, state *contribution.FlowState, err error) {
	if err != nil {
		if flowErr, ok := appErrors.AsFlowError(err); ok {
			c.JSON(flowErr.StatusCode(), gin.H{
				"error": contracts.ToFlowErrorPayload(flowErr),
				"state": contracts.ToFlowStateResponse(state),
			})
			return
		}
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contracts.ToFlowStateResponse(state))
}
