package contracts

import (
	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/transaction"
	appErrors "Aporte/internal/errors"
)

type FlowSelectGoalRequest struct {
	GoalId string `json:"goalId" binding:"required,len=26"`
}

// FlowDraftPatchRequest carrega os campos editáveis do rascunho; campo
// ausente no JSON significa "não mexer".
type FlowDraftPatchRequest struct {
	AccountId *string `json:"accountId"`
	Amount    *string `json:"amount"`
	Note      *string `json:"note"`
}

// FlowErrorPayload é a forma serializada de um erro do fluxo: tudo que a
// interface precisa para exibir e orientar o usuário.
type FlowErrorPayload struct {
	Kind             string                 `json:"kind"`
	Title            string                 `json:"title"`
	Message          string                 `json:"message"`
	Details          map[string]interface{} `json:"details,omitempty"`
	SuggestedActions []string               `json:"suggestedActions,omitempty"`
	Retryable        bool                   `json:"retryable"`
}

func ToFlowErrorPayload(err *appErrors.FlowError) *FlowErrorPayload {
	if err == nil {
		return nil
	}
	return &FlowErrorPayload{
		Kind:             string(err.Kind),
		Title:            err.Title,
		Message:          err.Message,
		Details:          err.Details,
		SuggestedActions: err.SuggestedActions,
		Retryable:        err.Retryable,
	}
}

type FlowStateResponse struct {
	FlowId    string                         `json:"flowId"`
	Step      string                         `json:"step"`
	Draft     *contribution.Draft            `json:"draft"`
	Review    *contribution.ReviewProjection `json:"review,omitempty"`
	LastError *FlowErrorPayload              `json:"lastError,omitempty"`
	Outcome   *contribution.Outcome          `json:"outcome,omitempty"`
}

func ToFlowStateResponse(state *contribution.FlowState) *FlowStateResponse {
	return &FlowStateResponse{
		FlowId:    state.FlowId.String(),
		Step:      string(state.Step),
		Draft:     state.Draft,
		Review:    state.Review,
		LastError: ToFlowErrorPayload(state.LastError),
		Outcome:   state.Outcome,
	}
}

type EligibleGoalsResponse struct {
	Goals []*goal.Goal `json:"goals"`
	Total int          `json:"total"`
}

type ContributionListResponse struct {
	Contributions []*contribution.Contribution `json:"contributions"`
	Total         int                          `json:"total"`
}

type TransactionListResponse struct {
	Transactions []*transaction.Transaction `json:"transactions"`
	Total        int                        `json:"total"`
}
