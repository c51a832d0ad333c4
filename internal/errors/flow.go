package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// FlowKind classifica as falhas do fluxo de aporte. A taxonomia é exaustiva:
// todo erro exposto pelo orquestrador carrega exatamente um desses valores.
type FlowKind string

const (
	FlowValidation        FlowKind = "validation"
	FlowBalance           FlowKind = "balance"
	FlowGoalLimit         FlowKind = "goal_limit"
	FlowPermission        FlowKind = "permission"
	FlowFamilyRestriction FlowKind = "family_restriction"
	FlowNetwork           FlowKind = "network"
	FlowPartialFailure    FlowKind = "partial_failure"
)

// FlowError é o erro tipado do fluxo de aporte: título e mensagem prontos
// para exibição, detalhes opcionais, ações sugeridas em ordem e a flag
// Retryable separando falhas corrigíveis pelo usuário das estruturais.
type FlowError struct {
	Kind             FlowKind
	Title            string
	Message          string
	Details          map[string]interface{}
	SuggestedActions []string
	Retryable        bool
	Err              error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) StatusCode() int {
	switch e.Kind {
	case FlowValidation, FlowBalance, FlowGoalLimit:
		return http.StatusUnprocessableEntity
	case FlowPermission, FlowFamilyRestriction:
		return http.StatusForbidden
	case FlowPartialFailure:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func AsFlowError(err error) (*FlowError, bool) {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr, true
	}
	return nil, false
}

func NewFlowValidationError(field, message string) *FlowError {
	return &FlowError{
		Kind:    FlowValidation,
		Title:   "Dados inválidos",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
		SuggestedActions: []string{"Corrija o campo destacado e tente novamente"},
		Retryable:        true,
	}
}

func NewBalanceError(shortfall decimal.Decimal) *FlowError {
	return &FlowError{
		Kind:    FlowBalance,
		Title:   "Saldo insuficiente",
		Message: fmt.Sprintf("O valor do aporte excede o saldo da conta em %s", shortfall.StringFixed(2)),
		Details: map[string]interface{}{
			"shortfall": shortfall.StringFixed(2),
		},
		SuggestedActions: []string{
			"Reduza o valor do aporte",
			"Escolha outra conta de origem",
		},
		Retryable: true,
	}
}

func NewGoalLimitError(max decimal.Decimal) *FlowError {
	return &FlowError{
		Kind:    FlowGoalLimit,
		Title:   "Valor acima do restante da meta",
		Message: fmt.Sprintf("O aporte máximo permitido para esta meta é %s", max.StringFixed(2)),
		Details: map[string]interface{}{
			"max_contribution": max.StringFixed(2),
		},
		SuggestedActions: []string{
			fmt.Sprintf("Reduza o valor para no máximo %s", max.StringFixed(2)),
		},
		Retryable: true,
	}
}

func NewPermissionError(reason string, actions []string) *FlowError {
	return &FlowError{
		Kind:             FlowPermission,
		Title:            "Sem permissão",
		Message:          reason,
		SuggestedActions: actions,
		Retryable:        false,
	}
}

func NewFamilyRestrictionError(reason string, actions []string) *FlowError {
	return &FlowError{
		Kind:             FlowFamilyRestriction,
		Title:            "Meta familiar restrita",
		Message:          reason,
		SuggestedActions: actions,
		Retryable:        false,
	}
}

func NewNetworkError(err error) *FlowError {
	return &FlowError{
		Kind:    FlowNetwork,
		Title:   "Falha de comunicação",
		Message: "Não foi possível concluir a operação. Seus dados foram preservados.",
		SuggestedActions: []string{
			"Verifique sua conexão",
			"Tente novamente",
		},
		Retryable: true,
		Err:       err,
	}
}

// NewPartialFailureError representa um commit sequencial que parou no meio:
// parte dos registros foi gravada e parte não. Nunca é apresentado como uma
// falha genérica, para que o usuário não repita o aporte às cegas.
func NewPartialFailureError(steps map[string]interface{}, err error) *FlowError {
	return &FlowError{
		Kind:    FlowPartialFailure,
		Title:   "Aporte pode não ter sido concluído",
		Message: "A operação pode ter sido registrada parcialmente. Confira o extrato da meta antes de repetir o aporte.",
		Details: map[string]interface{}{
			"steps": steps,
		},
		SuggestedActions: []string{
			"Confira o histórico de aportes da meta",
			"Confira o saldo da conta de origem",
			"Entre em contato com o suporte se os valores divergirem",
		},
		Retryable: false,
		Err:       err,
	}
}
