package family

import (
	"context"

	"Aporte/internal/domain/goal"
	appErrors "Aporte/internal/errors"

	"github.com/oklog/ulid/v2"
)

// Decision é o resultado estruturado do gate de permissão. Reason e
// SuggestedActions são dados para exibição, nunca controle de fluxo.
type Decision struct {
	Allowed          bool     `json:"allowed"`
	Reason           string   `json:"reason,omitempty"`
	SuggestedActions []string `json:"suggestedActions,omitempty"`
}

// Service centraliza toda decisão de acesso a metas. As verificações de
// papel familiar que antes viviam espalhadas pelas telas passam por aqui.
type Service struct {
	Repository Repository
}

func NewService(repo Repository) *Service {
	return &Service{Repository: repo}
}

// CanContribute resolve se o usuário pode aportar na meta. Meta pessoal:
// somente o dono. Meta familiar: membro ativo com papel que dê direito de
// aporte. Apenas leituras; nenhum efeito colateral.
func (s *Service) CanContribute(ctx context.Context, userID ulid.ULID, g *goal.Goal) (*Decision, error) {
	if g == nil {
		return nil, appErrors.ErrGoalNotFound
	}

	if !g.IsShared() {
		if g.UserId == userID {
			return &Decision{Allowed: true}, nil
		}
		return &Decision{
			Allowed: false,
			Reason:  "Esta meta pertence a outro usuário",
			SuggestedActions: []string{
				"Escolha uma das suas metas",
			},
		}, nil
	}

	membership, err := s.Repository.GetMembership(ctx, userID, *g.FamilyId)
	if err != nil {
		if appErr, ok := appErrors.AsAppError(err); ok && appErr.StatusCode == 404 {
			return &Decision{
				Allowed: false,
				Reason:  "Você não participa da família desta meta",
				SuggestedActions: []string{
					"Peça a um administrador da família para convidá-lo",
				},
			}, nil
		}
		return nil, err
	}

	if !membership.IsActive {
		return &Decision{
			Allowed: false,
			Reason:  "Sua participação nesta família está inativa",
			SuggestedActions: []string{
				"Peça a um administrador da família para reativar seu acesso",
			},
		}, nil
	}

	if !membership.Role.CanContribute() {
		return &Decision{
			Allowed: false,
			Reason:  "Seu papel na família permite apenas visualizar esta meta",
			SuggestedActions: []string{
				"Peça a um administrador da família para conceder acesso de aporte",
			},
		}, nil
	}

	return &Decision{Allowed: true}, nil
}

// DenialError converte uma negação em FlowError tipado: family_restriction
// para metas compartilhadas, permission para as demais.
func DenialError(g *goal.Goal, decision *Decision) *appErrors.FlowError {
	if decision == nil || decision.Allowed {
		return nil
	}
	if g != nil && g.IsShared() {
		return appErrors.NewFamilyRestrictionError(decision.Reason, decision.SuggestedActions)
	}
	return appErrors.NewPermissionError(decision.Reason, decision.SuggestedActions)
}
