package infrastructure

import (
	"context"
	"errors"
	"strings"

	"Aporte/internal/domain/contribution"
	appErrors "Aporte/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ContributionProcedure invoca a function contribute_to_goal, que grava os
// três efeitos do aporte em uma única transação no servidor.
type ContributionProcedure struct {
	DB      *gorm.DB
	Enabled bool
}

func NewContributionProcedure(db *gorm.DB, enabled bool) *ContributionProcedure {
	return &ContributionProcedure{DB: db, Enabled: enabled}
}

func (p *ContributionProcedure) Contribute(ctx context.Context, req *contribution.ProcedureRequest) error {
	if !p.Enabled {
		return appErrors.ErrProcedureUnavailable
	}

	err := p.DB.WithContext(ctx).Exec(
		"SELECT contribute_to_goal(?, ?, ?, ?, ?, ?)",
		req.ContributionId.String(),
		req.GoalId.String(),
		req.AccountId.String(),
		req.UserId.String(),
		req.Amount,
		req.Note,
	).Error
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		// undefined_function: a procedure não está instalada neste banco.
		case pgErr.Code == "42883":
			return appErrors.ErrProcedureUnavailable.WithError(err)
		// raise_exception vindo da própria procedure: decisão de negócio
		// do servidor, não pode cair para o caminho sequencial.
		case pgErr.Code == "P0001" && strings.Contains(pgErr.Message, "insufficient_balance"):
			return &appErrors.FlowError{
				Kind:    appErrors.FlowBalance,
				Title:   "Saldo insuficiente",
				Message: "O saldo da conta mudou e não cobre mais o valor do aporte",
				SuggestedActions: []string{
					"Reduza o valor do aporte",
					"Escolha outra conta de origem",
				},
				Retryable: true,
				Err:       err,
			}
		case pgErr.Code == "P0001" && strings.Contains(pgErr.Message, "goal_not_found"):
			return appErrors.NewFlowValidationError("goal_id", "Meta não encontrada")
		case pgErr.Code == "23505":
			return appErrors.ErrConflict.WithError(err)
		}
	}

	return err
}
