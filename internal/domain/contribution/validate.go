package contribution

import (
	"Aporte/internal/domain/account"
	"Aporte/internal/domain/goal"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"
)

// Validate aplica as checagens do aporte em ordem fixa, parando na primeira
// falha. É pura: sem efeitos colaterais, mesmo resultado para as mesmas
// entradas, pode ser chamada quantas vezes for preciso.
//
// A regra de não ultrapassar o alvo da meta é política de produto, não
// necessidade física; vive aqui para ser testável isoladamente.
func Validate(d *Draft, g *goal.Goal, acc *account.Account) *appErrors.FlowError {
	amount, err := pkg.ParseAmount(d.Amount)
	if err != nil || !amount.IsPositive() {
		return appErrors.NewFlowValidationError("amount", "Informe um valor maior que zero")
	}

	if d.AccountId == nil {
		return appErrors.NewFlowValidationError("account_id", "Selecione uma conta de origem")
	}

	if d.GoalId == nil {
		return appErrors.NewFlowValidationError("goal_id", "Selecione uma meta")
	}

	if g == nil {
		return appErrors.NewFlowValidationError("goal_id", "Meta não encontrada")
	}

	if acc == nil || !acc.IsActive {
		return appErrors.NewFlowValidationError("account_id", "Conta não encontrada ou inativa")
	}

	if acc.Balance.LessThan(amount) {
		return appErrors.NewBalanceError(amount.Sub(acc.Balance))
	}

	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if amount.GreaterThan(remaining) {
		return appErrors.NewGoalLimitError(remaining)
	}

	return nil
}
