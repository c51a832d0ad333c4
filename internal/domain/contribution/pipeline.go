package contribution

import (
	"context"
	"time"

	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/transaction"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/logger"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// CommitState distingue os três desfechos possíveis de um commit. Um commit
// parcial nunca pode ser confundido com um commit limpo ou com uma falha
// limpa; quem consome o resultado decide com base neste valor.
type CommitState string

const (
	StateCommitted          CommitState = "committed"
	StatePartiallyCommitted CommitState = "partially_committed"
	StateNotCommitted       CommitState = "not_committed"
)

const (
	StepInsertContribution = "contribution_insert"
	StepDebitAccount       = "account_debit"
	StepCreditGoal         = "goal_credit"
)

type StepResult struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

type Outcome struct {
	State          CommitState `json:"state"`
	ContributionId string      `json:"contributionId,omitempty"`
	Atomic         bool        `json:"atomic"`
	Steps          []StepResult `json:"steps"`
	Goal           *goal.Goal  `json:"goal,omitempty"`
}

func (o *Outcome) stepsDetail() map[string]interface{} {
	detail := make(map[string]interface{}, len(o.Steps))
	for _, step := range o.Steps {
		entry := map[string]interface{}{"completed": step.Completed}
		if step.Error != "" {
			entry["error"] = step.Error
		}
		detail[step.Name] = entry
	}
	return detail
}

// Pipeline executa a mudança de estado do aporte. Caminho preferido: uma
// única procedure atômica no servidor. Fallback: três escritas sequenciais
// na ordem fixa lançamento → saldo → meta. Só o caminho atômico tem
// atomicidade real; o fallback reporta exatamente o que conseguiu gravar.
//
// A validação do cliente é conveniência de UX, não garantia de correção:
// duas contribuições simultâneas de dispositivos distintos podem validar
// contra a mesma leitura. A não-negatividade do saldo é garantida pelo
// armazenamento — a procedure tranca as linhas e o débito do fallback é
// condicional (balance >= valor), então uma leitura obsoleta falha o commit
// em vez de estourar o saldo.
type Pipeline struct {
	Procedure ProcedureCaller
	Goals     GoalStore
	Accounts  AccountStore
	Recorder  Recorder
}

func NewPipeline(procedure ProcedureCaller, goals GoalStore, accounts AccountStore, recorder Recorder) *Pipeline {
	return &Pipeline{
		Procedure: procedure,
		Goals:     goals,
		Accounts:  accounts,
		Recorder:  recorder,
	}
}

func (p *Pipeline) Commit(ctx context.Context, d *Draft) (*Outcome, error) {
	notCommitted := &Outcome{State: StateNotCommitted, Steps: emptySteps()}

	if d == nil || d.GoalId == nil || d.AccountId == nil {
		return notCommitted, appErrors.NewFlowValidationError("draft", "Rascunho incompleto")
	}

	// Revalida contra leituras frescas imediatamente antes de gravar;
	// qualquer cópia local é apenas consultiva.
	g, err := p.Goals.GetById(ctx, *d.GoalId)
	if err != nil {
		return notCommitted, readFlowError(err, "goal_id", "Meta não encontrada")
	}
	acc, err := p.Accounts.GetByIdAndUser(ctx, *d.AccountId, d.UserId)
	if err != nil {
		return notCommitted, readFlowError(err, "account_id", "Conta não encontrada")
	}

	if ferr := Validate(d, g, acc); ferr != nil {
		return notCommitted, ferr
	}

	amount, err := pkg.ParseAmount(d.Amount)
	if err != nil {
		return notCommitted, appErrors.NewFlowValidationError("amount", "Informe um valor maior que zero")
	}

	if p.Procedure != nil {
		outcome, ferr, fallback := p.commitAtomic(ctx, d, amount)
		if !fallback {
			if ferr != nil {
				return notCommitted, ferr
			}
			return outcome, nil
		}
	}

	return p.commitSequential(ctx, d, g, amount)
}

// commitAtomic tenta a procedure. O terceiro retorno indica se o pipeline
// deve cair para o caminho sequencial: indisponibilidade e falhas de
// infraestrutura caem; falhas de validação decididas pelo servidor não.
func (p *Pipeline) commitAtomic(ctx context.Context, d *Draft, amount decimal.Decimal) (*Outcome, *appErrors.FlowError, bool) {
	req := &ProcedureRequest{
		ContributionId: d.Id,
		GoalId:         *d.GoalId,
		AccountId:      *d.AccountId,
		UserId:         d.UserId,
		Amount:         amount,
		Note:           d.Note,
	}

	err := p.Procedure.Contribute(ctx, req)
	if err == nil {
		fresh := p.freshGoal(ctx, *d.GoalId)
		return &Outcome{
			State:          StateCommitted,
			ContributionId: d.Id.String(),
			Atomic:         true,
			Steps:          completedSteps(),
			Goal:           fresh,
		}, nil, false
	}

	if ferr, ok := appErrors.AsFlowError(err); ok {
		return nil, ferr, false
	}

	if appErr, ok := appErrors.AsAppError(err); ok && appErr.Code == appErrors.ErrProcedureUnavailable.Code {
		logger.Warn().Err(err).Msg("procedure atômica indisponível; usando caminho sequencial")
	} else {
		logger.Warn().Err(err).Msg("procedure atômica falhou; usando caminho sequencial")
	}
	return nil, nil, true
}

func (p *Pipeline) commitSequential(ctx context.Context, d *Draft, g *goal.Goal, amount decimal.Decimal) (*Outcome, error) {
	outcome := &Outcome{
		State:          StateNotCommitted,
		ContributionId: d.Id.String(),
		Steps:          emptySteps(),
	}

	now := time.Now()
	txID := pkg.GenerateULIDObject()
	goalID := *d.GoalId

	record := &Contribution{
		Id:            d.Id,
		GoalId:        goalID,
		UserId:        d.UserId,
		AccountId:     *d.AccountId,
		TransactionId: &txID,
		Type:          TypeManual,
		Amount:        amount,
		Note:          d.Note,
		CreatedAt:     now,
	}

	// Passo 1: o fato durável. Os passos seguintes dependem de o valor já
	// estar registrado, para que uma reconciliação posterior seja possível.
	if err := p.Recorder.CreateContribution(ctx, record); err != nil {
		outcome.Steps[0].Error = err.Error()
		if appErr, ok := appErrors.AsAppError(err); ok && appErr.Code == "CONFLICT" {
			// O id do rascunho já foi gravado por um confirm anterior:
			// não se sabe até onde aquele commit chegou.
			outcome.State = StatePartiallyCommitted
			return outcome, appErrors.NewPartialFailureError(outcome.stepsDetail(), err)
		}
		return outcome, appErrors.NewNetworkError(err)
	}
	outcome.Steps[0].Completed = true

	// Lançamento genérico para visibilidade do restante do app; melhor
	// esforço, o registro de aporte acima é a entrada de razão.
	ledgerTx := &transaction.Transaction{
		Id:          txID,
		UserId:      d.UserId,
		AccountId:   *d.AccountId,
		GoalId:      &goalID,
		Type:        transaction.TypeTransfer,
		Amount:      amount,
		Description: ledgerDescription(g, d.Note),
		Date:        now,
		CreatedAt:   now,
	}
	if err := p.Recorder.CreateTransaction(ctx, ledgerTx); err != nil {
		logger.Warn().Err(err).Str("contribution_id", d.Id.String()).Msg("falha ao gravar lançamento genérico do aporte")
	}

	// Passo 2: débito condicional da conta.
	if err := p.Accounts.DebitBalance(ctx, *d.AccountId, amount); err != nil {
		outcome.Steps[1].Error = err.Error()
		outcome.State = StatePartiallyCommitted
		return outcome, appErrors.NewPartialFailureError(outcome.stepsDetail(), err)
	}
	outcome.Steps[1].Completed = true

	// Passo 3: crédito na meta com o status derivado.
	newStatus := goal.StatusFor(g.CurrentAmount.Add(amount), g.TargetAmount)
	if err := p.Goals.ApplyContribution(ctx, goalID, amount, newStatus); err != nil {
		outcome.Steps[2].Error = err.Error()
		outcome.State = StatePartiallyCommitted
		return outcome, appErrors.NewPartialFailureError(outcome.stepsDetail(), err)
	}
	outcome.Steps[2].Completed = true

	outcome.State = StateCommitted
	outcome.Goal = p.freshGoal(ctx, goalID)
	return outcome, nil
}

// freshGoal relê a meta após o commit para devolver o estado pós-aporte.
// Falha de leitura aqui não desfaz nada: o commit já aconteceu.
func (p *Pipeline) freshGoal(ctx context.Context, goalID ulid.ULID) *goal.Goal {
	fresh, err := p.Goals.GetById(ctx, goalID)
	if err != nil {
		logger.Warn().Err(err).Str("goal_id", goalID.String()).Msg("falha ao reler meta após aporte")
		return nil
	}
	if fresh != nil && fresh.CurrentAmount.GreaterThan(fresh.TargetAmount) {
		logger.Warn().Str("goal_id", goalID.String()).Msg("meta ultrapassou o valor alvo após aporte concorrente")
	}
	return fresh
}

// readFlowError classifica a falha de uma releitura: recurso sumido é
// validação, o resto é rede.
func readFlowError(err error, field, message string) *appErrors.FlowError {
	if appErr, ok := appErrors.AsAppError(err); ok && appErr.StatusCode == 404 {
		return appErrors.NewFlowValidationError(field, message)
	}
	return appErrors.NewNetworkError(err)
}

func emptySteps() []StepResult {
	return []StepResult{
		{Name: StepInsertContribution},
		{Name: StepDebitAccount},
		{Name: StepCreditGoal},
	}
}

func completedSteps() []StepResult {
	steps := emptySteps()
	for i := range steps {
		steps[i].Completed = true
	}
	return steps
}

func ledgerDescription(g *goal.Goal, note string) string {
	if note != "" {
		return note
	}
	if g != nil {
		return "Aporte na meta " + g.Name
	}
	return "Aporte em meta"
}
