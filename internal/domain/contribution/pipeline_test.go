package contribution

import (
	"context"
	"errors"
	"testing"

	"Aporte/internal/domain/account"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/transaction"
	appErrors "Aporte/internal/errors"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type fakeGoalStore struct {
	getByIDFn           func(ctx context.Context, id ulid.ULID) (*goal.Goal, error)
	listContributableFn func(ctx context.Context, userID ulid.ULID) ([]*goal.Goal, error)
	applyContributionFn func(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error
}

func (f *fakeGoalStore) GetById(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeGoalStore) ListContributable(ctx context.Context, userID ulid.ULID) ([]*goal.Goal, error) {
	return f.listContributableFn(ctx, userID)
}

func (f *fakeGoalStore) ApplyContribution(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error {
	return f.applyContributionFn(ctx, goalID, amount, status)
}

type fakeAccountStore struct {
	getByIdAndUserFn func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error)
	getByUserIdFn    func(ctx context.Context, userID ulid.ULID) ([]*account.Account, error)
	debitBalanceFn   func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error
}

func (f *fakeAccountStore) GetByIdAndUser(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
	return f.getByIdAndUserFn(ctx, id, userID)
}

func (f *fakeAccountStore) GetByUserId(ctx context.Context, userID ulid.ULID) ([]*account.Account, error) {
	return f.getByUserIdFn(ctx, userID)
}

func (f *fakeAccountStore) DebitBalance(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
	return f.debitBalanceFn(ctx, id, amount)
}

type fakeRecorder struct {
	createContributionFn func(ctx context.Context, c *Contribution) error
	createTransactionFn  func(ctx context.Context, tx *transaction.Transaction) error
	getByGoalIdFn        func(ctx context.Context, goalID, userID ulid.ULID) ([]*Contribution, error)
}

func (f *fakeRecorder) CreateContribution(ctx context.Context, c *Contribution) error {
	return f.createContributionFn(ctx, c)
}

func (f *fakeRecorder) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	if f.createTransactionFn == nil {
		return nil
	}
	return f.createTransactionFn(ctx, tx)
}

func (f *fakeRecorder) GetContributionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*Contribution, error) {
	return f.getByGoalIdFn(ctx, goalID, userID)
}

func (f *fakeRecorder) GetTransactionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*transaction.Transaction, error) {
	return nil, nil
}

type fakeProcedureCaller struct {
	contributeFn func(ctx context.Context, req *ProcedureRequest) error
}

func (f *fakeProcedureCaller) Contribute(ctx context.Context, req *ProcedureRequest) error {
	return f.contributeFn(ctx, req)
}

type fakeGate struct {
	canContributeFn func(ctx context.Context, userID ulid.ULID, g *goal.Goal) (*family.Decision, error)
}

func (f *fakeGate) CanContribute(ctx context.Context, userID ulid.ULID, g *goal.Goal) (*family.Decision, error) {
	return f.canContributeFn(ctx, userID, g)
}

func pipelineFixture(t *testing.T) (*goal.Goal, *account.Account, *Draft) {
	t.Helper()
	g := newTestGoal(200, 1000)
	acc := newTestAccount(500)
	draft := newTestDraft("100", &g.Id, &acc.Id)
	acc.UserId = draft.UserId
	g.UserId = draft.UserId
	return g, acc, draft
}

func TestPipelineCommitAtomic(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	var procedureCalls int
	var gotReq *ProcedureRequest

	p := NewPipeline(
		&fakeProcedureCaller{
			contributeFn: func(ctx context.Context, req *ProcedureRequest) error {
				procedureCalls++
				gotReq = req
				return nil
			},
		},
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				t.Fatal("caminho atômico não deve gravar registros manualmente")
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if outcome.State != StateCommitted {
		t.Errorf("estado esperado %s, obteve %s", StateCommitted, outcome.State)
	}
	if !outcome.Atomic {
		t.Error("outcome deveria marcar o caminho atômico")
	}
	if procedureCalls != 1 {
		t.Errorf("procedure deveria ser chamada uma vez, foi %d", procedureCalls)
	}
	if gotReq.ContributionId != draft.Id {
		t.Error("o id do rascunho deve ser reaproveitado como id do aporte")
	}
	if !gotReq.Amount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("valor esperado 100, obteve %s", gotReq.Amount)
	}
}

func TestPipelineFallbackSequential(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	var created *Contribution
	var debited decimal.Decimal
	var applied decimal.Decimal
	var appliedStatus goal.GoalStatus

	p := NewPipeline(
		&fakeProcedureCaller{
			contributeFn: func(ctx context.Context, req *ProcedureRequest) error {
				return appErrors.ErrProcedureUnavailable
			},
		},
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
			applyContributionFn: func(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error {
				applied = amount
				appliedStatus = status
				return nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
			debitBalanceFn: func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
				if created == nil {
					t.Error("débito aconteceu antes do registro do aporte")
				}
				debited = amount
				return nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				created = c
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if outcome.State != StateCommitted {
		t.Errorf("estado esperado %s, obteve %s", StateCommitted, outcome.State)
	}
	if outcome.Atomic {
		t.Error("fallback não pode se apresentar como atômico")
	}
	if created == nil || created.Id != draft.Id {
		t.Fatal("registro do aporte deve usar o id do rascunho")
	}
	if !debited.Equal(decimal.NewFromInt(100)) {
		t.Errorf("débito esperado 100, obteve %s", debited)
	}
	if !applied.Equal(decimal.NewFromInt(100)) {
		t.Errorf("crédito na meta esperado 100, obteve %s", applied)
	}
	if appliedStatus != goal.InProgress {
		t.Errorf("status esperado %s, obteve %s", goal.InProgress, appliedStatus)
	}
	for _, step := range outcome.Steps {
		if !step.Completed {
			t.Errorf("passo %s deveria estar concluído", step.Name)
		}
	}
}

func TestPipelineSequentialCompletesGoal(t *testing.T) {
	g, acc, draft := pipelineFixture(t)
	g.CurrentAmount = decimal.NewFromInt(900)
	draft.Amount = "100"

	var appliedStatus goal.GoalStatus

	p := NewPipeline(
		nil,
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
			applyContributionFn: func(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error {
				appliedStatus = status
				return nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
			debitBalanceFn: func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
				return nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	if err != nil {
		t.Fatalf("erro inesperado: %v", err)
	}
	if outcome.State != StateCommitted {
		t.Errorf("estado esperado %s, obteve %s", StateCommitted, outcome.State)
	}
	if appliedStatus != goal.Completed {
		t.Errorf("aporte que atinge o alvo deve marcar a meta como %s, obteve %s", goal.Completed, appliedStatus)
	}
}

func TestPipelinePartialFailureOnDebit(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	p := NewPipeline(
		nil,
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
			applyContributionFn: func(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error {
				t.Fatal("crédito na meta não deve rodar após falha no débito")
				return nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
			debitBalanceFn: func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
				return appErrors.ErrBalanceCondition
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	if err == nil {
		t.Fatal("esperava erro de falha parcial")
	}
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowPartialFailure {
		t.Fatalf("esperava partial_failure, obteve %v", err)
	}
	if ferr.Retryable {
		t.Error("falha parcial nunca pode ser apresentada como repetível")
	}
	if outcome.State != StatePartiallyCommitted {
		t.Errorf("estado esperado %s, obteve %s", StatePartiallyCommitted, outcome.State)
	}
	if !outcome.Steps[0].Completed {
		t.Error("registro do aporte deveria constar como concluído")
	}
	if outcome.Steps[1].Completed || outcome.Steps[2].Completed {
		t.Error("débito e crédito não deveriam constar como concluídos")
	}
}

func TestPipelinePartialFailureOnGoalCredit(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	p := NewPipeline(
		nil,
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
			applyContributionFn: func(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error {
				return errors.New("conexão perdida")
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
			debitBalanceFn: func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
				return nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowPartialFailure {
		t.Fatalf("esperava partial_failure, obteve %v", err)
	}
	if outcome.State != StatePartiallyCommitted {
		t.Errorf("estado esperado %s, obteve %s", StatePartiallyCommitted, outcome.State)
	}
	if !outcome.Steps[0].Completed || !outcome.Steps[1].Completed {
		t.Error("registro e débito deveriam constar como concluídos")
	}
	if outcome.Steps[2].Completed {
		t.Error("crédito na meta não deveria constar como concluído")
	}
}

func TestPipelineRevalidatesBeforeCommit(t *testing.T) {
	g, acc, draft := pipelineFixture(t)
	// O saldo mudou desde a revisão: a releitura deve barrar o commit.
	acc.Balance = decimal.NewFromInt(50)

	p := NewPipeline(
		&fakeProcedureCaller{
			contributeFn: func(ctx context.Context, req *ProcedureRequest) error {
				t.Fatal("procedure não deve rodar quando a revalidação falha")
				return nil
			},
		},
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowBalance {
		t.Fatalf("esperava erro de saldo, obteve %v", err)
	}
	if outcome.State != StateNotCommitted {
		t.Errorf("estado esperado %s, obteve %s", StateNotCommitted, outcome.State)
	}
}

func TestPipelineProcedureValidationDoesNotFallBack(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	p := NewPipeline(
		&fakeProcedureCaller{
			contributeFn: func(ctx context.Context, req *ProcedureRequest) error {
				return appErrors.NewBalanceError(decimal.NewFromInt(30))
			},
		},
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				t.Fatal("falha de validação do servidor não deve cair para o sequencial")
				return nil
			},
		},
	)

	outcome, err := p.Commit(context.Background(), draft)
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowBalance {
		t.Fatalf("esperava erro de saldo, obteve %v", err)
	}
	if outcome.State != StateNotCommitted {
		t.Errorf("estado esperado %s, obteve %s", StateNotCommitted, outcome.State)
	}
}

func TestPipelineDuplicateContributionIsPartialFailure(t *testing.T) {
	g, acc, draft := pipelineFixture(t)

	p := NewPipeline(
		nil,
		&fakeGoalStore{
			getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
				return g, nil
			},
		},
		&fakeAccountStore{
			getByIdAndUserFn: func(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
				return acc, nil
			},
			debitBalanceFn: func(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
				t.Fatal("débito não deve rodar quando o aporte já existe")
				return nil
			},
		},
		&fakeRecorder{
			createContributionFn: func(ctx context.Context, c *Contribution) error {
				return appErrors.ErrConflict.WithDetails(map[string]interface{}{
					"contribution_id": c.Id.String(),
				})
			},
		},
	)

	_, err := p.Commit(context.Background(), draft)
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowPartialFailure {
		t.Fatalf("confirm repetido deve virar partial_failure, obteve %v", err)
	}
}
