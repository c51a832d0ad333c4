package contribution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Aporte/internal/domain/account"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type fakePipeline struct {
	commitFn func(ctx context.Context, draft *Draft) (*Outcome, error)
}

func (f *fakePipeline) Commit(ctx context.Context, draft *Draft) (*Outcome, error) {
	return f.commitFn(ctx, draft)
}

type flowFixture struct {
	manager *Manager
	goal    *goal.Goal
	account *account.Account
	userID  ulid.ULID
}

func newFlowFixture(t *testing.T, pipeline CommitPipeline) *flowFixture {
	t.Helper()

	userID := pkg.GenerateULIDObject()
	g := newTestGoal(200, 1000)
	g.UserId = userID
	acc := newTestAccount(500)
	acc.UserId = userID

	gate := &fakeGate{
		canContributeFn: func(ctx context.Context, uid ulid.ULID, target *goal.Goal) (*family.Decision, error) {
			return &family.Decision{Allowed: true}, nil
		},
	}
	goals := &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			return g, nil
		},
		listContributableFn: func(ctx context.Context, uid ulid.ULID) ([]*goal.Goal, error) {
			return []*goal.Goal{g}, nil
		},
	}
	accounts := &fakeAccountStore{
		getByIdAndUserFn: func(ctx context.Context, id, uid ulid.ULID) (*account.Account, error) {
			return acc, nil
		},
	}

	if pipeline == nil {
		pipeline = &fakePipeline{
			commitFn: func(ctx context.Context, draft *Draft) (*Outcome, error) {
				return &Outcome{State: StateCommitted, ContributionId: draft.Id.String(), Steps: completedSteps()}, nil
			},
		}
	}

	m := NewManager(gate, goals, accounts, pipeline, nil, time.Minute)
	t.Cleanup(m.Shutdown)

	return &flowFixture{manager: m, goal: g, account: acc, userID: userID}
}

// advanceToReview leva um fluxo recém-aberto até a revisão.
func (fx *flowFixture) advanceToReview(t *testing.T) *Flow {
	t.Helper()
	ctx := context.Background()

	f := fx.manager.Open(fx.userID)
	if _, err := f.SelectGoal(ctx, fx.goal.Id); err != nil {
		t.Fatalf("SelectGoal: %v", err)
	}
	amount := "100"
	if _, err := f.UpdateDraft(DraftPatch{AccountId: &fx.account.Id, Amount: &amount}); err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}
	if _, err := f.Proceed(ctx); err != nil {
		t.Fatalf("Proceed: %v", err)
	}
	return f
}

func TestFlowOpensInSelection(t *testing.T) {
	fx := newFlowFixture(t, nil)

	f := fx.manager.Open(fx.userID)
	state := f.State()

	if state.Step != StepSelection {
		t.Errorf("passo esperado %s, obteve %s", StepSelection, state.Step)
	}
	if state.Draft == nil || state.Draft.GoalId != nil || state.Draft.AccountId != nil {
		t.Error("fluxo novo deve ter rascunho vazio")
	}
	if state.LastError != nil {
		t.Error("fluxo novo não deve carregar erro")
	}
}

func TestFlowHappyPath(t *testing.T) {
	var committed *Draft
	pipeline := &fakePipeline{
		commitFn: func(ctx context.Context, draft *Draft) (*Outcome, error) {
			committed = draft
			return &Outcome{State: StateCommitted, ContributionId: draft.Id.String(), Steps: completedSteps()}, nil
		},
	}
	fx := newFlowFixture(t, pipeline)

	f := fx.advanceToReview(t)
	state, err := f.Confirm(context.Background())
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if state.Step != StepClosed {
		t.Errorf("passo esperado %s, obteve %s", StepClosed, state.Step)
	}
	if state.Outcome == nil || state.Outcome.State != StateCommitted {
		t.Error("outcome deveria registrar o commit")
	}
	if committed == nil || committed.Amount != "100" {
		t.Error("pipeline deveria receber o rascunho preenchido")
	}
}

func TestFlowSelectGoalDeniedForViewer(t *testing.T) {
	fx := newFlowFixture(t, nil)
	familyID := pkg.GenerateULIDObject()
	fx.goal.FamilyId = &familyID
	fx.goal.UserId = pkg.GenerateULIDObject()

	fx.manager.gate = &fakeGate{
		canContributeFn: func(ctx context.Context, uid ulid.ULID, target *goal.Goal) (*family.Decision, error) {
			return &family.Decision{
				Allowed:          false,
				Reason:           "Seu papel na família permite apenas visualizar esta meta",
				SuggestedActions: []string{"Peça a um administrador da família para conceder acesso de aporte"},
			}, nil
		},
	}

	f := fx.manager.Open(fx.userID)
	state, err := f.SelectGoal(context.Background(), fx.goal.Id)

	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowFamilyRestriction {
		t.Fatalf("esperava family_restriction, obteve %v", err)
	}
	if len(ferr.SuggestedActions) == 0 {
		t.Error("negação deve carregar ações sugeridas")
	}
	if state.Step != StepSelection {
		t.Errorf("negação deve manter o fluxo na seleção, obteve %s", state.Step)
	}
	if state.Draft.GoalId != nil {
		t.Error("meta negada não pode entrar no rascunho")
	}
}

func TestFlowSelectGoalRejectsCompleted(t *testing.T) {
	fx := newFlowFixture(t, nil)
	fx.goal.Status = goal.Completed

	f := fx.manager.Open(fx.userID)
	_, err := f.SelectGoal(context.Background(), fx.goal.Id)

	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowValidation {
		t.Fatalf("meta concluída deve ser recusada, obteve %v", err)
	}
}

func TestFlowProceedValidationKeepsStep(t *testing.T) {
	fx := newFlowFixture(t, nil)

	f := fx.manager.Open(fx.userID)
	if _, err := f.SelectGoal(context.Background(), fx.goal.Id); err != nil {
		t.Fatalf("SelectGoal: %v", err)
	}
	amount := "600" // saldo da conta é 500
	if _, err := f.UpdateDraft(DraftPatch{AccountId: &fx.account.Id, Amount: &amount}); err != nil {
		t.Fatalf("UpdateDraft: %v", err)
	}

	state, err := f.Proceed(context.Background())
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowBalance {
		t.Fatalf("esperava erro de saldo, obteve %v", err)
	}
	if state.Step != StepContribution {
		t.Errorf("falha de validação deve manter o passo, obteve %s", state.Step)
	}
	if state.Draft.Amount != "600" {
		t.Error("rascunho deve ser preservado após falha de validação")
	}
}

func TestFlowProceedComputesReviewProjection(t *testing.T) {
	fx := newFlowFixture(t, nil) // meta 200/1000, aporte 100

	f := fx.advanceToReview(t)
	state := f.State()

	if state.Review == nil {
		t.Fatal("revisão deve carregar a projeção da meta")
	}
	if !state.Review.NewAmount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("novo acumulado esperado 300, obteve %s", state.Review.NewAmount)
	}
	if state.Review.NewPercentage != 30 {
		t.Errorf("percentual esperado 30, obteve %v", state.Review.NewPercentage)
	}
	if state.Review.Completes {
		t.Error("aporte de 100 não completa uma meta de 1000")
	}

	// Voltar descarta a projeção; ela é recalculada no próximo Proceed.
	back, err := f.Back()
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if back.Review != nil {
		t.Error("projeção não deve sobreviver à saída da revisão")
	}
}

func TestFlowReviewProjectionCompletes(t *testing.T) {
	fx := newFlowFixture(t, nil)
	fx.goal.CurrentAmount = decimal.NewFromInt(900)

	f := fx.advanceToReview(t)
	state := f.State()

	if state.Review == nil || !state.Review.Completes {
		t.Error("aporte que atinge o alvo deve projetar a meta como completa")
	}
}

func TestFlowBackPreservesDraft(t *testing.T) {
	fx := newFlowFixture(t, nil)
	f := fx.advanceToReview(t)

	state, err := f.Back()
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if state.Step != StepContribution {
		t.Errorf("passo esperado %s, obteve %s", StepContribution, state.Step)
	}
	if state.Draft.Amount != "100" || state.Draft.AccountId == nil {
		t.Error("voltar não pode descartar o rascunho")
	}

	state, err = f.Back()
	if err != nil {
		t.Fatalf("Back: %v", err)
	}
	if state.Step != StepSelection {
		t.Errorf("passo esperado %s, obteve %s", StepSelection, state.Step)
	}

	if _, err := f.Back(); err == nil {
		t.Error("voltar da seleção deve falhar")
	}
}

func TestFlowConfirmNetworkErrorReturnsToContribution(t *testing.T) {
	pipeline := &fakePipeline{
		commitFn: func(ctx context.Context, draft *Draft) (*Outcome, error) {
			return &Outcome{State: StateNotCommitted, Steps: emptySteps()},
				appErrors.NewNetworkError(errors.New("timeout"))
		},
	}
	fx := newFlowFixture(t, pipeline)
	f := fx.advanceToReview(t)

	state, err := f.Confirm(context.Background())
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowNetwork {
		t.Fatalf("esperava erro de rede, obteve %v", err)
	}
	if !ferr.Retryable {
		t.Error("falha de rede sem commit deve ser repetível")
	}
	if state.Step != StepContribution {
		t.Errorf("falha limpa deve voltar para %s, obteve %s", StepContribution, state.Step)
	}
	if state.Draft.Amount != "100" {
		t.Error("rascunho deve sobreviver à falha de rede")
	}
}

func TestFlowConfirmPartialFailureClosesFlow(t *testing.T) {
	pipeline := &fakePipeline{
		commitFn: func(ctx context.Context, draft *Draft) (*Outcome, error) {
			outcome := &Outcome{State: StatePartiallyCommitted, Steps: emptySteps()}
			outcome.Steps[0].Completed = true
			return outcome, appErrors.NewPartialFailureError(outcome.stepsDetail(), errors.New("débito falhou"))
		},
	}
	fx := newFlowFixture(t, pipeline)
	f := fx.advanceToReview(t)

	state, err := f.Confirm(context.Background())
	ferr, ok := appErrors.AsFlowError(err)
	if !ok || ferr.Kind != appErrors.FlowPartialFailure {
		t.Fatalf("esperava partial_failure, obteve %v", err)
	}
	if state.Step != StepClosed {
		t.Errorf("falha parcial deve fechar o fluxo, obteve %s", state.Step)
	}
	if state.Outcome == nil || state.Outcome.State != StatePartiallyCommitted {
		t.Error("outcome parcial deve ficar disponível no estado")
	}
}

func TestFlowSingleCommitInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var commits int
	var mu sync.Mutex

	pipeline := &fakePipeline{
		commitFn: func(ctx context.Context, draft *Draft) (*Outcome, error) {
			mu.Lock()
			commits++
			mu.Unlock()
			close(started)
			<-release
			return &Outcome{State: StateCommitted, ContributionId: draft.Id.String(), Steps: completedSteps()}, nil
		},
	}
	fx := newFlowFixture(t, pipeline)
	f := fx.advanceToReview(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := f.Confirm(context.Background()); err != nil {
			t.Errorf("primeiro confirm: %v", err)
		}
	}()

	<-started
	if _, err := f.Confirm(context.Background()); err == nil {
		t.Error("segundo confirm deveria ser rejeitado enquanto o primeiro está em voo")
	}

	close(release)
	<-done

	mu.Lock()
	defer mu.Unlock()
	if commits != 1 {
		t.Errorf("pipeline deveria rodar uma vez, rodou %d", commits)
	}
}

func TestFlowConfirmOnlyFromReview(t *testing.T) {
	fx := newFlowFixture(t, nil)

	f := fx.manager.Open(fx.userID)
	if _, err := f.Confirm(context.Background()); err == nil {
		t.Error("confirm fora da revisão deve falhar")
	}
}

func TestFlowEligibleGoalsFiltersClosed(t *testing.T) {
	fx := newFlowFixture(t, nil)
	open := newTestGoal(100, 1000)
	full := newTestGoal(1000, 1000)
	full.Status = goal.Completed

	fx.manager.goals = &fakeGoalStore{
		listContributableFn: func(ctx context.Context, uid ulid.ULID) ([]*goal.Goal, error) {
			return []*goal.Goal{open, full}, nil
		},
	}

	f := fx.manager.Open(fx.userID)
	goals, err := f.EligibleGoals(context.Background())
	if err != nil {
		t.Fatalf("EligibleGoals: %v", err)
	}
	if len(goals) != 1 || goals[0].Id != open.Id {
		t.Errorf("esperava apenas a meta aberta, obteve %d metas", len(goals))
	}
}

func TestFlowEligibleGoalsOmitsGateDenied(t *testing.T) {
	fx := newFlowFixture(t, nil)

	personal := newTestGoal(100, 1000)
	personal.UserId = fx.userID

	familyID := pkg.GenerateULIDObject()
	shared := newTestGoal(100, 1000)
	shared.FamilyId = &familyID

	fx.manager.goals = &fakeGoalStore{
		listContributableFn: func(ctx context.Context, uid ulid.ULID) ([]*goal.Goal, error) {
			return []*goal.Goal{personal, shared}, nil
		},
	}
	fx.manager.gate = &fakeGate{
		canContributeFn: func(ctx context.Context, uid ulid.ULID, target *goal.Goal) (*family.Decision, error) {
			return &family.Decision{Allowed: false, Reason: "Seu papel na família permite apenas visualizar esta meta"}, nil
		},
	}

	f := fx.manager.Open(fx.userID)
	goals, err := f.EligibleGoals(context.Background())
	if err != nil {
		t.Fatalf("EligibleGoals: %v", err)
	}
	if len(goals) != 1 || goals[0].Id != personal.Id {
		t.Errorf("meta familiar negada pelo gate não pode ser listada, obteve %d metas", len(goals))
	}
}

func TestManagerGetEnforcesOwner(t *testing.T) {
	fx := newFlowFixture(t, nil)
	f := fx.manager.Open(fx.userID)

	if _, err := fx.manager.Get(f.Id, fx.userID); err != nil {
		t.Fatalf("dono deveria recuperar o fluxo: %v", err)
	}
	if _, err := fx.manager.Get(f.Id, pkg.GenerateULIDObject()); err == nil {
		t.Error("outro usuário não pode recuperar o fluxo")
	}
}

func TestManagerCloseDiscardsFlow(t *testing.T) {
	fx := newFlowFixture(t, nil)
	f := fx.manager.Open(fx.userID)

	fx.manager.Close(f.Id, fx.userID)
	if _, err := fx.manager.Get(f.Id, fx.userID); err == nil {
		t.Error("fluxo fechado não deveria ser encontrado")
	}
}

func TestManagerRemoveStale(t *testing.T) {
	fx := newFlowFixture(t, nil)
	fx.manager.ttl = 10 * time.Millisecond

	f := fx.manager.Open(fx.userID)
	f.mu.Lock()
	f.touchedAt = time.Now().Add(-time.Minute)
	f.mu.Unlock()

	fx.manager.removeStale()
	if _, err := fx.manager.Get(f.Id, fx.userID); err == nil {
		t.Error("fluxo expirado deveria ter sido removido")
	}
}

func TestFlowOnSuccessCallback(t *testing.T) {
	fx := newFlowFixture(t, nil)
	var invalidated []ulid.ULID
	fx.manager.SetOnSuccess(func(goalID ulid.ULID) {
		invalidated = append(invalidated, goalID)
	})

	f := fx.advanceToReview(t)
	if _, err := f.Confirm(context.Background()); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if len(invalidated) != 1 || invalidated[0] != fx.goal.Id {
		t.Error("commit deveria disparar o callback com a meta aportada")
	}
}
