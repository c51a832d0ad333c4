package contribution

import (
	"context"
	"sync"
	"time"

	"Aporte/internal/domain/account"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/logger"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// FlowState é a visão externa de um fluxo: tudo que a camada HTTP precisa
// para renderizar o passo atual. Draft é uma cópia; mutações não vazam para
// dentro do fluxo.
type FlowState struct {
	FlowId    ulid.ULID            `json:"flowId"`
	Step      Step                 `json:"step"`
	Draft     *Draft               `json:"draft"`
	Review    *ReviewProjection    `json:"review,omitempty"`
	LastError *appErrors.FlowError `json:"lastError,omitempty"`
	Outcome   *Outcome             `json:"outcome,omitempty"`
}

// ReviewProjection é o estado prospectivo da meta mostrado na revisão: como
// ela ficaria se o aporte fosse confirmado agora. Projeção apenas; nada é
// gravado até o confirm.
type ReviewProjection struct {
	GoalId        ulid.ULID       `json:"goalId"`
	GoalName      string          `json:"goalName"`
	NewAmount     decimal.Decimal `json:"newAmount"`
	NewPercentage float64         `json:"newPercentage"`
	Completes     bool            `json:"completes"`
}

// DraftPatch carrega os campos editáveis no passo de contribuição. Ponteiro
// nil significa "não mexer".
type DraftPatch struct {
	AccountId *ulid.ULID
	Amount    *string
	Note      *string
}

// Flow é a máquina de estados de um aporte em andamento. Toda transição
// passa pelo mutex; Confirm solta o lock durante o commit para que consultas
// de estado não fiquem presas atrás de uma escrita lenta, mas a flag
// committing garante um único commit em voo.
type Flow struct {
	Id     ulid.ULID
	UserId ulid.ULID

	mu         sync.Mutex
	step       Step
	draft      *Draft
	review     *ReviewProjection
	committing bool
	lastErr    *appErrors.FlowError
	outcome    *Outcome
	touchedAt  time.Time

	gate     PermissionGate
	goals    GoalStore
	accounts AccountStore
	pipeline CommitPipeline
	audit    *AuditLogger

	// onSuccess é chamado após um commit bem-sucedido, fora do lock.
	onSuccess func(goalID ulid.ULID)
}

func (f *Flow) State() *FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *Flow) stateLocked() *FlowState {
	return &FlowState{
		FlowId:    f.Id,
		Step:      f.step,
		Draft:     f.draft.clone(),
		Review:    f.review,
		LastError: f.lastErr,
		Outcome:   f.outcome,
	}
}

func (f *Flow) touch() {
	f.touchedAt = time.Now()
}

// EligibleGoals lista as metas que aceitam aporte para o dono do fluxo. Não
// é uma transição: pode ser chamada em qualquer passo. Metas compartilhadas
// passam pelo gate de permissão aqui também: uma meta que a seleção negaria
// nunca aparece na lista.
func (f *Flow) EligibleGoals(ctx context.Context) ([]*goal.Goal, error) {
	goals, err := f.goals.ListContributable(ctx, f.UserId)
	if err != nil {
		return nil, appErrors.NewNetworkError(err)
	}
	eligible := make([]*goal.Goal, 0, len(goals))
	for _, g := range goals {
		if !g.AcceptsContribution() {
			continue
		}
		if g.IsShared() {
			decision, err := f.gate.CanContribute(ctx, f.UserId, g)
			if err != nil {
				return nil, appErrors.NewNetworkError(err)
			}
			if !decision.Allowed {
				continue
			}
		}
		eligible = append(eligible, g)
	}
	return eligible, nil
}

// SelectGoal roda o gate de permissão antes de avançar. Negação mantém o
// fluxo na seleção com o motivo em lastErr; o usuário escolhe outra meta.
func (f *Flow) SelectGoal(ctx context.Context, goalID ulid.ULID) (*FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()

	if f.step != StepSelection {
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Seleção de meta só é permitida no início do fluxo")
	}

	g, err := f.goals.GetById(ctx, goalID)
	if err != nil {
		if appErr, ok := appErrors.AsAppError(err); ok && appErr.StatusCode == 404 {
			f.lastErr = appErrors.NewFlowValidationError("goal_id", "Meta não encontrada")
		} else {
			f.lastErr = appErrors.NewNetworkError(err)
		}
		return f.stateLocked(), f.lastErr
	}
	if g == nil || !g.AcceptsContribution() {
		f.lastErr = appErrors.NewFlowValidationError("goal_id", "Esta meta não aceita aportes")
		return f.stateLocked(), f.lastErr
	}

	decision, err := f.gate.CanContribute(ctx, f.UserId, g)
	if err != nil {
		f.lastErr = appErrors.NewNetworkError(err)
		return f.stateLocked(), f.lastErr
	}
	if !decision.Allowed {
		f.lastErr = family.DenialError(g, decision)
		return f.stateLocked(), f.lastErr
	}

	id := goalID
	f.draft.GoalId = &id
	f.step = StepContribution
	f.lastErr = nil
	return f.stateLocked(), nil
}

// UpdateDraft aplica um patch aos campos editáveis. Válido apenas no passo
// de contribuição; não valida, a validação acontece no Proceed.
func (f *Flow) UpdateDraft(patch DraftPatch) (*FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()

	if f.step != StepContribution {
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "O rascunho só pode ser editado no passo de contribuição")
	}

	if patch.AccountId != nil {
		id := *patch.AccountId
		f.draft.AccountId = &id
	}
	if patch.Amount != nil {
		f.draft.Amount = *patch.Amount
	}
	if patch.Note != nil {
		f.draft.Note = *patch.Note
	}
	f.review = nil
	f.lastErr = nil
	return f.stateLocked(), nil
}

// Proceed valida o rascunho contra leituras frescas e avança para a
// revisão. Falha de validação mantém o fluxo onde está.
func (f *Flow) Proceed(ctx context.Context) (*FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()

	if f.step != StepContribution {
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Avanço só é permitido no passo de contribuição")
	}

	var g *goal.Goal
	if f.draft.GoalId != nil {
		fresh, err := f.goals.GetById(ctx, *f.draft.GoalId)
		if err != nil {
			f.lastErr = readFlowError(err, "goal_id", "Meta não encontrada")
			return f.stateLocked(), f.lastErr
		}
		g = fresh
	}

	var acc *account.Account
	if f.draft.AccountId != nil {
		fresh, err := f.accounts.GetByIdAndUser(ctx, *f.draft.AccountId, f.UserId)
		if err != nil {
			f.lastErr = readFlowError(err, "account_id", "Conta não encontrada ou inativa")
			return f.stateLocked(), f.lastErr
		}
		acc = fresh
	}

	if ferr := Validate(f.draft, g, acc); ferr != nil {
		f.lastErr = ferr
		return f.stateLocked(), ferr
	}

	// A validação garante que o valor parseia.
	amount, _ := pkg.ParseAmount(f.draft.Amount)
	newAmount := g.CurrentAmount.Add(amount)
	percentage := 0.0
	if g.TargetAmount.IsPositive() {
		percentage, _ = newAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	}
	f.review = &ReviewProjection{
		GoalId:        g.Id,
		GoalName:      g.Name,
		NewAmount:     newAmount,
		NewPercentage: percentage,
		Completes:     newAmount.GreaterThanOrEqual(g.TargetAmount),
	}

	f.step = StepReview
	f.lastErr = nil
	return f.stateLocked(), nil
}

// Back volta um passo sem efeitos colaterais; o rascunho é preservado.
func (f *Flow) Back() (*FlowState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touch()

	if f.committing {
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Aguarde a confirmação em andamento")
	}

	switch f.step {
	case StepReview:
		f.step = StepContribution
		f.review = nil
	case StepContribution:
		f.step = StepSelection
	default:
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Não há passo anterior")
	}
	f.lastErr = nil
	return f.stateLocked(), nil
}

// Confirm entrega o rascunho ao pipeline. O lock é solto durante o commit;
// a flag committing rejeita confirms concorrentes em vez de enfileirá-los.
func (f *Flow) Confirm(ctx context.Context) (*FlowState, error) {
	f.mu.Lock()
	if f.step != StepReview {
		defer f.mu.Unlock()
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Confirmação só é permitida na revisão")
	}
	if f.committing {
		defer f.mu.Unlock()
		return f.stateLocked(), appErrors.NewFlowValidationError("step", "Já existe uma confirmação em andamento")
	}
	f.committing = true
	f.touch()
	draft := f.draft.clone()
	f.mu.Unlock()

	outcome, err := f.pipeline.Commit(ctx, draft)

	f.mu.Lock()
	f.committing = false
	f.outcome = outcome

	if err != nil {
		ferr, ok := appErrors.AsFlowError(err)
		if !ok {
			ferr = appErrors.NewNetworkError(err)
		}
		f.lastErr = ferr

		// Falha parcial fecha o fluxo: repetir o confirm às cegas pode
		// duplicar o aporte. Falhas limpas devolvem o usuário à edição.
		if outcome != nil && outcome.State == StatePartiallyCommitted {
			f.step = StepClosed
		} else {
			f.step = StepContribution
		}
		state := f.stateLocked()
		f.mu.Unlock()
		return state, ferr
	}

	f.step = StepClosed
	f.lastErr = nil
	state := f.stateLocked()
	f.mu.Unlock()

	if f.audit != nil && draft.GoalId != nil {
		f.audit.ContributionCreated(f.UserId, draft.Id, *draft.GoalId, draft.Amount)
	}
	if f.onSuccess != nil && draft.GoalId != nil {
		f.onSuccess(*draft.GoalId)
	}
	return state, nil
}

// Manager guarda os fluxos abertos, um mapa em memória com expiração por
// inatividade. Fluxo expirado simplesmente some; o rascunho nunca tocou o
// armazenamento.
type Manager struct {
	mu    sync.RWMutex
	flows map[ulid.ULID]*Flow
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once

	gate      PermissionGate
	goals     GoalStore
	accounts  AccountStore
	pipeline  CommitPipeline
	audit     *AuditLogger
	onSuccess func(goalID ulid.ULID)
}

func NewManager(gate PermissionGate, goals GoalStore, accounts AccountStore, pipeline CommitPipeline, audit *AuditLogger, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	m := &Manager{
		flows:    make(map[ulid.ULID]*Flow),
		ttl:      ttl,
		done:     make(chan struct{}),
		gate:     gate,
		goals:    goals,
		accounts: accounts,
		pipeline: pipeline,
		audit:    audit,
	}
	go m.cleanupLoop()
	return m
}

// SetOnSuccess registra o callback de pós-commit (invalidação de cache).
// Deve ser chamado antes de abrir fluxos.
func (m *Manager) SetOnSuccess(fn func(goalID ulid.ULID)) {
	m.onSuccess = fn
}

// Open cria um fluxo novo no passo de seleção.
func (m *Manager) Open(userID ulid.ULID) *Flow {
	now := time.Now()
	f := &Flow{
		Id:     pkg.GenerateULIDObject(),
		UserId: userID,
		step:   StepSelection,
		draft: &Draft{
			Id:        pkg.GenerateULIDObject(),
			UserId:    userID,
			Step:      StepSelection,
			CreatedAt: now,
		},
		touchedAt: now,
		gate:      m.gate,
		goals:     m.goals,
		accounts:  m.accounts,
		pipeline:  m.pipeline,
		audit:     m.audit,
		onSuccess: m.onSuccess,
	}

	m.mu.Lock()
	m.flows[f.Id] = f
	m.mu.Unlock()
	return f
}

func (m *Manager) Get(flowID, userID ulid.ULID) (*Flow, error) {
	m.mu.RLock()
	f, ok := m.flows[flowID]
	m.mu.RUnlock()
	if !ok || f.UserId != userID {
		return nil, appErrors.NewNotFoundError("Fluxo de aporte")
	}
	return f, nil
}

// Close descarta o fluxo. Cancelar é só esquecer: nada foi gravado.
func (m *Manager) Close(flowID, userID ulid.ULID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.flows[flowID]; ok && f.UserId == userID {
		delete(m.flows, flowID)
	}
}

func (m *Manager) Shutdown() {
	m.once.Do(func() {
		close(m.done)
	})
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.removeStale()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) removeStale() {
	cutoff := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.flows {
		f.mu.Lock()
		stale := f.touchedAt.Before(cutoff) && !f.committing
		f.mu.Unlock()
		if stale {
			delete(m.flows, id)
			logger.Debug().Str("flow_id", id.String()).Msg("fluxo de aporte expirado por inatividade")
		}
	}
}
