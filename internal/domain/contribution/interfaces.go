package contribution

import (
	"context"

	"Aporte/internal/domain/account"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/transaction"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// GoalStore é a fatia do armazenamento de metas que o fluxo de aporte usa.
type GoalStore interface {
	GetById(ctx context.Context, id ulid.ULID) (*goal.Goal, error)
	ListContributable(ctx context.Context, userID ulid.ULID) ([]*goal.Goal, error)
	ApplyContribution(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status goal.GoalStatus) error
}

type AccountStore interface {
	GetByIdAndUser(ctx context.Context, id, userID ulid.ULID) (*account.Account, error)
	GetByUserId(ctx context.Context, userID ulid.ULID) ([]*account.Account, error)
	DebitBalance(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error
}

// Recorder grava e consulta os registros duráveis do aporte.
type Recorder interface {
	CreateContribution(ctx context.Context, c *Contribution) error
	CreateTransaction(ctx context.Context, tx *transaction.Transaction) error
	GetContributionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*Contribution, error)
	GetTransactionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*transaction.Transaction, error)
}

type ProcedureRequest struct {
	ContributionId ulid.ULID
	GoalId         ulid.ULID
	AccountId      ulid.ULID
	UserId         ulid.ULID
	Amount         decimal.Decimal
	Note           string
}

// ProcedureCaller invoca a procedure atômica do servidor, que grava os três
// efeitos do aporte em uma única transação. Retorna ErrProcedureUnavailable
// quando a procedure não está instalada ou habilitada.
type ProcedureCaller interface {
	Contribute(ctx context.Context, req *ProcedureRequest) error
}

type PermissionGate interface {
	CanContribute(ctx context.Context, userID ulid.ULID, g *goal.Goal) (*family.Decision, error)
}

type CommitPipeline interface {
	Commit(ctx context.Context, draft *Draft) (*Outcome, error)
}

type AuditStore interface {
	CreateEvent(ctx context.Context, event *AuditEvent) error
}

// ChangeEvent é a notificação de mudança vinda do armazenamento. GoalId
// zerado significa "algo mudou, ressincronize tudo".
type ChangeEvent struct {
	Table  string
	Op     string
	GoalId ulid.ULID
	UserId ulid.ULID
}

type StreamHandle interface {
	Close() error
}

type ChangeStream interface {
	Subscribe(ctx context.Context, channel string, fn func(ChangeEvent)) (StreamHandle, error)
}
