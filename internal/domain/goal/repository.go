package goal

import (
	"context"

	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, goal *Goal) error
	Update(ctx context.Context, goal *Goal) error
	UpdateFields(ctx context.Context, id ulid.ULID, fields map[string]interface{}) error
	Delete(ctx context.Context, id ulid.ULID) error
	GetById(ctx context.Context, id ulid.ULID) (*Goal, error)
	GetByIdAndUser(ctx context.Context, id, userID ulid.ULID) (*Goal, error)
	GetByUserId(ctx context.Context, userID ulid.ULID, pagination *pkg.PaginationParams) ([]*Goal, int64, error)
	// ListContributable retorna metas abertas para aporte visíveis ao
	// usuário: as próprias e as compartilhadas pelas famílias dele.
	ListContributable(ctx context.Context, userID ulid.ULID) ([]*Goal, error)
	CheckGoalBelongsToUser(ctx context.Context, goalID, userID ulid.ULID) (bool, error)
	// ApplyContribution incrementa current_amount e grava o status derivado
	// em uma única escrita.
	ApplyContribution(ctx context.Context, goalID ulid.ULID, amount decimal.Decimal, status GoalStatus) error
}
