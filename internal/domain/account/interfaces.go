package account

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	GetById(ctx context.Context, id ulid.ULID) (*Account, error)
	GetByIdAndUser(ctx context.Context, id, userID ulid.ULID) (*Account, error)
	GetByUserId(ctx context.Context, userID ulid.ULID) ([]*Account, error)
	// DebitBalance debita a conta somente se o saldo atual cobrir o valor.
	// Retorna ErrBalanceCondition quando a condição falha.
	DebitBalance(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error
}
