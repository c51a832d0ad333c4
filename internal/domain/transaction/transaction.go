package transaction

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeIncome   TransactionType = "INCOME"
	TypeExpense  TransactionType = "EXPENSE"
	TypeTransfer TransactionType = "TRANSFER"
)

// Transaction é o lançamento genérico de movimentação usado pelo restante
// do app. Um aporte em meta gera um lançamento aqui para visibilidade entre
// funcionalidades; o registro de aporte referencia este lançamento e os dois
// contam o mesmo evento econômico uma única vez.
type Transaction struct {
	Id          ulid.ULID       `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserId      ulid.ULID       `gorm:"type:varchar(26);index:idx_transactions_user_id;not null" json:"userId"`
	AccountId   ulid.ULID       `gorm:"type:varchar(26);index:idx_transactions_account_id;not null" json:"accountId"`
	GoalId      *ulid.ULID      `gorm:"type:varchar(26);index:idx_transactions_goal_id" json:"goalId,omitempty"`
	Type        TransactionType `gorm:"type:varchar(20);not null" json:"type"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	Description string          `gorm:"type:varchar(255)" json:"description"`
	Date        time.Time       `gorm:"type:timestamp;not null" json:"date"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;not null" json:"createdAt"`
}

func (Transaction) TableName() string {
	return "transactions"
}
