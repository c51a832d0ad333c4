package contribution

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type ContributionType string

const (
	TypeManual    ContributionType = "manual"
	TypeAutomatic ContributionType = "automatic"
	TypeTransfer  ContributionType = "transfer"
)

// Contribution é o fato durável de um aporte: imutável depois de criado.
// TransactionId referencia o lançamento genérico correspondente; os dois
// registros contam o mesmo evento econômico uma única vez.
type Contribution struct {
	Id            ulid.ULID        `gorm:"type:varchar(26);primaryKey" json:"id"`
	GoalId        ulid.ULID        `gorm:"type:varchar(26);index:idx_contributions_goal_id;not null" json:"goalId"`
	UserId        ulid.ULID        `gorm:"type:varchar(26);index:idx_contributions_user_id;not null" json:"userId"`
	AccountId     ulid.ULID        `gorm:"type:varchar(26);index:idx_contributions_account_id;not null" json:"accountId"`
	TransactionId *ulid.ULID       `gorm:"type:varchar(26);index:idx_contributions_transaction_id" json:"transactionId,omitempty"`
	Type          ContributionType `gorm:"type:varchar(20);not null" json:"type"`
	Amount        decimal.Decimal  `gorm:"type:decimal(15,2);not null" json:"amount"`
	Note          string           `gorm:"type:varchar(255)" json:"note"`
	CreatedAt     time.Time        `gorm:"autoCreateTime;not null" json:"createdAt"`
}

func (Contribution) TableName() string {
	return "goal_contributions"
}

// AuditEvent é o registro de auditoria gravado após um aporte bem-sucedido.
// A escrita é melhor-esforço e nunca afeta o resultado do aporte.
type AuditEvent struct {
	Id        ulid.ULID `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserId    ulid.ULID `gorm:"type:varchar(26);index:idx_audit_events_user_id;not null" json:"userId"`
	Action    string    `gorm:"type:varchar(50);not null" json:"action"`
	EntityId  ulid.ULID `gorm:"type:varchar(26);not null" json:"entityId"`
	Payload   string    `gorm:"type:text" json:"payload"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"createdAt"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

const ActionContributionCreated = "contribution_created"
