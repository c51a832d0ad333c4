package account

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type AccountType string

const (
	TypeChecking AccountType = "CHECKING"
	TypeSavings  AccountType = "SAVINGS"
	TypeWallet   AccountType = "WALLET"
)

type Account struct {
	Id        ulid.ULID       `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserId    ulid.ULID       `gorm:"type:varchar(26);index:idx_accounts_user_id;not null" json:"userId"`
	Name      string          `gorm:"type:varchar(100);not null" json:"name"`
	Type      AccountType     `gorm:"type:varchar(20);not null" json:"type"`
	Balance   decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"balance"`
	IsActive  bool            `gorm:"not null;default:true;index:idx_accounts_active" json:"isActive"`
	CreatedAt time.Time       `gorm:"autoCreateTime;not null" json:"createdAt"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime;not null" json:"updatedAt"`
}

func (Account) TableName() string {
	return "accounts"
}
