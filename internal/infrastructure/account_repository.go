package infrastructure

import (
	"context"
	"errors"
	"time"

	"Aporte/internal/domain/account"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountRepository struct {
	DB *gorm.DB
}

type accountDB struct {
	Id        string              `gorm:"type:varchar(26);primaryKey"`
	UserId    string              `gorm:"type:varchar(26);index;not null"`
	Name      string              `gorm:"not null"`
	Type      account.AccountType `gorm:"type:varchar(20);not null"`
	Balance   decimal.Decimal     `gorm:"type:decimal(15,2);not null"`
	IsActive  bool                `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func toDomainAccount(adb *accountDB) (*account.Account, error) {
	id, err := pkg.ParseULID(adb.Id)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	uid, err := pkg.ParseULID(adb.UserId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	return &account.Account{
		Id:        id,
		UserId:    uid,
		Name:      adb.Name,
		Type:      adb.Type,
		Balance:   adb.Balance,
		IsActive:  adb.IsActive,
		CreatedAt: adb.CreatedAt,
		UpdatedAt: adb.UpdatedAt,
	}, nil
}

func toDBAccount(a *account.Account) *accountDB {
	return &accountDB{
		Id:        a.Id.String(),
		UserId:    a.UserId.String(),
		Name:      a.Name,
		Type:      a.Type,
		Balance:   a.Balance,
		IsActive:  a.IsActive,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	adb := toDBAccount(a)
	if err := r.DB.WithContext(ctx).Table("accounts").Create(&adb).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

func (r *AccountRepository) GetById(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	var adb accountDB
	if err := r.DB.WithContext(ctx).Table("accounts").Where("id = ?", id.String()).First(&adb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrAccountNotFound.WithError(err)
		}
		return nil, appErrors.NewDatabaseError(err)
	}
	return toDomainAccount(&adb)
}

func (r *AccountRepository) GetByIdAndUser(ctx context.Context, id, userID ulid.ULID) (*account.Account, error) {
	var adb accountDB
	if err := r.DB.WithContext(ctx).Table("accounts").Where("id = ? AND user_id = ?", id.String(), userID.String()).First(&adb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrAccountNotFound.WithError(err)
		}
		return nil, appErrors.NewDatabaseError(err)
	}
	return toDomainAccount(&adb)
}

func (r *AccountRepository) GetByUserId(ctx context.Context, userID ulid.ULID) ([]*account.Account, error) {
	var rows []accountDB
	if err := r.DB.WithContext(ctx).Table("accounts").
		Where("user_id = ? AND is_active = ?", userID.String(), true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]*account.Account, 0, len(rows))
	for i := range rows {
		a, err := toDomainAccount(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// DebitBalance debita com guarda de saldo: o UPDATE só alcança a linha se o
// saldo atual cobrir o valor. Zero linhas afetadas significa que uma escrita
// concorrente consumiu o saldo entre a validação e o commit.
func (r *AccountRepository) DebitBalance(ctx context.Context, id ulid.ULID, amount decimal.Decimal) error {
	result := r.DB.WithContext(ctx).Table("accounts").
		Where("id = ? AND balance >= ?", id.String(), amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return appErrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.ErrBalanceCondition
	}
	return nil
}
