package infrastructure

import (
	"context"
	"errors"
	"time"

	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/transaction"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ContributionRepository grava aportes, os lançamentos genéricos
// correspondentes e os eventos de auditoria.
type ContributionRepository struct {
	DB *gorm.DB
}

type contributionDB struct {
	Id            string          `gorm:"type:varchar(26);primaryKey"`
	GoalId        string          `gorm:"type:varchar(26);index;not null"`
	UserId        string          `gorm:"type:varchar(26);index;not null"`
	AccountId     string          `gorm:"type:varchar(26);index;not null"`
	TransactionId *string         `gorm:"type:varchar(26);index"`
	Type          string          `gorm:"type:varchar(20);not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Note          string          `gorm:"type:varchar(255)"`
	CreatedAt     time.Time       `gorm:"not null"`
}

func toDomainContribution(cdb *contributionDB) (*contribution.Contribution, error) {
	id, err := pkg.ParseULID(cdb.Id)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	gid, err := pkg.ParseULID(cdb.GoalId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	uid, err := pkg.ParseULID(cdb.UserId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	aid, err := pkg.ParseULID(cdb.AccountId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	var txID *ulid.ULID
	if cdb.TransactionId != nil {
		tid, err := pkg.ParseULID(*cdb.TransactionId)
		if err != nil {
			return nil, appErrors.ErrInternalServer.WithError(err)
		}
		txID = &tid
	}
	return &contribution.Contribution{
		Id:            id,
		GoalId:        gid,
		UserId:        uid,
		AccountId:     aid,
		TransactionId: txID,
		Type:          contribution.ContributionType(cdb.Type),
		Amount:        cdb.Amount,
		Note:          cdb.Note,
		CreatedAt:     cdb.CreatedAt,
	}, nil
}

func toDBContribution(c *contribution.Contribution) *contributionDB {
	var txID *string
	if c.TransactionId != nil {
		tid := c.TransactionId.String()
		txID = &tid
	}
	return &contributionDB{
		Id:            c.Id.String(),
		GoalId:        c.GoalId.String(),
		UserId:        c.UserId.String(),
		AccountId:     c.AccountId.String(),
		TransactionId: txID,
		Type:          string(c.Type),
		Amount:        c.Amount,
		Note:          c.Note,
		CreatedAt:     c.CreatedAt,
	}
}

// CreateContribution insere o registro de aporte. Violação de chave primária
// vira ErrConflict: o id do rascunho já foi usado por um confirm anterior.
func (r *ContributionRepository) CreateContribution(ctx context.Context, c *contribution.Contribution) error {
	cdb := toDBContribution(c)
	if err := r.DB.WithContext(ctx).Table("goal_contributions").Create(&cdb).Error; err != nil {
		if isUniqueViolation(err) {
			return appErrors.ErrConflict.WithError(err)
		}
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

func (r *ContributionRepository) GetContributionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*contribution.Contribution, error) {
	var rows []contributionDB
	if err := r.DB.WithContext(ctx).Table("goal_contributions").
		Where("goal_id = ? AND user_id = ?", goalID.String(), userID.String()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]*contribution.Contribution, 0, len(rows))
	for i := range rows {
		c, err := toDomainContribution(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

type transactionDB struct {
	Id          string          `gorm:"type:varchar(26);primaryKey"`
	UserId      string          `gorm:"type:varchar(26);index;not null"`
	AccountId   string          `gorm:"type:varchar(26);index;not null"`
	GoalId      *string         `gorm:"type:varchar(26);index"`
	Type        string          `gorm:"type:varchar(20);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Description string          `gorm:"type:varchar(255)"`
	Date        time.Time       `gorm:"not null"`
	CreatedAt   time.Time       `gorm:"not null"`
}

func toDomainTransaction(tdb *transactionDB) (*transaction.Transaction, error) {
	id, err := pkg.ParseULID(tdb.Id)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	uid, err := pkg.ParseULID(tdb.UserId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	aid, err := pkg.ParseULID(tdb.AccountId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	var goalID *ulid.ULID
	if tdb.GoalId != nil {
		gid, err := pkg.ParseULID(*tdb.GoalId)
		if err != nil {
			return nil, appErrors.ErrInternalServer.WithError(err)
		}
		goalID = &gid
	}
	return &transaction.Transaction{
		Id:          id,
		UserId:      uid,
		AccountId:   aid,
		GoalId:      goalID,
		Type:        transaction.TransactionType(tdb.Type),
		Amount:      tdb.Amount,
		Description: tdb.Description,
		Date:        tdb.Date,
		CreatedAt:   tdb.CreatedAt,
	}, nil
}

func toDBTransaction(tx *transaction.Transaction) *transactionDB {
	var goalID *string
	if tx.GoalId != nil {
		gid := tx.GoalId.String()
		goalID = &gid
	}
	return &transactionDB{
		Id:          tx.Id.String(),
		UserId:      tx.UserId.String(),
		AccountId:   tx.AccountId.String(),
		GoalId:      goalID,
		Type:        string(tx.Type),
		Amount:      tx.Amount,
		Description: tx.Description,
		Date:        tx.Date,
		CreatedAt:   tx.CreatedAt,
	}
}

func (r *ContributionRepository) CreateTransaction(ctx context.Context, tx *transaction.Transaction) error {
	tdb := toDBTransaction(tx)
	if err := r.DB.WithContext(ctx).Table("transactions").Create(&tdb).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

func (r *ContributionRepository) GetTransactionsByGoalId(ctx context.Context, goalID, userID ulid.ULID) ([]*transaction.Transaction, error) {
	var rows []transactionDB
	if err := r.DB.WithContext(ctx).Table("transactions").
		Where("goal_id = ? AND user_id = ?", goalID.String(), userID.String()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]*transaction.Transaction, 0, len(rows))
	for i := range rows {
		tx, err := toDomainTransaction(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

type auditEventDB struct {
	Id        string    `gorm:"type:varchar(26);primaryKey"`
	UserId    string    `gorm:"type:varchar(26);index;not null"`
	Action    string    `gorm:"type:varchar(50);not null"`
	EntityId  string    `gorm:"type:varchar(26);not null"`
	Payload   string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"not null"`
}

func (r *ContributionRepository) CreateEvent(ctx context.Context, event *contribution.AuditEvent) error {
	edb := &auditEventDB{
		Id:        event.Id.String(),
		UserId:    event.UserId.String(),
		Action:    event.Action,
		EntityId:  event.EntityId.String(),
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt,
	}
	if err := r.DB.WithContext(ctx).Table("audit_events").Create(&edb).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

// isUniqueViolation identifica SQLSTATE 23505 (unique_violation).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
