package infrastructure

import (
	"context"
	"errors"
	"time"

	"Aporte/internal/domain/family"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

type FamilyRepository struct {
	DB *gorm.DB
}

type membershipDB struct {
	Id        string      `gorm:"type:varchar(26);primaryKey"`
	FamilyId  string      `gorm:"type:varchar(26);index;not null"`
	UserId    string      `gorm:"type:varchar(26);index;not null"`
	Role      family.Role `gorm:"type:varchar(10);not null"`
	IsActive  bool        `gorm:"not null"`
	CreatedAt time.Time
}

func toDomainMembership(mdb *membershipDB) (*family.Membership, error) {
	id, err := pkg.ParseULID(mdb.Id)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	fid, err := pkg.ParseULID(mdb.FamilyId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	uid, err := pkg.ParseULID(mdb.UserId)
	if err != nil {
		return nil, appErrors.ErrInternalServer.WithError(err)
	}
	return &family.Membership{
		Id:        id,
		FamilyId:  fid,
		UserId:    uid,
		Role:      mdb.Role,
		IsActive:  mdb.IsActive,
		CreatedAt: mdb.CreatedAt,
	}, nil
}

func (r *FamilyRepository) GetMembership(ctx context.Context, userID, familyID ulid.ULID) (*family.Membership, error) {
	var mdb membershipDB
	if err := r.DB.WithContext(ctx).Table("family_memberships").
		Where("user_id = ? AND family_id = ?", userID.String(), familyID.String()).
		First(&mdb).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErrors.ErrNotFound.WithError(err)
		}
		return nil, appErrors.NewDatabaseError(err)
	}
	return toDomainMembership(&mdb)
}

func (r *FamilyRepository) GetMembersByFamilyId(ctx context.Context, familyID ulid.ULID) ([]*family.Membership, error) {
	var rows []membershipDB
	if err := r.DB.WithContext(ctx).Table("family_memberships").
		Where("family_id = ?", familyID.String()).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]*family.Membership, 0, len(rows))
	for i := range rows {
		m, err := toDomainMembership(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
