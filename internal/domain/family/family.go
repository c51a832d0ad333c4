package family

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	// RoleAdmin administra a família e pode aportar em metas compartilhadas.
	RoleAdmin Role = "admin"
	// RoleMember participa e pode aportar em metas compartilhadas.
	RoleMember Role = "member"
	// RoleViewer apenas visualiza; não pode aportar.
	RoleViewer Role = "viewer"
)

// CanContribute indica se o papel carrega direito de aporte.
func (r Role) CanContribute() bool {
	return r == RoleAdmin || r == RoleMember
}

type Family struct {
	Id        ulid.ULID `gorm:"type:varchar(26);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	OwnerId   ulid.ULID `gorm:"type:varchar(26);not null" json:"ownerId"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"createdAt"`
}

func (Family) TableName() string {
	return "families"
}

type Membership struct {
	Id        ulid.ULID `gorm:"type:varchar(26);primaryKey" json:"id"`
	FamilyId  ulid.ULID `gorm:"type:varchar(26);index:idx_family_memberships_family_id;not null" json:"familyId"`
	UserId    ulid.ULID `gorm:"type:varchar(26);index:idx_family_memberships_user_id;not null" json:"userId"`
	Role      Role      `gorm:"type:varchar(10);not null" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt time.Time `gorm:"autoCreateTime;not null" json:"createdAt"`
}

func (Membership) TableName() string {
	return "family_memberships"
}
