package family

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type Repository interface {
	GetMembership(ctx context.Context, userID, familyID ulid.ULID) (*Membership, error)
	GetMembersByFamilyId(ctx context.Context, familyID ulid.ULID) ([]*Membership, error)
}
