package shared

import (
	"context"

	"github.com/oklog/ulid/v2"
)

type UserGetter interface {
	Exists(ctx context.Context, userID ulid.ULID) error
}
