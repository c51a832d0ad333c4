package fx

import (
	"time"

	"Aporte/internal/domain/account"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/user"
	"Aporte/internal/infrastructure"
	"Aporte/internal/middleware"
	"Aporte/internal/routes"

	"go.uber.org/fx"
)

// RoutesModule fornece handlers e rate limiters
var RoutesModule = fx.Module("routes",
	fx.Provide(
		newHandler,
		newAuthRateLimiter,
	),
)

func newHandler(
	userSvc *user.Service,
	jwtSvc *middleware.JwtService,
	goalSvc *goal.Service,
	accountSvc *account.Service,
	familySvc *family.Service,
	flows *contribution.Manager,
	sync *contribution.SyncManager,
	contributionRepo *infrastructure.ContributionRepository,
) *routes.Handler {
	return &routes.Handler{
		UserService:    userSvc,
		JwtService:     jwtSvc,
		GoalService:    goalSvc,
		AccountService: accountSvc,
		FamilyService:  familySvc,

		Flows:    flows,
		Sync:     sync,
		Recorder: contributionRepo,
	}
}

func newAuthRateLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(100, time.Minute)
}
