package fx

import (
	"Aporte/config"
	"Aporte/internal/domain/account"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/domain/family"
	"Aporte/internal/domain/goal"
	"Aporte/internal/domain/shared"
	"Aporte/internal/domain/user"
	"Aporte/internal/infrastructure"

	"go.uber.org/fx"
)

// DomainModule fornece os services do domínio e o maquinário do fluxo de
// aporte.
var DomainModule = fx.Module("domain",
	fx.Provide(
		newUserService,
		newUserCheckerService,
		newAccountService,
		newGoalService,
		newFamilyService,

		newAuditLogger,
		newCommitPipeline,
		newFlowManager,
		newSyncManager,
	),
	fx.Invoke(
		wireCacheInvalidation,
	),
)

func newUserService(repo *infrastructure.UserRepository) *user.Service {
	return user.NewService(repo)
}

func newUserCheckerService(userSvc *user.Service) *shared.UserCheckerService {
	return shared.NewUserCheckerService(userSvc)
}

func newAccountService(
	repo *infrastructure.AccountRepository,
	userChecker *shared.UserCheckerService,
) *account.Service {
	return account.NewService(repo, userChecker)
}

func newGoalService(
	repo *infrastructure.GoalRepository,
	userChecker *shared.UserCheckerService,
) *goal.Service {
	return goal.NewService(repo, userChecker)
}

func newFamilyService(repo *infrastructure.FamilyRepository) *family.Service {
	return family.NewService(repo)
}

func newAuditLogger(repo *infrastructure.ContributionRepository) *contribution.AuditLogger {
	return contribution.NewAuditLogger(repo)
}

func newCommitPipeline(
	procedure *infrastructure.ContributionProcedure,
	goalRepo *infrastructure.GoalRepository,
	accountRepo *infrastructure.AccountRepository,
	contributionRepo *infrastructure.ContributionRepository,
) *contribution.Pipeline {
	return contribution.NewPipeline(procedure, goalRepo, accountRepo, contributionRepo)
}

func newFlowManager(
	cfg *config.Config,
	familySvc *family.Service,
	goalRepo *infrastructure.GoalRepository,
	accountRepo *infrastructure.AccountRepository,
	pipeline *contribution.Pipeline,
	audit *contribution.AuditLogger,
) *contribution.Manager {
	return contribution.NewManager(
		familySvc,
		goalRepo,
		accountRepo,
		pipeline,
		audit,
		cfg.Contribution.FlowTTL,
	)
}

func newSyncManager(
	cfg *config.Config,
	goalRepo *infrastructure.GoalRepository,
	stream *infrastructure.PgChangeStream,
) (*contribution.SyncManager, error) {
	return contribution.NewSyncManager(
		goalRepo,
		stream,
		cfg.Realtime.Channel,
		cfg.Realtime.ResyncInterval,
		cfg.Realtime.CacheEntries,
	)
}

// wireCacheInvalidation liga o commit local à invalidação do cache: quem
// acabou de aportar vê o progresso novo sem esperar a notificação do banco.
func wireCacheInvalidation(flows *contribution.Manager, sync *contribution.SyncManager) {
	flows.SetOnSuccess(sync.Invalidate)
}
