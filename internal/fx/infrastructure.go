package fx

import (
	"Aporte/config"
	"Aporte/internal/infrastructure"

	"go.uber.org/fx"
	"gorm.io/gorm"
)

var InfrastructureModule = fx.Module("infrastructure",
	fx.Provide(
		newDatabase,
		newUserRepository,
		newAccountRepository,
		newGoalRepository,
		newFamilyRepository,
		newContributionRepository,
		newContributionProcedure,
		newChangeStream,
	),
)

func newDatabase(cfg *config.Config) (*gorm.DB, error) {
	return infrastructure.NewDb(cfg)
}

func newUserRepository(db *gorm.DB) *infrastructure.UserRepository {
	return &infrastructure.UserRepository{DB: db}
}

func newAccountRepository(db *gorm.DB) *infrastructure.AccountRepository {
	return &infrastructure.AccountRepository{DB: db}
}

func newGoalRepository(db *gorm.DB) *infrastructure.GoalRepository {
	return &infrastructure.GoalRepository{DB: db}
}

func newFamilyRepository(db *gorm.DB) *infrastructure.FamilyRepository {
	return &infrastructure.FamilyRepository{DB: db}
}

func newContributionRepository(db *gorm.DB) *infrastructure.ContributionRepository {
	return &infrastructure.ContributionRepository{DB: db}
}

func newContributionProcedure(db *gorm.DB, cfg *config.Config) *infrastructure.ContributionProcedure {
	return infrastructure.NewContributionProcedure(db, cfg.Contribution.UseAtomicProcedure)
}

func newChangeStream(cfg *config.Config) *infrastructure.PgChangeStream {
	return infrastructure.NewPgChangeStream(cfg)
}
