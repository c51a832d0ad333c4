package account

import (
	"context"
	"strings"
	"time"

	"Aporte/internal/domain/shared"
	appErrors "Aporte/internal/errors"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Service struct {
	Repository Repository
	shared.BaseService
}

func NewService(repo Repository, userChecker *shared.UserCheckerService) *Service {
	return &Service{
		Repository: repo,
		BaseService: shared.BaseService{
			UserChecker: userChecker,
		},
	}
}

type CreateAccountRequest struct {
	UserId         ulid.ULID
	Name           string
	Type           AccountType
	InitialBalance decimal.Decimal
}

func (s *Service) CreateAccount(ctx context.Context, req *CreateAccountRequest) (*Account, error) {
	if err := s.EnsureUserExists(ctx, req.UserId); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, appErrors.NewValidationError("name", "é obrigatório")
	}
	if req.InitialBalance.IsNegative() {
		return nil, appErrors.NewValidationError("initial_balance", "não pode ser negativo")
	}

	now := time.Now()
	entity := &Account{
		Id:        pkg.GenerateULIDObject(),
		UserId:    req.UserId,
		Name:      name,
		Type:      req.Type,
		Balance:   req.InitialBalance,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repository.Create(ctx, entity); err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *Service) GetAccountByID(ctx context.Context, accountID, userID ulid.ULID) (*Account, error) {
	return s.Repository.GetByIdAndUser(ctx, accountID, userID)
}

func (s *Service) GetAccountsByUserID(ctx context.Context, userID ulid.ULID) ([]*Account, error) {
	return s.Repository.GetByUserId(ctx, userID)
}
