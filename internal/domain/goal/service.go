package goal

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

type CreateGoalRequest struct {
	UserId     ulid.ULID
	FamilyId   *ulid.ULID
	Name       string
	Target     decimal.Decimal
	TargetDate *time.Time
	Priority   GoalPriority
}

func (s *Service) CreateGoal(ctx context.Context, req *CreateGoalRequest) (*Goal, error) {
	if err := s.validateCreate(req); err != nil {
		return nil, err
	}

	if err := s.EnsureUserExists(ctx, req.UserId); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}

	now := time.Now()
	entity := &Goal{
		Id:            pkg.GenerateULIDObject(),
		UserId:        req.UserId,
		FamilyId:      req.FamilyId,
		Name:          strings.TrimSpace(req.Name),
		TargetAmount:  req.Target,
		CurrentAmount: decimal.Zero,
		TargetDate:    req.TargetDate,
		Priority:      priority,
		Status:        NotStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.Repository.Create(ctx, entity); err != nil {
		return nil, err
	}

	return entity, nil
}

func (s *Service) validateCreate(req *CreateGoalRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.NewValidationError("name", "é obrigatório")
	}
	if !req.Target.IsPositive() {
		return appErrors.NewValidationError("target", "deve ser maior que zero")
	}
	if req.TargetDate != nil && req.TargetDate.Before(time.Now()) {
		return appErrors.NewValidationError("target_date", "deve ser uma data futura")
	}
	return nil
}

type UpdateGoalRequest struct {
	Id         ulid.ULID
	UserId     ulid.ULID
	Name       string
	Target     decimal.Decimal
	TargetDate *time.Time
	Priority   GoalPriority
}

func (s *Service) UpdateGoal(ctx context.Context, req *UpdateGoalRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return appErrors.NewValidationError("name", "é obrigatório")
	}
	if !req.Target.IsPositive() {
		return appErrors.NewValidationError("target", "deve ser maior que zero")
	}

	if err := s.CheckGoalBelongsToUser(ctx, req.Id, req.UserId); err != nil {
		return err
	}

	current, err := s.Repository.GetById(ctx, req.Id)
	if err != nil {
		return err
	}

	current.Name = strings.TrimSpace(req.Name)
	current.TargetAmount = req.Target
	current.TargetDate = req.TargetDate
	if req.Priority != "" {
		current.Priority = req.Priority
	}
	current.UpdatedAt = time.Now()

	return s.Repository.Update(ctx, current)
}

func (s *Service) CancelGoal(ctx context.Context, goalID, userID ulid.ULID) error {
	if err := s.CheckGoalBelongsToUser(ctx, goalID, userID); err != nil {
		return err
	}
	return s.Repository.UpdateFields(ctx, goalID, map[string]interface{}{
		"status":     Cancelled,
		"updated_at": time.Now(),
	})
}

func (s *Service) GetGoalByID(ctx context.Context, goalID ulid.ULID) (*Goal, error) {
	return s.Repository.GetById(ctx, goalID)
}

func (s *Service) GetGoalsByUserID(ctx context.Context, userID ulid.ULID, pagination *pkg.PaginationParams) ([]*Goal, int64, error) {
	return s.Repository.GetByUserId(ctx, userID, pagination)
}

func (s *Service) CheckGoalBelongsToUser(ctx context.Context, goalID, userID ulid.ULID) error {
	userBelongs, err := s.Repository.CheckGoalBelongsToUser(ctx, goalID, userID)
	if err != nil {
		return err
	}
	if !userBelongs {
		return appErrors.ErrResourceNotOwned
	}
	return nil
}

type GoalProgress struct {
	GoalId        ulid.ULID       `json:"goalId"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Remaining     decimal.Decimal `json:"remaining"`
	Percentage    float64         `json:"percentage"`
	Status        string          `json:"status"`
}

func (s *Service) GetGoalProgress(ctx context.Context, goalID ulid.ULID) (*GoalProgress, error) {
	entity, err := s.Repository.GetById(ctx, goalID)
	if err != nil {
		return nil, err
	}
	return ProgressOf(entity), nil
}

func ProgressOf(g *Goal) *GoalProgress {
	percentage := 0.0
	if g.TargetAmount.IsPositive() {
		percentage, _ = g.CurrentAmount.Div(g.TargetAmount).Mul(decimal.NewFromInt(100)).Float64()
	}

	return &GoalProgress{
		GoalId:        g.Id,
		Name:          g.Name,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Remaining:     g.Remaining(),
		Percentage:    percentage,
		Status:        string(g.Status),
	}
}
