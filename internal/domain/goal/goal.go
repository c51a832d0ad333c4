package goal

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type GoalStatus string

const (
	NotStarted GoalStatus = "not_started"
	InProgress GoalStatus = "in_progress"
	Completed  GoalStatus = "completed"
	Cancelled  GoalStatus = "cancelled"
)

type GoalPriority string

const (
	PriorityLow    GoalPriority = "low"
	PriorityMedium GoalPriority = "medium"
	PriorityHigh   GoalPriority = "high"
)

type Goal struct {
	Id            ulid.ULID       `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserId        ulid.ULID       `gorm:"type:varchar(26);index:idx_goals_user_id;not null" json:"userId"`
	FamilyId      *ulid.ULID      `gorm:"type:varchar(26);index:idx_goals_family_id" json:"familyId,omitempty"`
	Name          string          `gorm:"type:varchar(100);not null" json:"name"`
	TargetAmount  decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"targetAmount"`
	CurrentAmount decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"currentAmount"`
	TargetDate    *time.Time      `gorm:"type:timestamp" json:"targetDate,omitempty"`
	Priority      GoalPriority    `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	Status        GoalStatus      `gorm:"type:varchar(20);not null;default:'not_started';index:idx_goals_status" json:"status"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;not null" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime;not null" json:"updatedAt"`
}

func (Goal) TableName() string {
	return "goals"
}

// IsShared indica se a meta pertence a uma família.
func (g *Goal) IsShared() bool {
	return g.FamilyId != nil
}

// Remaining retorna quanto falta para atingir o alvo, nunca negativo.
func (g *Goal) Remaining() decimal.Decimal {
	remaining := g.TargetAmount.Sub(g.CurrentAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// AcceptsContribution indica se a meta ainda recebe aportes: status aberto
// e valor restante positivo.
func (g *Goal) AcceptsContribution() bool {
	if g.Status != NotStarted && g.Status != InProgress {
		return false
	}
	return g.Remaining().IsPositive()
}

// StatusFor calcula o status derivado de um valor acumulado: completed
// exatamente quando o acumulado alcança o alvo.
func StatusFor(current, target decimal.Decimal) GoalStatus {
	if current.GreaterThanOrEqual(target) {
		return Completed
	}
	if current.IsPositive() {
		return InProgress
	}
	return NotStarted
}
