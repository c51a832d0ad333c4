package contracts

import (
	"time"

	"Aporte/internal/domain/goal"
)

type GoalCreateRequest struct {
	Name       string     `json:"name" binding:"required,min=2,max=100"`
	Target     string     `json:"target" binding:"required"`
	FamilyId   string     `json:"familyId"`
	TargetDate *time.Time `json:"targetDate"`
	Priority   string     `json:"priority" binding:"omitempty,oneof=low medium high"`
}

type GoalUpdateRequest struct {
	Name       string     `json:"name" binding:"required,min=2,max=100"`
	Target     string     `json:"target" binding:"required"`
	TargetDate *time.Time `json:"targetDate"`
	Priority   string     `json:"priority" binding:"omitempty,oneof=low medium high"`
}

type GoalResponse struct {
	Goal *goal.Goal `json:"goal"`
}

type GoalListResponse struct {
	Goals []*goal.Goal `json:"goals"`
	Total int          `json:"total"`
}

type GoalProgressResponse struct {
	Progress *goal.GoalProgress `json:"progress"`
}
