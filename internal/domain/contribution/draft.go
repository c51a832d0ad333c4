package contribution

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Step é a posição do rascunho no fluxo de aporte.
type Step string

const (
	StepSelection    Step = "selection"
	StepContribution Step = "contribution"
	StepReview       Step = "review"
	StepClosed       Step = "closed"
)

// Draft guarda a entrada em andamento do usuário. Existe apenas em memória:
// nasce quando o fluxo abre e morre quando ele fecha. O Id do rascunho é
// reaproveitado como id do aporte, servindo de chave de idempotência caso o
// confirm seja repetido.
type Draft struct {
	Id        ulid.ULID  `json:"id"`
	UserId    ulid.ULID  `json:"userId"`
	GoalId    *ulid.ULID `json:"goalId,omitempty"`
	AccountId *ulid.ULID `json:"accountId,omitempty"`
	Amount    string     `json:"amount"`
	Note      string     `json:"note"`
	Step      Step       `json:"step"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (d *Draft) clone() *Draft {
	if d == nil {
		return nil
	}
	copied := *d
	if d.GoalId != nil {
		goalID := *d.GoalId
		copied.GoalId = &goalID
	}
	if d.AccountId != nil {
		accountID := *d.AccountId
		copied.AccountId = &accountID
	}
	return &copied
}
