package contribution

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"Aporte/internal/logger"
	"Aporte/internal/pkg"

	"github.com/oklog/ulid/v2"
)

// AuditLogger grava eventos de auditoria em segundo plano. A escrita é
// dispara-e-esquece: nenhuma falha aqui chega ao chamador, um aporte
// confirmado jamais é desfeito por causa de auditoria.
type AuditLogger struct {
	store   AuditStore
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAuditLogger(store AuditStore) *AuditLogger {
	return &AuditLogger{
		store:   store,
		timeout: 5 * time.Second,
	}
}

// ContributionCreated registra um aporte bem-sucedido. Retorna antes da
// escrita acontecer.
func (a *AuditLogger) ContributionCreated(userID, contributionID, goalID ulid.ULID, amount string) {
	payload, err := json.Marshal(map[string]string{
		"goalId": goalID.String(),
		"amount": amount,
	})
	if err != nil {
		payload = []byte("{}")
	}

	event := &AuditEvent{
		Id:        pkg.GenerateULIDObject(),
		UserId:    userID,
		Action:    ActionContributionCreated,
		EntityId:  contributionID,
		Payload:   string(payload),
		CreatedAt: time.Now(),
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Warn().Interface("panic", r).Msg("pânico ao gravar evento de auditoria")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		if err := a.store.CreateEvent(ctx, event); err != nil {
			logger.Warn().
				Err(err).
				Str("action", event.Action).
				Str("entity_id", event.EntityId.String()).
				Msg("falha ao gravar evento de auditoria")
		}
	}()
}

// Wait bloqueia até as escritas pendentes terminarem. Usado no shutdown e
// nos testes.
func (a *AuditLogger) Wait() {
	a.wg.Wait()
}
