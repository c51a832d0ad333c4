package contribution

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Aporte/internal/pkg"
)

type fakeAuditStore struct {
	mu       sync.Mutex
	events   []*AuditEvent
	createFn func(ctx context.Context, event *AuditEvent) error
}

func (f *fakeAuditStore) CreateEvent(ctx context.Context, event *AuditEvent) error {
	if f.createFn != nil {
		if err := f.createFn(ctx, event); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestAuditLoggerWritesEvent(t *testing.T) {
	store := &fakeAuditStore{}
	audit := NewAuditLogger(store)

	userID := pkg.GenerateULIDObject()
	contributionID := pkg.GenerateULIDObject()
	goalID := pkg.GenerateULIDObject()

	audit.ContributionCreated(userID, contributionID, goalID, "150")
	audit.Wait()

	if store.count() != 1 {
		t.Fatalf("esperava 1 evento, obteve %d", store.count())
	}
	event := store.events[0]
	if event.Action != ActionContributionCreated {
		t.Errorf("ação esperada %s, obteve %s", ActionContributionCreated, event.Action)
	}
	if event.UserId != userID || event.EntityId != contributionID {
		t.Error("evento deve apontar para o usuário e o aporte")
	}
	if event.Payload == "" {
		t.Error("payload não deve ficar vazio")
	}
}

func TestAuditLoggerSwallowsFailure(t *testing.T) {
	store := &fakeAuditStore{
		createFn: func(ctx context.Context, event *AuditEvent) error {
			return errors.New("auditoria fora do ar")
		},
	}
	audit := NewAuditLogger(store)

	// A chamada não pode bloquear nem propagar a falha.
	audit.ContributionCreated(pkg.GenerateULIDObject(), pkg.GenerateULIDObject(), pkg.GenerateULIDObject(), "10")
	audit.Wait()

	if store.count() != 0 {
		t.Error("falha de escrita não deveria registrar evento")
	}
}

func TestAuditLoggerRecoversPanic(t *testing.T) {
	store := &fakeAuditStore{
		createFn: func(ctx context.Context, event *AuditEvent) error {
			panic("gravação explodiu")
		},
	}
	audit := NewAuditLogger(store)

	audit.ContributionCreated(pkg.GenerateULIDObject(), pkg.GenerateULIDObject(), pkg.GenerateULIDObject(), "10")
	audit.Wait()
}
