package contribution

import (
	"context"
	"sync"
	"testing"

	"Aporte/internal/domain/goal"

	"github.com/oklog/ulid/v2"
)

type fakeStreamHandle struct {
	mu     sync.Mutex
	closed int
}

func (f *fakeStreamHandle) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

type fakeChangeStream struct {
	mu         sync.Mutex
	subscribes int
	handler    func(ChangeEvent)
	handle     *fakeStreamHandle
}

func (f *fakeChangeStream) Subscribe(ctx context.Context, channel string, fn func(ChangeEvent)) (StreamHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	f.handler = fn
	f.handle = &fakeStreamHandle{}
	return f.handle, nil
}

func (f *fakeChangeStream) emit(event ChangeEvent) {
	f.mu.Lock()
	fn := f.handler
	f.mu.Unlock()
	if fn != nil {
		fn(event)
	}
}

func newSyncFixture(t *testing.T, goals GoalStore) (*SyncManager, *fakeChangeStream) {
	t.Helper()
	stream := &fakeChangeStream{}
	mgr, err := NewSyncManager(goals, stream, "goal_changes", 0, 100)
	if err != nil {
		t.Fatalf("NewSyncManager: %v", err)
	}
	t.Cleanup(mgr.Close)
	return mgr, stream
}

func TestSyncManagerStartIsIdempotent(t *testing.T) {
	mgr, stream := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			return nil, nil
		},
	})

	ctx := context.Background()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start repetido: %v", err)
	}

	if stream.subscribes != 1 {
		t.Errorf("esperava 1 inscrição, obteve %d", stream.subscribes)
	}
}

func TestSyncManagerReadThroughCache(t *testing.T) {
	g := newTestGoal(100, 1000)
	var reads int
	mgr, _ := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			reads++
			return g, nil
		},
	})

	ctx := context.Background()
	if _, err := mgr.GetGoal(ctx, g.Id); err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	// Ristretto admite entradas de forma assíncrona.
	mgr.cache.Wait()
	if _, err := mgr.GetGoal(ctx, g.Id); err != nil {
		t.Fatalf("GetGoal: %v", err)
	}

	if reads != 1 {
		t.Errorf("segunda leitura deveria vir do cache; armazenamento lido %d vezes", reads)
	}
}

func TestSyncManagerInvalidateForcesRefetch(t *testing.T) {
	g := newTestGoal(100, 1000)
	var reads int
	mgr, _ := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			reads++
			return g, nil
		},
	})

	ctx := context.Background()
	if _, err := mgr.GetGoal(ctx, g.Id); err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	mgr.cache.Wait()

	mgr.Invalidate(g.Id)
	if _, err := mgr.GetGoal(ctx, g.Id); err != nil {
		t.Fatalf("GetGoal: %v", err)
	}

	if reads != 2 {
		t.Errorf("invalidação deveria forçar releitura; armazenamento lido %d vezes", reads)
	}
}

func TestSyncManagerEventNotifiesWatchers(t *testing.T) {
	g := newTestGoal(100, 1000)
	mgr, stream := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			return g, nil
		},
	})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []*goal.Goal
	watch := mgr.Watch(g.Id, func(updated *goal.Goal) {
		got = append(got, updated)
	})
	defer watch.Close()

	stream.emit(ChangeEvent{Table: "goals", Op: "UPDATE", GoalId: g.Id})

	if len(got) != 1 {
		t.Fatalf("esperava 1 notificação, obteve %d", len(got))
	}
	if got[0].Id != g.Id {
		t.Error("notificação deve carregar a meta relida")
	}
}

func TestSyncManagerClosedWatchStopsNotifying(t *testing.T) {
	g := newTestGoal(100, 1000)
	mgr, stream := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			return g, nil
		},
	})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var notified int
	watch := mgr.Watch(g.Id, func(*goal.Goal) { notified++ })
	watch.Close()
	watch.Close() // fechar duas vezes é inofensivo

	stream.emit(ChangeEvent{Table: "goals", Op: "UPDATE", GoalId: g.Id})

	if notified != 0 {
		t.Errorf("observador fechado não deveria ser notificado, recebeu %d", notified)
	}
}

func TestSyncManagerCloseReleasesStream(t *testing.T) {
	mgr, stream := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			return nil, nil
		},
	})

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	mgr.Close()

	stream.handle.mu.Lock()
	closed := stream.handle.closed
	stream.handle.mu.Unlock()
	if closed != 1 {
		t.Errorf("esperava 1 fechamento do canal, obteve %d", closed)
	}

	// Close repetido não deve fechar o canal de novo.
	mgr.Close()
	stream.handle.mu.Lock()
	closed = stream.handle.closed
	stream.handle.mu.Unlock()
	if closed != 1 {
		t.Errorf("fechamento repetido não deveria tocar o canal, obteve %d", closed)
	}
}

func TestSyncManagerResyncSweepsWatchedGoals(t *testing.T) {
	g := newTestGoal(100, 1000)
	var reads int
	mgr, _ := newSyncFixture(t, &fakeGoalStore{
		getByIDFn: func(ctx context.Context, id ulid.ULID) (*goal.Goal, error) {
			reads++
			return g, nil
		},
	})

	var notified int
	watch := mgr.Watch(g.Id, func(*goal.Goal) { notified++ })
	defer watch.Close()

	mgr.resync()

	if reads != 1 {
		t.Errorf("resync deveria reler a meta observada, leu %d vezes", reads)
	}
	if notified != 1 {
		t.Errorf("resync deveria notificar o observador, notificou %d vezes", notified)
	}
}
