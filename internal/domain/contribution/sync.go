package contribution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Aporte/internal/domain/goal"
	"Aporte/internal/logger"

	"github.com/dgraph-io/ristretto"
	"github.com/oklog/ulid/v2"
	"github.com/robfig/cron/v3"
)

// Watch é a inscrição de um observador em uma meta. Close cancela a
// inscrição; fechar duas vezes é inofensivo.
type Watch struct {
	id     uint64
	goalID ulid.ULID
	mgr    *SyncManager
	once   sync.Once
}

func (w *Watch) Close() {
	w.once.Do(func() {
		w.mgr.unwatch(w.goalID, w.id)
	})
}

// SyncManager mantém a visão local das metas alinhada com o armazenamento.
// Leituras passam por um cache; notificações de mudança invalidam a entrada,
// releem e avisam os observadores da meta. Um resync periódico cobre
// notificações perdidas.
type SyncManager struct {
	goals    GoalStore
	stream   ChangeStream
	channel  string
	interval time.Duration

	cache *ristretto.Cache
	cron  *cron.Cron

	mu        sync.Mutex
	started   bool
	handle    StreamHandle
	nextWatch uint64
	observers map[ulid.ULID]map[uint64]func(*goal.Goal)
}

func NewSyncManager(goals GoalStore, stream ChangeStream, channel string, interval time.Duration, cacheEntries int64) (*SyncManager, error) {
	if cacheEntries <= 0 {
		cacheEntries = 1000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheEntries * 10,
		MaxCost:     cacheEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("falha ao criar cache de metas: %w", err)
	}

	return &SyncManager{
		goals:     goals,
		stream:    stream,
		channel:   channel,
		interval:  interval,
		cache:     cache,
		observers: make(map[ulid.ULID]map[uint64]func(*goal.Goal)),
	}, nil
}

// Start abre a inscrição no canal de mudanças e agenda o resync. Idempotente:
// chamadas repetidas não criam inscrições duplicadas.
func (s *SyncManager) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}

	if s.stream != nil {
		handle, err := s.stream.Subscribe(ctx, s.channel, s.onEvent)
		if err != nil {
			return fmt.Errorf("falha ao assinar canal de mudanças: %w", err)
		}
		s.handle = handle
	}

	if s.interval > 0 {
		s.cron = cron.New()
		spec := fmt.Sprintf("@every %s", s.interval)
		if _, err := s.cron.AddFunc(spec, s.resync); err != nil {
			return fmt.Errorf("falha ao agendar resync: %w", err)
		}
		s.cron.Start()
	}

	s.started = true
	logger.Info().Str("channel", s.channel).Msg("sincronização de metas iniciada")
	return nil
}

// Close encerra a inscrição, o resync e descarta os observadores.
func (s *SyncManager) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false

	if s.handle != nil {
		if err := s.handle.Close(); err != nil {
			logger.Warn().Err(err).Msg("falha ao encerrar canal de mudanças")
		}
		s.handle = nil
	}
	if s.cron != nil {
		s.cron.Stop()
		s.cron = nil
	}
	s.observers = make(map[ulid.ULID]map[uint64]func(*goal.Goal))
	s.cache.Clear()
}

// GetGoal lê a meta pelo cache; miss busca no armazenamento e preenche.
func (s *SyncManager) GetGoal(ctx context.Context, goalID ulid.ULID) (*goal.Goal, error) {
	if cached, ok := s.cache.Get(goalID.String()); ok {
		if g, ok := cached.(*goal.Goal); ok {
			return g, nil
		}
	}

	g, err := s.goals.GetById(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if g != nil {
		s.cache.Set(goalID.String(), g, 1)
	}
	return g, nil
}

// Invalidate descarta a entrada da meta no cache. Usada pelo caminho de
// escrita local: quem acabou de aportar não espera a notificação chegar.
func (s *SyncManager) Invalidate(goalID ulid.ULID) {
	s.cache.Del(goalID.String())
}

// Watch registra um observador para mudanças de uma meta.
func (s *SyncManager) Watch(goalID ulid.ULID, fn func(*goal.Goal)) *Watch {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextWatch++
	id := s.nextWatch
	if s.observers[goalID] == nil {
		s.observers[goalID] = make(map[uint64]func(*goal.Goal))
	}
	s.observers[goalID][id] = fn

	return &Watch{id: id, goalID: goalID, mgr: s}
}

func (s *SyncManager) unwatch(goalID ulid.ULID, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.observers[goalID]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(s.observers, goalID)
		}
	}
}

// onEvent trata uma notificação de mudança: invalida, relê e republica.
// Evento sem meta identificada vira um resync completo.
func (s *SyncManager) onEvent(event ChangeEvent) {
	if event.GoalId == (ulid.ULID{}) {
		s.resync()
		return
	}

	s.cache.Del(event.GoalId.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, err := s.goals.GetById(ctx, event.GoalId)
	if err != nil {
		logger.Warn().Err(err).Str("goal_id", event.GoalId.String()).Msg("falha ao reler meta após notificação")
		return
	}
	if g != nil {
		s.cache.Set(event.GoalId.String(), g, 1)
	}
	s.notify(event.GoalId, g)
}

// resync varre as metas observadas e relê cada uma, cobrindo janelas em que
// notificações se perderam.
func (s *SyncManager) resync() {
	s.mu.Lock()
	watched := make([]ulid.ULID, 0, len(s.observers))
	for goalID := range s.observers {
		watched = append(watched, goalID)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, goalID := range watched {
		s.cache.Del(goalID.String())
		g, err := s.goals.GetById(ctx, goalID)
		if err != nil {
			logger.Warn().Err(err).Str("goal_id", goalID.String()).Msg("falha no resync da meta")
			continue
		}
		if g != nil {
			s.cache.Set(goalID.String(), g, 1)
		}
		s.notify(goalID, g)
	}
}

func (s *SyncManager) notify(goalID ulid.ULID, g *goal.Goal) {
	s.mu.Lock()
	fns := make([]func(*goal.Goal), 0, len(s.observers[goalID]))
	for _, fn := range s.observers[goalID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(g)
	}
}
