package infrastructure

import (
	"context"
	"encoding/json"
	"time"

	"Aporte/config"
	"Aporte/internal/domain/contribution"
	"Aporte/internal/logger"
	"Aporte/internal/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
)

// PgChangeStream assina um canal LISTEN/NOTIFY do Postgres em uma conexão
// dedicada. gorm fica com o tráfego de queries; notificações precisam de uma
// conexão própria que passa a maior parte do tempo bloqueada em espera.
type PgChangeStream struct {
	dsn string
}

func NewPgChangeStream(cfg *config.Config) *PgChangeStream {
	return &PgChangeStream{dsn: cfg.Database.DSN}
}

type pgStreamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (h *pgStreamHandle) Close() error {
	h.cancel()
	<-h.done
	return nil
}

type changePayload struct {
	Table  string `json:"table"`
	Op     string `json:"op"`
	GoalId string `json:"goal_id"`
	UserId string `json:"user_id"`
}

func (s *PgChangeStream) Subscribe(ctx context.Context, channel string, fn func(contribution.ChangeEvent)) (contribution.StreamHandle, error) {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(context.Background())
	handle := &pgStreamHandle{cancel: cancel, done: make(chan struct{})}

	go s.listen(streamCtx, conn, channel, fn, handle.done)

	logger.Info().Str("channel", channel).Msg("Escutando canal de mudanças do banco")
	return handle, nil
}

func (s *PgChangeStream) listen(ctx context.Context, conn *pgx.Conn, channel string, fn func(contribution.ChangeEvent), done chan struct{}) {
	defer close(done)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Str("channel", channel).Msg("Conexão de notificações perdida; tentando reconectar")
			conn = s.reconnect(ctx, channel)
			if conn == nil {
				return
			}
			continue
		}

		var payload changePayload
		if err := json.Unmarshal([]byte(notification.Payload), &payload); err != nil {
			logger.Warn().Err(err).Msg("Payload de notificação ilegível; disparando resync completo")
			fn(contribution.ChangeEvent{})
			continue
		}

		fn(contribution.ChangeEvent{
			Table:  payload.Table,
			Op:     payload.Op,
			GoalId: parseULIDOrZero(payload.GoalId),
			UserId: parseULIDOrZero(payload.UserId),
		})
	}
}

// reconnect tenta restabelecer a conexão com recuo fixo até o contexto
// encerrar.
func (s *PgChangeStream) reconnect(ctx context.Context, channel string) *pgx.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}

		conn, err := pgx.Connect(ctx, s.dsn)
		if err != nil {
			logger.Warn().Err(err).Msg("Reconexão do canal de mudanças falhou")
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
			logger.Warn().Err(err).Msg("LISTEN falhou após reconexão")
			_ = conn.Close(ctx)
			continue
		}
		logger.Info().Str("channel", channel).Msg("Canal de mudanças reconectado")
		return conn
	}
}

func parseULIDOrZero(raw string) ulid.ULID {
	if raw == "" {
		return ulid.ULID{}
	}
	id, err := pkg.ParseULID(raw)
	if err != nil {
		return ulid.ULID{}
	}
	return id
}
