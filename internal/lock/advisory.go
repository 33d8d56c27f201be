package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"
)

const (
	lockSQL   = `SELECT pg_advisory_lock(hashtextextended($1, 0))`
	unlockSQL = `SELECT pg_advisory_unlock(hashtextextended($1, 0))`
)

// Advisory — сессионный advisory lock PostgreSQL по ключу.
// Блокировка держится на выделенном соединении пула до вызова unlock.
// Внутри процесса ключ сначала захватывается через Local, а число одновременно
// удерживаемых соединений ограничено половиной пула: держателю блокировки
// всегда остаются соединения для работы.
type Advisory struct {
	pool   *pgxpool.Pool
	local  *Local
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewAdvisory создаёт advisory-блокировку поверх пула.
func NewAdvisory(pool *pgxpool.Pool, logger *slog.Logger) *Advisory {
	holders := int64(pool.Config().MaxConns / 2)
	if holders < 1 {
		holders = 1
	}
	return &Advisory{
		pool:   pool,
		local:  NewLocal(),
		sem:    semaphore.NewWeighted(holders),
		logger: logger.With(slog.String("component", "advisory_lock")),
	}
}

// Lock захватывает ключ во всём кластере реплик.
func (a *Advisory) Lock(ctx context.Context, key string) (func(), error) {
	unlockLocal, err := a.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	if err := a.sem.Acquire(ctx, 1); err != nil {
		unlockLocal()
		return nil, err
	}

	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		a.sem.Release(1)
		unlockLocal()
		return nil, fmt.Errorf("соединение для advisory lock: %w", err)
	}

	if _, err := conn.Exec(ctx, lockSQL, key); err != nil {
		conn.Release()
		a.sem.Release(1)
		unlockLocal()
		return nil, fmt.Errorf("pg_advisory_lock: %w", err)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := conn.Exec(ctx, unlockSQL, key); err != nil {
			// Закрытое соединение снимает все сессионные блокировки
			a.logger.Warn("Не удалось снять advisory lock, соединение закрывается",
				slog.String("error", err.Error()),
			)
			_ = conn.Conn().Close(ctx)
		}
		conn.Release()
		a.sem.Release(1)
		unlockLocal()
	}, nil
}
