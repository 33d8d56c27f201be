// Пакет lock — блокировки по ключу (нормализованному email).
// Local — внутри процесса, Advisory — через advisory lock PostgreSQL между репликами.
package lock

import (
	"context"
	"sync"
)

// Local — мьютекс по ключу внутри процесса.
// Записи удаляются, когда ключ никто не держит и не ждёт.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocal создаёт блокировку по ключу внутри процесса.
func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

// Lock захватывает ключ. Ожидание прерывается отменой ctx.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.release(key, s)
		})
	}, nil
}

func (l *Local) release(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// size возвращает число ключей в таблице.
func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
