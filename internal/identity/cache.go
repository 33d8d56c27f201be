package identity

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "op_identity_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш identity.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "op_identity_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша identity.",
	})
)

// Directory — каталог identity, который оборачивает CachedDirectory.
type Directory interface {
	LookupByID(ctx context.Context, id string) (*model.Identity, error)
	FindByEmail(ctx context.Context, email string) (*model.Identity, error)
	ListIdentities(ctx context.Context, visit func(page []model.Identity) error) error
	Delete(ctx context.Context, id string) error
	ResetPassword(ctx context.Context, id, password string) error
}

// CachedDirectory кэширует найденные по ID identity.
// Отсутствие identity не кэшируется: новая регистрация видна сразу.
// Поиск по email и обход всегда идут в IdP и кэш не наполняют.
// Email в кэше может отставать от IdP на TTL, поэтому reconciliation
// кэш не использует.
type CachedDirectory struct {
	next  Directory
	cache *expirable.LRU[string, model.Identity]
}

// NewCachedDirectory создаёт кэш с максимальным размером maxSize и TTL записи ttl.
func NewCachedDirectory(next Directory, maxSize int, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:  next,
		cache: expirable.NewLRU[string, model.Identity](maxSize, nil, ttl),
	}
}

// LookupByID возвращает identity из кэша или из IdP.
func (c *CachedDirectory) LookupByID(ctx context.Context, id string) (*model.Identity, error) {
	if ident, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return &ident, nil
	}
	cacheMissesTotal.Inc()

	ident, err := c.next.LookupByID(ctx, id)
	if err != nil || ident == nil {
		return ident, err
	}
	c.cache.Add(id, *ident)
	return ident, nil
}

// FindByEmail делегирует поиск без кэширования.
func (c *CachedDirectory) FindByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return c.next.FindByEmail(ctx, email)
}

// ListIdentities делегирует обход без кэширования.
func (c *CachedDirectory) ListIdentities(ctx context.Context, visit func(page []model.Identity) error) error {
	return c.next.ListIdentities(ctx, visit)
}

// Delete удаляет identity и инвалидирует запись кэша.
func (c *CachedDirectory) Delete(ctx context.Context, id string) error {
	c.cache.Remove(id)
	return c.next.Delete(ctx, id)
}

// ResetPassword делегирует сброс пароля.
func (c *CachedDirectory) ResetPassword(ctx context.Context, id, password string) error {
	return c.next.ResetPassword(ctx, id, password)
}
