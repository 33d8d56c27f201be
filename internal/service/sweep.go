// sweep.go — пакетная сверка всех ожидающих приглашений.
//
// SweepService запускает фоновую горутину с ticker (OP_SWEEP_INTERVAL),
// а также выполняет sweep по запросу (HTTP, CLI).
//
// Sweep:
//  1. Один раз обойти все identity постранично и построить индекс по email
//  2. Обойти приглашения keyset-пагинацией по email
//  3. Для каждого приглашения: нет identity → pending, несколько → ambiguous,
//     одна → reconcile; ошибка одного приглашения не прерывает sweep
//  4. Сохранить итоги в sweep_state
//
// Prometheus-метрики:
//   - onboarding_sweep_duration_seconds — длительность sweep
//   - onboarding_sweep_items_total{outcome} — итоги по приглашениям
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

// ErrSweepInProgress — sweep уже выполняется в этом процессе.
var ErrSweepInProgress = errors.New("sweep уже выполняется")

var (
	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "onboarding_sweep_duration_seconds",
		Help:    "Длительность пакетной сверки приглашений",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s … ~51s
	})
	sweepItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "onboarding_sweep_items_total",
		Help: "Итоги обработки приглашений в sweep",
	}, []string{"outcome"})
)

// SweepService — пакетная сверка приглашений.
type SweepService struct {
	engine     *Engine
	identities IdentityDirectory
	stateRepo  repository.SweepStateRepository
	pageSize   int
	interval   time.Duration
	logger     *slog.Logger

	running sync.Mutex

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweepService создаёт сервис sweep.
// pageSize — размер страницы приглашений, interval — период фонового запуска.
func NewSweepService(
	engine *Engine,
	identities IdentityDirectory,
	stateRepo repository.SweepStateRepository,
	pageSize int,
	interval time.Duration,
	logger *slog.Logger,
) *SweepService {
	if pageSize <= 0 {
		pageSize = 500
	}
	return &SweepService{
		engine:     engine,
		identities: identities,
		stateRepo:  stateRepo,
		pageSize:   pageSize,
		interval:   interval,
		logger:     logger.With(slog.String("component", "invite_sweep")),
	}
}

// Start запускает фоновую горутину с периодическим sweep.
// При interval <= 0 фоновый запуск отключён.
func (s *SweepService) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Периодический sweep отключён")
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		s.logger.Info("Периодический sweep запущен",
			slog.String("interval", s.interval.String()),
		)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Периодический sweep остановлен")
				return
			case <-ticker.C:
				if _, err := s.RunSweep(ctx); err != nil {
					if errors.Is(err, ErrSweepInProgress) {
						s.logger.Debug("Пропуск периодического sweep: предыдущий ещё выполняется")
						continue
					}
					s.logger.Error("Ошибка периодического sweep",
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}()
}

// Stop останавливает фоновую горутину и ждёт завершения.
func (s *SweepService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

// RunSweep выполняет sweep немедленно. Одновременно в процессе выполняется не более одного.
// Повторный запуск безопасен: уже применённые приглашения отсутствуют в хранилище.
func (s *SweepService) RunSweep(ctx context.Context) (*model.SweepReport, error) {
	if !s.running.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.running.Unlock()

	report := &model.SweepReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Items:     []model.SweepItem{},
	}
	logger := s.logger.With(slog.String("run_id", report.RunID))
	logger.Info("Запуск sweep")

	// 1. Индекс identity по нормализованному email
	index, scanned, err := s.buildIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: обход identity: %w", ErrIDPUnavailable, err)
	}
	report.IdentitiesScanned = scanned

	// 2. Приглашения страницами по email
	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := s.engine.ListInvitations(ctx, cursor, s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("получение приглашений после %q: %w", cursor, err)
		}

		for _, inv := range page {
			item := s.processInvitation(ctx, inv, index[inv.Email])
			if item.Outcome == model.SweepFailed {
				logger.Warn("Приглашение не применено",
					slog.String("email", item.Email),
					slog.String("error", item.Error),
				)
			}
			sweepItemsTotal.WithLabelValues(string(item.Outcome)).Inc()
			report.Add(item)
			cursor = inv.Email
		}

		if len(page) < s.pageSize {
			break
		}
	}

	report.CompletedAt = time.Now().UTC()
	sweepDuration.Observe(report.CompletedAt.Sub(report.StartedAt).Seconds())

	// 3. Итоги для отображения статуса
	if err := s.stateRepo.Record(ctx, report); err != nil {
		logger.Warn("Ошибка сохранения sweep_state", slog.String("error", err.Error()))
	}

	logger.Info("Sweep завершён",
		slog.Int("checked", report.Checked),
		slog.Int("applied", report.Applied),
		slog.Int("pending", report.Pending),
		slog.Int("failed", report.Failed),
		slog.Int("ambiguous", report.Ambiguous),
		slog.Int("skipped", report.Skipped),
		slog.Int("identities_scanned", report.IdentitiesScanned),
	)

	return report, nil
}

// LastState возвращает итоги последнего sweep.
func (s *SweepService) LastState(ctx context.Context) (*model.SweepState, error) {
	st, err := s.stateRepo.Get(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	return st, nil
}

// CheckReady оценивает свежесть sweep для /health/ready: "degraded", если
// последний запуск старше трёх интервалов или завершился с failed.
// "fail" не возвращается: недоступность БД видна в проверке PostgreSQL.
func (s *SweepService) CheckReady() (string, string) {
	if s.interval <= 0 {
		return "ok", "периодический sweep отключён"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	st, err := s.LastState(ctx)
	if err != nil {
		return "degraded", fmt.Sprintf("состояние sweep недоступно: %v", err)
	}
	return sweepFreshness(st, s.interval, time.Now())
}

// sweepFreshness — оценка состояния sweep на момент now.
func sweepFreshness(st *model.SweepState, interval time.Duration, now time.Time) (string, string) {
	if st.LastSweepAt == nil {
		return "ok", "sweep ещё не выполнялся"
	}
	age := now.Sub(*st.LastSweepAt)
	if age > 3*interval {
		return "degraded", fmt.Sprintf("последний sweep %s назад", age.Truncate(time.Second))
	}
	if st.LastFailed > 0 {
		return "degraded", fmt.Sprintf("последний sweep: failed=%d", st.LastFailed)
	}
	return "ok", fmt.Sprintf("последний sweep %s назад", age.Truncate(time.Second))
}

// buildIndex обходит все identity и группирует их по нормализованному email.
func (s *SweepService) buildIndex(ctx context.Context) (map[string][]model.Identity, int, error) {
	index := make(map[string][]model.Identity)
	scanned := 0

	err := s.identities.ListIdentities(ctx, func(page []model.Identity) error {
		for _, ident := range page {
			scanned++
			email := model.NormalizeEmail(ident.Email)
			if email == "" {
				continue
			}
			index[email] = append(index[email], ident)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return index, scanned, nil
}

// processInvitation сверяет одно приглашение с найденными для него identity.
func (s *SweepService) processInvitation(ctx context.Context, inv *model.Invitation, matches []model.Identity) model.SweepItem {
	item := model.SweepItem{Email: inv.Email}

	switch len(matches) {
	case 0:
		item.Outcome = model.SweepPending
		return item
	case 1:
	default:
		item.Outcome = model.SweepAmbiguous
		return item
	}

	item.IdentityID = matches[0].ID
	res, err := s.engine.ReconcileIdentity(ctx, model.TriggerSweep, matches[0])
	if err != nil {
		item.Outcome = model.SweepFailed
		item.Error = err.Error()
		return item
	}

	switch res.Reason {
	case model.ReasonApplied:
		item.Outcome = model.SweepApplied
	case model.ReasonNoInvitation, model.ReasonAlreadyRetired:
		// Приглашение удалено или применено другим триггером после чтения страницы
		item.Outcome = model.SweepSkipped
	default:
		item.Outcome = model.SweepPending
	}
	return item
}
