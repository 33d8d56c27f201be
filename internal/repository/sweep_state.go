package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// SweepStateRepository — интерфейс для таблицы sweep_state (одна строка).
type SweepStateRepository interface {
	// Get возвращает итоги последнего sweep.
	Get(ctx context.Context) (*model.SweepState, error)
	// Record сохраняет время завершения и итоги sweep.
	Record(ctx context.Context, report *model.SweepReport) error
}

// sweepStateRepo — реализация SweepStateRepository.
type sweepStateRepo struct {
	db DBTX
}

// NewSweepStateRepository создаёт репозиторий состояния sweep.
func NewSweepStateRepository(db DBTX) SweepStateRepository {
	return &sweepStateRepo{db: db}
}

func (r *sweepStateRepo) Get(ctx context.Context) (*model.SweepState, error) {
	query := `
		SELECT id, last_sweep_at, last_checked, last_applied, last_pending, last_failed,
			created_at, updated_at
		FROM sweep_state
		WHERE id = 1`

	s := &model.SweepState{}
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.LastSweepAt, &s.LastChecked, &s.LastApplied, &s.LastPending, &s.LastFailed,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения sweep_state: %w", err)
	}
	return s, nil
}

func (r *sweepStateRepo) Record(ctx context.Context, report *model.SweepReport) error {
	query := `
		UPDATE sweep_state SET
			last_sweep_at = $1,
			last_checked = $2,
			last_applied = $3,
			last_pending = $4,
			last_failed = $5
		WHERE id = 1`

	_, err := r.db.Exec(ctx, query,
		report.CompletedAt, report.Checked, report.Applied, report.Pending, report.Failed,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления sweep_state: %w", err)
	}
	return nil
}
