package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// InvitationRepository — интерфейс для таблицы invitations.
// Ключ — нормализованный email, вызывающая сторона нормализует его сама.
type InvitationRepository interface {
	// Get возвращает приглашение по email.
	Get(ctx context.Context, email string) (*model.Invitation, error)
	// Upsert создаёт или полностью заменяет приглашение.
	Upsert(ctx context.Context, inv *model.Invitation) error
	// DeleteIfExists удаляет приглашение. Возвращает false, если строки не было.
	DeleteIfExists(ctx context.Context, email string) (bool, error)
	// ListAfter возвращает до limit приглашений с email > after в порядке email.
	ListAfter(ctx context.Context, after string, limit int) ([]*model.Invitation, error)
	// Count возвращает количество живых приглашений.
	Count(ctx context.Context) (int, error)
}

// invitationRepo — реализация InvitationRepository.
type invitationRepo struct {
	db DBTX
}

// NewInvitationRepository создаёт репозиторий приглашений.
func NewInvitationRepository(db DBTX) InvitationRepository {
	return &invitationRepo{db: db}
}

const invColumns = `email, salary, role, created_by, created_at, updated_at`

func scanInvitation(row pgx.Row) (*model.Invitation, error) {
	inv := &model.Invitation{}
	err := row.Scan(&inv.Email, &inv.Salary, &inv.Role, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *invitationRepo) Get(ctx context.Context, email string) (*model.Invitation, error) {
	query := fmt.Sprintf(`SELECT %s FROM invitations WHERE email = $1`, invColumns)
	inv, err := scanInvitation(r.db.QueryRow(ctx, query, email))
	if err != nil {
		return nil, wrapErr("ошибка получения приглашения", err)
	}
	return inv, nil
}

func (r *invitationRepo) Upsert(ctx context.Context, inv *model.Invitation) error {
	query := `
		INSERT INTO invitations (email, salary, role, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			salary = EXCLUDED.salary,
			role = EXCLUDED.role,
			created_by = EXCLUDED.created_by
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		inv.Email, inv.Salary, inv.Role, inv.CreatedBy,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return wrapErr("ошибка upsert приглашения", err)
	}
	return nil
}

func (r *invitationRepo) DeleteIfExists(ctx context.Context, email string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM invitations WHERE email = $1`, email)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления приглашения: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *invitationRepo) ListAfter(ctx context.Context, after string, limit int) ([]*model.Invitation, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM invitations
		WHERE email > $1
		ORDER BY email
		LIMIT $2`, invColumns)

	rows, err := r.db.Query(ctx, query, after, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка приглашений: %w", err)
	}
	defer rows.Close()

	var result []*model.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования приглашения: %w", err)
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (r *invitationRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invitations`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта приглашений: %w", err)
	}
	return count, nil
}
