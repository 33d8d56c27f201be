package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

// ProfileRepository — интерфейс для таблицы profiles.
type ProfileRepository interface {
	// Get возвращает профиль по ID identity.
	Get(ctx context.Context, id string) (*model.Profile, error)
	// Upsert создаёт профиль или обновляет только заданные поля.
	// Возвращает итоговую строку и признак создания.
	Upsert(ctx context.Context, id string, fields model.ProfileFields) (*model.Profile, bool, error)
	// Delete удаляет профиль.
	Delete(ctx context.Context, id string) error
	// List возвращает профили с ролью user, новые первыми.
	List(ctx context.Context, limit, offset int) ([]*model.Profile, error)
	// Count возвращает количество профилей с ролью user.
	Count(ctx context.Context) (int, error)
}

// profileRepo — реализация ProfileRepository.
type profileRepo struct {
	db DBTX
}

// NewProfileRepository создаёт репозиторий профилей.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepo{db: db}
}

// NULL-колонки читаются как пустые строки.
const profileColumns = `id, COALESCE(email, ''), COALESCE(full_name, ''), role,
	COALESCE(salary, ''), onboarding_status,
	COALESCE(government_id, ''), COALESCE(country, ''), COALESCE(phone, ''),
	COALESCE(company, ''), COALESCE(dolar_tag, ''),
	contract_signed, signed_at, COALESCE(contract_url, ''),
	created_at, updated_at`

func scanProfile(row pgx.Row, extra ...any) (*model.Profile, error) {
	p := &model.Profile{}
	dest := []any{
		&p.ID, &p.Email, &p.FullName, &p.Role,
		&p.Salary, &p.OnboardingStatus,
		&p.GovernmentID, &p.Country, &p.Phone,
		&p.Company, &p.DolarTag,
		&p.ContractSigned, &p.SignedAt, &p.ContractURL,
		&p.CreatedAt, &p.UpdatedAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return p, err
}

func (r *profileRepo) Get(ctx context.Context, id string) (*model.Profile, error) {
	query := fmt.Sprintf(`SELECT %s FROM profiles WHERE id = $1`, profileColumns)
	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, wrapErr("ошибка получения профиля", err)
	}
	return p, nil
}

// Upsert: незаданное поле (NULL-параметр) при вставке получает значение по умолчанию,
// при обновлении сохраняет текущее значение. xmax = 0 у только что вставленной строки.
func (r *profileRepo) Upsert(ctx context.Context, id string, f model.ProfileFields) (*model.Profile, bool, error) {
	query := fmt.Sprintf(`
		INSERT INTO profiles (id, email, full_name, role, salary, onboarding_status,
			government_id, country, phone, company, dolar_tag,
			contract_signed, signed_at, contract_url)
		VALUES ($1, $2, $3, COALESCE($4, 'user'), $5, COALESCE($6, 'pending'),
			$7, $8, $9, $10, $11,
			COALESCE($12, false), $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE($2, profiles.email),
			full_name = COALESCE($3, profiles.full_name),
			role = COALESCE($4, profiles.role),
			salary = COALESCE($5, profiles.salary),
			onboarding_status = COALESCE($6, profiles.onboarding_status),
			government_id = COALESCE($7, profiles.government_id),
			country = COALESCE($8, profiles.country),
			phone = COALESCE($9, profiles.phone),
			company = COALESCE($10, profiles.company),
			dolar_tag = COALESCE($11, profiles.dolar_tag),
			contract_signed = COALESCE($12, profiles.contract_signed),
			signed_at = COALESCE($13, profiles.signed_at),
			contract_url = COALESCE($14, profiles.contract_url)
		RETURNING %s, (xmax = 0)`, profileColumns)

	var created bool
	p, err := scanProfile(r.db.QueryRow(ctx, query,
		id, f.Email, f.FullName, f.Role, f.Salary, f.OnboardingStatus,
		f.GovernmentID, f.Country, f.Phone, f.Company, f.DolarTag,
		f.ContractSigned, f.SignedAt, f.ContractURL,
	), &created)
	if err != nil {
		return nil, false, wrapErr("ошибка upsert профиля", err)
	}
	return p, created, nil
}

func (r *profileRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления профиля: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *profileRepo) List(ctx context.Context, limit, offset int) ([]*model.Profile, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM profiles
		WHERE role <> 'admin'
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`, profileColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка профилей: %w", err)
	}
	defer rows.Close()

	var result []*model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования профиля: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *profileRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE role <> 'admin'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчёта профилей: %w", err)
	}
	return count, nil
}
