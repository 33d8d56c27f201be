package model

import "time"

// Статусы онбординга.
const (
	OnboardingPending   = "pending"
	OnboardingStarted   = "started"
	OnboardingCompleted = "completed"
)

// Profile — данные онбординга сотрудника и его действующие salary/role.
// Хранится в таблице profiles, 1:1 с Identity.
type Profile struct {
	ID               string
	Email            string
	FullName         string
	Role             string
	Salary           string
	OnboardingStatus string

	// --- Шаг профиля ---

	GovernmentID string
	Country      string
	Phone        string
	Company      string

	// --- Финансовый шаг ---

	DolarTag string

	// --- Договор ---

	ContractSigned bool
	SignedAt       *time.Time
	ContractURL    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileFields — частичное обновление профиля.
// nil-поле не изменяется; при создании строки берётся значение по умолчанию.
type ProfileFields struct {
	Email            *string
	FullName         *string
	Role             *string
	Salary           *string
	OnboardingStatus *string
	GovernmentID     *string
	Country          *string
	Phone            *string
	Company          *string
	DolarTag         *string
	ContractSigned   *bool
	SignedAt         *time.Time
	ContractURL      *string
}

// IsEmpty возвращает true, если ни одно поле не задано.
func (f ProfileFields) IsEmpty() bool {
	return f.Email == nil && f.FullName == nil && f.Role == nil && f.Salary == nil &&
		f.OnboardingStatus == nil && f.GovernmentID == nil && f.Country == nil &&
		f.Phone == nil && f.Company == nil && f.DolarTag == nil &&
		f.ContractSigned == nil && f.SignedAt == nil && f.ContractURL == nil
}
