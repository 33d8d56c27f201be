package model

import "time"

// Trigger — точка входа, запустившая reconciliation.
type Trigger string

const (
	// TriggerAdminCreate — администратор создал приглашение.
	TriggerAdminCreate Trigger = "admin_create"
	// TriggerClaimOnAccess — пользователь без доступа открыл защищённую область.
	TriggerClaimOnAccess Trigger = "claim_on_access"
	// TriggerSweep — пакетный обход всех приглашений.
	TriggerSweep Trigger = "sweep"
)

// Reason — итог одного вызова reconciliation.
type Reason string

const (
	ReasonApplied        Reason = "applied"
	ReasonNoIdentity     Reason = "no_identity"
	ReasonNoInvitation   Reason = "no_invitation"
	ReasonAmbiguousMatch Reason = "ambiguous_match"
	// ReasonAlreadyRetired — приглашение удалено конкурентом между apply и retire.
	ReasonAlreadyRetired Reason = "already_retired"
)

// ReconcileResult — результат reconcile для одной identity.
type ReconcileResult struct {
	Applied    bool
	Reason     Reason
	IdentityID string
	Email      string
	// Salary, Role — применённые значения (только при Applied)
	Salary string
	Role   string
	// ProfileCreated — профиль создан синтетически при применении
	ProfileCreated bool
}

// SweepOutcome — итог обработки одного приглашения в sweep.
type SweepOutcome string

const (
	SweepApplied   SweepOutcome = "applied"
	SweepPending   SweepOutcome = "pending"
	SweepFailed    SweepOutcome = "failed"
	SweepAmbiguous SweepOutcome = "ambiguous"
	// SweepSkipped — приглашение исчезло до обработки (удалено или применено другим триггером).
	SweepSkipped SweepOutcome = "skipped"
)

// SweepItem — строка отчёта sweep по одному приглашению.
type SweepItem struct {
	Email      string
	IdentityID string
	Outcome    SweepOutcome
	Error      string
}

// SweepReport — отчёт пакетного sweep.
type SweepReport struct {
	// RunID — UUID запуска, для корреляции логов
	RunID             string
	Checked           int
	Applied           int
	Pending           int
	Failed            int
	Ambiguous         int
	Skipped           int
	IdentitiesScanned int
	Items             []SweepItem
	StartedAt         time.Time
	CompletedAt       time.Time
}

// Add учитывает строку в итогах отчёта.
func (r *SweepReport) Add(item SweepItem) {
	r.Checked++
	switch item.Outcome {
	case SweepApplied:
		r.Applied++
	case SweepPending:
		r.Pending++
	case SweepFailed:
		r.Failed++
	case SweepAmbiguous:
		r.Ambiguous++
	case SweepSkipped:
		r.Skipped++
	}
	r.Items = append(r.Items, item)
}

// SweepState — состояние последнего sweep (одна строка в БД, id = 1).
type SweepState struct {
	ID          int
	LastSweepAt *time.Time
	LastChecked int
	LastApplied int
	LastPending int
	LastFailed  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
