// dto.go — JSON-представления ответов API и маппинг domain → API.
package handlers

import (
	"time"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

type invitationDTO struct {
	Email     string    `json:"email"`
	Salary    string    `json:"salary"`
	Role      string    `json:"role"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type reconcileDTO struct {
	Applied        bool   `json:"applied"`
	Reason         string `json:"reason"`
	IdentityID     string `json:"identity_id,omitempty"`
	ProfileCreated bool   `json:"profile_created,omitempty"`
}

type createInvitationResponse struct {
	Invitation invitationDTO `json:"invitation"`
	Reconcile  *reconcileDTO `json:"reconcile"`
	Warning    string        `json:"warning,omitempty"`
}

type invitationListResponse struct {
	Items   []invitationDTO `json:"items"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	HasMore bool            `json:"has_more"`
	// NextAfter — курсор следующей страницы (email последнего элемента)
	NextAfter string `json:"next_after,omitempty"`
}

type sweepItemDTO struct {
	Email      string `json:"email"`
	IdentityID string `json:"identity_id,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

type sweepReportDTO struct {
	RunID             string         `json:"run_id"`
	Checked           int            `json:"checked"`
	Applied           int            `json:"applied"`
	Pending           int            `json:"pending"`
	Failed            int            `json:"failed"`
	Ambiguous         int            `json:"ambiguous"`
	Skipped           int            `json:"skipped"`
	IdentitiesScanned int            `json:"identities_scanned"`
	StartedAt         time.Time      `json:"started_at"`
	CompletedAt       time.Time      `json:"completed_at"`
	Items             []sweepItemDTO `json:"items"`
}

type profileDTO struct {
	ID               string     `json:"id"`
	Email            string     `json:"email,omitempty"`
	FullName         string     `json:"full_name,omitempty"`
	Role             string     `json:"role"`
	Salary           string     `json:"salary,omitempty"`
	OnboardingStatus string     `json:"onboarding_status"`
	GovernmentID     string     `json:"government_id,omitempty"`
	Country          string     `json:"country,omitempty"`
	Phone            string     `json:"phone,omitempty"`
	Company          string     `json:"company,omitempty"`
	DolarTag         string     `json:"dolar_tag,omitempty"`
	ContractSigned   bool       `json:"contract_signed"`
	SignedAt         *time.Time `json:"signed_at,omitempty"`
	ContractURL      string     `json:"contract_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type accessResponse struct {
	Granted   bool          `json:"granted"`
	Profile   *profileDTO   `json:"profile"`
	Reconcile *reconcileDTO `json:"reconcile,omitempty"`
}

type profileListResponse struct {
	Items   []profileDTO `json:"items"`
	Total   int          `json:"total"`
	Limit   int          `json:"limit"`
	Offset  int          `json:"offset"`
	HasMore bool         `json:"has_more"`
}

type deleteProfileResponse struct {
	IdentityDeleted bool   `json:"identity_deleted"`
	Warning         string `json:"warning,omitempty"`
}

type statusResponse struct {
	Connected          bool            `json:"connected"`
	Realm              string          `json:"realm"`
	KeycloakURL        string          `json:"keycloak_url"`
	UsersCount         *int            `json:"users_count,omitempty"`
	PendingInvitations *int            `json:"pending_invitations,omitempty"`
	LastSweepAt        *time.Time      `json:"last_sweep_at,omitempty"`
	LastSweepApplied   int             `json:"last_sweep_applied"`
	LastSweepPending   int             `json:"last_sweep_pending"`
	LastSweepFailed    int             `json:"last_sweep_failed"`
	Dependencies       map[string]bool `json:"dependencies,omitempty"`
	Error              *string         `json:"error,omitempty"`
}

// --- Маппинг domain → API ---

func mapInvitation(inv *model.Invitation) invitationDTO {
	return invitationDTO{
		Email:     inv.Email,
		Salary:    inv.Salary,
		Role:      inv.Role,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

func mapReconcile(r *model.ReconcileResult) *reconcileDTO {
	if r == nil {
		return nil
	}
	return &reconcileDTO{
		Applied:        r.Applied,
		Reason:         string(r.Reason),
		IdentityID:     r.IdentityID,
		ProfileCreated: r.ProfileCreated,
	}
}

func mapSweepReport(r *model.SweepReport) sweepReportDTO {
	items := make([]sweepItemDTO, len(r.Items))
	for i, it := range r.Items {
		items[i] = sweepItemDTO{
			Email:      it.Email,
			IdentityID: it.IdentityID,
			Outcome:    string(it.Outcome),
			Error:      it.Error,
		}
	}
	return sweepReportDTO{
		RunID:             r.RunID,
		Checked:           r.Checked,
		Applied:           r.Applied,
		Pending:           r.Pending,
		Failed:            r.Failed,
		Ambiguous:         r.Ambiguous,
		Skipped:           r.Skipped,
		IdentitiesScanned: r.IdentitiesScanned,
		StartedAt:         r.StartedAt,
		CompletedAt:       r.CompletedAt,
		Items:             items,
	}
}

func mapProfile(p *model.Profile) *profileDTO {
	if p == nil {
		return nil
	}
	return &profileDTO{
		ID:               p.ID,
		Email:            p.Email,
		FullName:         p.FullName,
		Role:             p.Role,
		Salary:           p.Salary,
		OnboardingStatus: p.OnboardingStatus,
		GovernmentID:     p.GovernmentID,
		Country:          p.Country,
		Phone:            p.Phone,
		Company:          p.Company,
		DolarTag:         p.DolarTag,
		ContractSigned:   p.ContractSigned,
		SignedAt:         p.SignedAt,
		ContractURL:      p.ContractURL,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func mapStatus(s *service.Status) statusResponse {
	return statusResponse{
		Connected:          s.Connected,
		Realm:              s.Realm,
		KeycloakURL:        s.KeycloakURL,
		UsersCount:         s.UsersCount,
		PendingInvitations: s.PendingInvitations,
		LastSweepAt:        s.LastSweepAt,
		LastSweepApplied:   s.LastSweepApplied,
		LastSweepPending:   s.LastSweepPending,
		LastSweepFailed:    s.LastSweepFailed,
		Dependencies:       s.Dependencies,
		Error:              s.Error,
	}
}
