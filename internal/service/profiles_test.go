package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
)

var validStep = ProfileStepInput{
	FullName:     "Alice A",
	GovernmentID: "12345678",
	Country:      "AR",
	Phone:        "+5491100000",
	Company:      "ACME",
}

func TestSaveProfileStep_CreatesStartedProfile(t *testing.T) {
	f := newFixture(alice)

	p, err := f.profileSvc.SaveProfileStep(context.Background(), alice.ID, " Alice@Example.com ", validStep)
	require.NoError(t, err)
	require.Equal(t, model.OnboardingStarted, p.OnboardingStatus)
	require.Equal(t, "alice@example.com", p.Email)
	require.Equal(t, "user", p.Role)
	require.Empty(t, p.Salary)
}

func TestSaveProfileStep_KeepsSalaryAndCompletedStatus(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()
	salary, status := "2000", model.OnboardingCompleted
	_, _, err := f.profiles.Upsert(ctx, alice.ID, model.ProfileFields{Salary: &salary, OnboardingStatus: &status})
	require.NoError(t, err)

	p, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
	require.NoError(t, err)
	require.Equal(t, "2000", p.Salary)
	require.Equal(t, model.OnboardingCompleted, p.OnboardingStatus)
}

func TestSaveProfileStep_Validation(t *testing.T) {
	f := newFixture(alice)

	in := validStep
	in.Phone = "123"
	in.FullName = " A "
	_, err := f.profileSvc.SaveProfileStep(context.Background(), alice.ID, alice.Email, in)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "full_name, phone")
	require.Zero(t, f.profiles.mutationsOf(alice.ID))
}

func TestSaveFinancialStep(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		want    string
		wantErr bool
	}{
		{name: "добавляет префикс", tag: "alice_1", want: "$alice_1"},
		{name: "префикс уже есть", tag: "$alice", want: "$alice"},
		{name: "пробелы по краям", tag: "  bob ", want: "$bob"},
		{name: "недопустимые символы", tag: "ali ce", wantErr: true},
		{name: "$ в середине", tag: "ab$c", wantErr: true},
		{name: "двойной префикс", tag: "$$ab", wantErr: true},
		{name: "слишком короткий", tag: "a", wantErr: true},
		{name: "пустой", tag: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(alice)
			ctx := context.Background()
			_, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
			require.NoError(t, err)

			p, err := f.profileSvc.SaveFinancialStep(ctx, alice.ID, tt.tag)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, p.DolarTag)
		})
	}
}

func TestSaveFinancialStep_NoProfile(t *testing.T) {
	f := newFixture(alice)

	_, err := f.profileSvc.SaveFinancialStep(context.Background(), alice.ID, "$alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLegalStep(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()
	_, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
	require.NoError(t, err)

	_, err = f.profileSvc.SaveLegalStep(ctx, alice.ID, "https://docs.example.com/c/1", time.Now())
	require.ErrorIs(t, err, ErrAccessDenied, "без salary договор не подписывается")

	invite(t, f, alice.Email, "2000", "user")
	_, err = f.engine.ReconcileByIdentity(ctx, model.TriggerClaimOnAccess, alice.ID)
	require.NoError(t, err)

	_, err = f.profileSvc.SaveLegalStep(ctx, alice.ID, "  ", time.Now())
	require.ErrorIs(t, err, ErrValidation)

	signedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p, err := f.profileSvc.SaveLegalStep(ctx, alice.ID, "https://docs.example.com/c/1", signedAt)
	require.NoError(t, err)
	require.True(t, p.ContractSigned)
	require.Equal(t, model.OnboardingCompleted, p.OnboardingStatus)
	require.NotNil(t, p.SignedAt)
	require.True(t, signedAt.Equal(*p.SignedAt))
}

func TestOverride(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()
	_, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
	require.NoError(t, err)

	salary := " 3000 "
	p, err := f.profileSvc.Override(ctx, alice.ID, ProfileOverride{Salary: &salary}, "admin")
	require.NoError(t, err)
	require.Equal(t, "3000", p.Salary)
	require.Equal(t, "user", p.Role)

	role := "Admin"
	p, err = f.profileSvc.Override(ctx, alice.ID, ProfileOverride{Role: &role}, "admin")
	require.NoError(t, err)
	require.Equal(t, "admin", p.Role)
	require.Equal(t, "3000", p.Salary)

	bad := "owner"
	_, err = f.profileSvc.Override(ctx, alice.ID, ProfileOverride{Role: &bad}, "admin")
	require.ErrorIs(t, err, ErrInvalidRole)

	empty := ""
	_, err = f.profileSvc.Override(ctx, alice.ID, ProfileOverride{Salary: &empty}, "admin")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.profileSvc.Override(ctx, alice.ID, ProfileOverride{}, "admin")
	require.ErrorIs(t, err, ErrValidation)

	_, err = f.profileSvc.Override(ctx, "id-unknown", ProfileOverride{Salary: &salary}, "admin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_ExcludesAdmins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	role := "admin"
	_, _, err := f.profiles.Upsert(ctx, "id-a", model.ProfileFields{})
	require.NoError(t, err)
	_, _, err = f.profiles.Upsert(ctx, "id-b", model.ProfileFields{Role: &role})
	require.NoError(t, err)

	list, total, err := f.profileSvc.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "id-a", list[0].ID)
}

func TestDelete_IdentityDeleteBestEffort(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()
	_, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
	require.NoError(t, err)
	f.dir.deleteErr = errStoreDown

	res, err := f.profileSvc.Delete(ctx, alice.ID, "admin")
	require.NoError(t, err)
	require.False(t, res.IdentityDeleted)
	require.NotEmpty(t, res.Warning)

	_, err = f.profileSvc.Get(ctx, alice.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.profileSvc.Delete(ctx, alice.ID, "admin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RemovesIdentity(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()
	_, err := f.profileSvc.SaveProfileStep(ctx, alice.ID, alice.Email, validStep)
	require.NoError(t, err)

	res, err := f.profileSvc.Delete(ctx, alice.ID, "admin")
	require.NoError(t, err)
	require.True(t, res.IdentityDeleted)
	require.Equal(t, []string{alice.ID}, f.dir.deleted)
}

func TestResetPassword(t *testing.T) {
	f := newFixture(alice)
	ctx := context.Background()

	require.ErrorIs(t, f.profileSvc.ResetPassword(ctx, alice.ID, "12345", "admin"), ErrValidation)
	require.ErrorIs(t, f.profileSvc.ResetPassword(ctx, "id-unknown", "secret1", "admin"), ErrNotFound)

	require.NoError(t, f.profileSvc.ResetPassword(ctx, alice.ID, "секрет", "admin"))
	require.Equal(t, "секрет", f.dir.passwords[alice.ID])

	f.dir.lookupErr = errStoreDown
	require.ErrorIs(t, f.profileSvc.ResetPassword(ctx, alice.ID, "secret1", "admin"), ErrIDPUnavailable)
}
