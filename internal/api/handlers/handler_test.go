package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/onboarding-portal/internal/api/errors"
	"github.com/bigkaa/onboarding-portal/internal/api/middleware"
	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/service"
)

// --- Заглушки сервисов ---

type stubInvitations struct {
	createRes  *service.CreateInvitationResult
	createErr  error
	gotActor   string
	list       []*model.Invitation
	total      int
	gotAfter   string
	gotLimit   int
	deleteErr  error
	gotDeleted string
}

func (s *stubInvitations) Create(_ context.Context, email, salary, role, createdBy string) (*service.CreateInvitationResult, error) {
	s.gotActor = createdBy
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.createRes != nil {
		return s.createRes, nil
	}
	return &service.CreateInvitationResult{
		Invitation: &model.Invitation{Email: strings.ToLower(email), Salary: salary, Role: role, CreatedBy: createdBy},
	}, nil
}

func (s *stubInvitations) List(_ context.Context, after string, limit int) ([]*model.Invitation, int, error) {
	s.gotAfter, s.gotLimit = after, limit
	return s.list, s.total, nil
}

func (s *stubInvitations) Delete(_ context.Context, email string) error {
	s.gotDeleted = email
	return s.deleteErr
}

type stubSweeper struct {
	report *model.SweepReport
	err    error
}

func (s *stubSweeper) RunSweep(context.Context) (*model.SweepReport, error) {
	return s.report, s.err
}

type stubAccess struct {
	res *service.AccessResult
	err error
}

func (s *stubAccess) Check(context.Context, string) (*service.AccessResult, error) {
	return s.res, s.err
}

type stubProfiles struct {
	profile   *model.Profile
	err       error
	deleteRes *service.DeleteResult
	gotStep   service.ProfileStepInput
	gotEmail  string
	gotOver   service.ProfileOverride
	gotPass   string
}

func (s *stubProfiles) Get(context.Context, string) (*model.Profile, error) {
	return s.profile, s.err
}

func (s *stubProfiles) SaveProfileStep(_ context.Context, _, email string, in service.ProfileStepInput) (*model.Profile, error) {
	s.gotStep, s.gotEmail = in, email
	return s.profile, s.err
}

func (s *stubProfiles) SaveFinancialStep(context.Context, string, string) (*model.Profile, error) {
	return s.profile, s.err
}

func (s *stubProfiles) SaveLegalStep(context.Context, string, string, time.Time) (*model.Profile, error) {
	return s.profile, s.err
}

func (s *stubProfiles) List(context.Context, int, int) ([]*model.Profile, int, error) {
	if s.profile == nil {
		return nil, 0, s.err
	}
	return []*model.Profile{s.profile}, 3, s.err
}

func (s *stubProfiles) Override(_ context.Context, _ string, o service.ProfileOverride, _ string) (*model.Profile, error) {
	s.gotOver = o
	return s.profile, s.err
}

func (s *stubProfiles) Delete(context.Context, string, string) (*service.DeleteResult, error) {
	return s.deleteRes, s.err
}

func (s *stubProfiles) ResetPassword(_ context.Context, _, password, _ string) error {
	s.gotPass = password
	return s.err
}

type stubStatus struct{}

func (stubStatus) GetStatus(context.Context) *service.Status {
	n := 2
	return &service.Status{Connected: true, Realm: "onboarding", PendingInvitations: &n}
}

// --- Сборка ---

type testEnv struct {
	inv      *stubInvitations
	sweeper  *stubSweeper
	access   *stubAccess
	profiles *stubProfiles
	router   http.Handler
	isAdmin  bool
}

func newTestEnv() *testEnv {
	env := &testEnv{
		inv:      &stubInvitations{},
		sweeper:  &stubSweeper{},
		access:   &stubAccess{},
		profiles: &stubProfiles{},
		isAdmin:  true,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewAPIHandler(env.inv, env.sweeper, env.access, env.profiles, stubStatus{}, logger)

	requireAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !env.isAdmin {
				apierrors.Forbidden(w, "Недостаточно прав: требуется роль admin")
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		h.Routes(r, requireAdmin)
	})
	env.router = r
	return env
}

// do выполняет запрос от имени пользователя alice.
func (env *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req = req.WithContext(middleware.ContextWithClaims(req.Context(), &middleware.AuthClaims{
		Subject:           "id-alice",
		PreferredUsername: "alice",
		Email:             "Alice@Example.com",
	}))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("тело ошибки не JSON: %v (%s)", err, rec.Body.String())
	}
	return body.Error.Code
}

// --- Приглашения ---

func TestCreateInvitation(t *testing.T) {
	env := newTestEnv()
	env.inv.createRes = &service.CreateInvitationResult{
		Invitation: &model.Invitation{Email: "bob@example.com", Salary: "1500", Role: "user"},
		Reconcile:  &model.ReconcileResult{Applied: true, Reason: model.ReasonApplied, IdentityID: "id-bob"},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/invitations", `{"email":"Bob@Example.com","salary":"1500","role":"user"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался статус 201, получен %d: %s", rec.Code, rec.Body.String())
	}
	if env.inv.gotActor != "alice" {
		t.Errorf("created_by = %q, хотели alice", env.inv.gotActor)
	}

	var resp createInvitationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reconcile == nil || !resp.Reconcile.Applied || resp.Reconcile.Reason != "applied" {
		t.Errorf("reconcile = %+v, хотели applied", resp.Reconcile)
	}
}

func TestCreateInvitation_Warning(t *testing.T) {
	env := newTestEnv()
	env.inv.createRes = &service.CreateInvitationResult{
		Invitation: &model.Invitation{Email: "bob@example.com", Salary: "1500", Role: "user"},
		Warning:    "приглашение сохранено; Identity Provider недоступен",
	}

	rec := env.do(t, http.MethodPost, "/api/v1/invitations", `{"email":"bob@example.com","salary":"1500"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался статус 201, получен %d", rec.Code)
	}
	var resp createInvitationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Warning == "" || resp.Reconcile != nil {
		t.Errorf("ожидался warning без reconcile, получено %+v", resp)
	}
}

func TestCreateInvitation_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		status   int
		code     string
		notAdmin bool
	}{
		{name: "невалидный JSON", body: `{`, status: http.StatusBadRequest, code: apierrors.CodeValidationError},
		{name: "неизвестное поле", body: `{"email":"a@b.c","bonus":1}`, status: http.StatusBadRequest, code: apierrors.CodeValidationError},
		{name: "ошибка валидации", body: `{"email":"x"}`, err: fmt.Errorf("%w: некорректный email", service.ErrValidation), status: http.StatusBadRequest, code: apierrors.CodeValidationError},
		{name: "недопустимая роль", body: `{"email":"a@b.c","salary":"1","role":"owner"}`, err: service.ErrInvalidRole, status: http.StatusBadRequest, code: apierrors.CodeValidationError},
		{name: "хранилище недоступно", body: `{"email":"a@b.c","salary":"1"}`, err: fmt.Errorf("%w: boom", service.ErrStoreUnavailable), status: http.StatusServiceUnavailable, code: apierrors.CodeStoreUnavailable},
		{name: "не администратор", body: `{"email":"a@b.c","salary":"1"}`, notAdmin: true, status: http.StatusForbidden, code: apierrors.CodeForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.inv.createErr = tt.err
			env.isAdmin = !tt.notAdmin

			rec := env.do(t, http.MethodPost, "/api/v1/invitations", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("ожидался статус %d, получен %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("code = %q, хотели %q", code, tt.code)
			}
		})
	}
}

func TestListInvitations(t *testing.T) {
	env := newTestEnv()
	env.inv.list = []*model.Invitation{{Email: "a@x.com"}, {Email: "b@x.com"}}
	env.inv.total = 5

	rec := env.do(t, http.MethodGet, "/api/v1/invitations?after=0@x.com&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	if env.inv.gotAfter != "0@x.com" || env.inv.gotLimit != 2 {
		t.Errorf("after=%q limit=%d", env.inv.gotAfter, env.inv.gotLimit)
	}

	var resp invitationListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 5 || !resp.HasMore || resp.NextAfter != "b@x.com" || len(resp.Items) != 2 {
		t.Errorf("неожиданный ответ: %+v", resp)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/invitations?limit=abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400 для limit=abc, получен %d", rec.Code)
	}
}

func TestDeleteInvitation(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodDelete, "/api/v1/invitations/bob%40example.com", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d", rec.Code)
	}
	if env.inv.gotDeleted != "bob@example.com" {
		t.Errorf("удалён %q, хотели bob@example.com", env.inv.gotDeleted)
	}

	env.inv.deleteErr = service.ErrNotFound
	rec = env.do(t, http.MethodDelete, "/api/v1/invitations/bob@example.com", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", rec.Code)
	}
}

func TestRunSweep(t *testing.T) {
	env := newTestEnv()
	env.sweeper.report = &model.SweepReport{
		RunID: "run-1", Checked: 3, Applied: 1, Pending: 1, Failed: 1,
		Items: []model.SweepItem{{Email: "bob@example.com", Outcome: model.SweepFailed, Error: "boom"}},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/invitations/sweep", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp sweepReportDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Failed != 1 || len(resp.Items) != 1 || resp.Items[0].Outcome != "failed" {
		t.Errorf("неожиданный отчёт: %+v", resp)
	}

	env.sweeper.err = service.ErrSweepInProgress
	rec = env.do(t, http.MethodPost, "/api/v1/invitations/sweep", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != apierrors.CodeSweepInProgress {
		t.Errorf("ожидался 409 SWEEP_IN_PROGRESS, получен %d %s", rec.Code, rec.Body.String())
	}
}

// --- Самообслуживание ---

func TestGetAccess(t *testing.T) {
	tests := []struct {
		name   string
		res    *service.AccessResult
		err    error
		status int
		code   string
	}{
		{
			name: "доступ по приглашению",
			res: &service.AccessResult{
				Granted:   true,
				Profile:   &model.Profile{ID: "id-alice", Salary: "2000", Role: "user"},
				Reconcile: &model.ReconcileResult{Applied: true, Reason: model.ReasonApplied},
			},
			status: http.StatusOK,
		},
		{
			name:   "нет приглашения",
			res:    &service.AccessResult{Reconcile: &model.ReconcileResult{Reason: model.ReasonNoInvitation}},
			status: http.StatusForbidden,
			code:   apierrors.CodeAccessDenied,
		},
		{
			name:   "claim не удался",
			res:    &service.AccessResult{Granted: false},
			status: http.StatusForbidden,
			code:   apierrors.CodeAccessDenied,
		},
		{
			name:   "профиль не прочитан",
			err:    fmt.Errorf("%w: timeout", service.ErrStoreUnavailable),
			status: http.StatusServiceUnavailable,
			code:   apierrors.CodeStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.access.res, env.access.err = tt.res, tt.err

			rec := env.do(t, http.MethodGet, "/api/v1/me/access", "")
			if rec.Code != tt.status {
				t.Fatalf("ожидался статус %d, получен %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.code != "" {
				if code := errorCode(t, rec); code != tt.code {
					t.Errorf("code = %q, хотели %q", code, tt.code)
				}
			}
		})
	}
}

func TestGetAccess_NoClaims(t *testing.T) {
	env := newTestEnv()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/access", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestSaveProfileStep(t *testing.T) {
	env := newTestEnv()
	env.profiles.profile = &model.Profile{ID: "id-alice", OnboardingStatus: model.OnboardingStarted}

	rec := env.do(t, http.MethodPut, "/api/v1/me/profile",
		`{"full_name":"Alice A","government_id":"12345678","country":"AR","phone":"+5491100000","company":"ACME"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
	if env.profiles.gotStep.FullName != "Alice A" || env.profiles.gotEmail != "Alice@Example.com" {
		t.Errorf("в сервис переданы %+v, email %q", env.profiles.gotStep, env.profiles.gotEmail)
	}
}

func TestGetMyProfile(t *testing.T) {
	env := newTestEnv()
	env.profiles.err = service.ErrNotFound

	rec := env.do(t, http.MethodGet, "/api/v1/me/profile", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("ожидался статус 404 без профиля, получен %d", rec.Code)
	}

	env.profiles.err = nil
	env.profiles.profile = &model.Profile{ID: "id-alice", FullName: "Alice A", OnboardingStatus: model.OnboardingStarted}
	rec = env.do(t, http.MethodGet, "/api/v1/me/profile", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp profileDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.FullName != "Alice A" || resp.OnboardingStatus != "started" {
		t.Errorf("неожиданный профиль: %+v", resp)
	}
}

func TestSaveLegalStep_AccessDenied(t *testing.T) {
	env := newTestEnv()
	env.profiles.err = service.ErrAccessDenied

	rec := env.do(t, http.MethodPut, "/api/v1/me/legal", `{"contract_url":"https://docs/c/1"}`)
	if rec.Code != http.StatusForbidden || errorCode(t, rec) != apierrors.CodeAccessDenied {
		t.Errorf("ожидался 403 ACCESS_DENIED, получен %d %s", rec.Code, rec.Body.String())
	}
}

func TestSaveFinancialStep_Validation(t *testing.T) {
	env := newTestEnv()
	env.profiles.err = fmt.Errorf("%w: dolar_tag", service.ErrValidation)

	rec := env.do(t, http.MethodPut, "/api/v1/me/financial", `{"dolar_tag":"a b"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400, получен %d", rec.Code)
	}
}

// --- Профили (admin) ---

func TestListProfiles(t *testing.T) {
	env := newTestEnv()
	env.profiles.profile = &model.Profile{ID: "id-bob", Role: "user"}

	rec := env.do(t, http.MethodGet, "/api/v1/profiles?limit=1&offset=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp profileListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 || !resp.HasMore || resp.Offset != 1 || len(resp.Items) != 1 {
		t.Errorf("неожиданный ответ: %+v", resp)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/profiles?offset=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("ожидался статус 400 для offset=-1, получен %d", rec.Code)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	env.profiles.profile = &model.Profile{ID: "id-bob", Role: "admin", Salary: "3000"}

	rec := env.do(t, http.MethodPut, "/api/v1/profiles/id-bob", `{"role":"admin"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	if env.profiles.gotOver.Salary != nil || env.profiles.gotOver.Role == nil || *env.profiles.gotOver.Role != "admin" {
		t.Errorf("в сервис передано %+v", env.profiles.gotOver)
	}

	env.profiles.err = service.ErrNotFound
	rec = env.do(t, http.MethodPut, "/api/v1/profiles/id-ghost", `{"salary":"1"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("ожидался статус 404, получен %d", rec.Code)
	}
}

func TestDeleteProfile_Warning(t *testing.T) {
	env := newTestEnv()
	env.profiles.deleteRes = &service.DeleteResult{Warning: "учётная запись не удалена"}

	rec := env.do(t, http.MethodDelete, "/api/v1/profiles/id-bob", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp deleteProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.IdentityDeleted || resp.Warning == "" {
		t.Errorf("неожиданный ответ: %+v", resp)
	}
}

func TestResetPassword(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/v1/profiles/id-bob/password", `{"password":"secret1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d", rec.Code)
	}
	if env.profiles.gotPass != "secret1" {
		t.Errorf("пароль %q не передан в сервис", env.profiles.gotPass)
	}

	env.isAdmin = false
	rec = env.do(t, http.MethodPost, "/api/v1/profiles/id-bob/password", `{"password":"secret1"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("ожидался статус 403 без роли admin, получен %d", rec.Code)
	}
}

func TestGetStatus(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	var resp statusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Connected || resp.PendingInvitations == nil || *resp.PendingInvitations != 2 {
		t.Errorf("неожиданный статус: %+v", resp)
	}
}

func TestPaginationDefaults(t *testing.T) {
	intPtr := func(n int) *int { return &n }
	tests := []struct {
		name           string
		limit, offset  *int
		wantL, wantOff int
	}{
		{"по умолчанию", nil, nil, 100, 0},
		{"ноль", intPtr(0), intPtr(0), 1, 0},
		{"больше максимума", intPtr(5000), intPtr(10), 1000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := paginationDefaults(tt.limit, tt.offset)
			if l != tt.wantL || o != tt.wantOff {
				t.Errorf("paginationDefaults = (%d, %d), хотели (%d, %d)", l, o, tt.wantL, tt.wantOff)
			}
		})
	}
}
