package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bigkaa/onboarding-portal/internal/domain/model"
	"github.com/bigkaa/onboarding-portal/internal/lock"
	"github.com/bigkaa/onboarding-portal/internal/repository"
)

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Каталог identity ---

type fakeDirectory struct {
	mu         sync.Mutex
	identities []model.Identity
	pageSize   int
	lookupErr  error
	listErr    error
	deleteErr  error
	deleted    []string
	passwords  map[string]string
}

func newFakeDirectory(idents ...model.Identity) *fakeDirectory {
	return &fakeDirectory{identities: idents, pageSize: 2, passwords: map[string]string{}}
}

func (d *fakeDirectory) add(ident model.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.identities = append(d.identities, ident)
}

func (d *fakeDirectory) LookupByID(_ context.Context, id string) (*model.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	for _, ident := range d.identities {
		if ident.ID == id {
			found := ident
			return &found, nil
		}
	}
	return nil, nil
}

func (d *fakeDirectory) FindByEmail(_ context.Context, email string) (*model.Identity, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return nil, d.lookupErr
	}
	var found *model.Identity
	for _, ident := range d.identities {
		if !model.EmailsMatch(ident.Email, email) {
			continue
		}
		if found != nil {
			return nil, model.ErrAmbiguousMatch
		}
		match := ident
		found = &match
	}
	return found, nil
}

func (d *fakeDirectory) ListIdentities(ctx context.Context, visit func([]model.Identity) error) error {
	d.mu.Lock()
	all := append([]model.Identity(nil), d.identities...)
	listErr := d.listErr
	d.mu.Unlock()

	if listErr != nil {
		return listErr
	}
	for first := 0; ; first += d.pageSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := first + d.pageSize
		if end > len(all) {
			end = len(all)
		}
		if first < end {
			if err := visit(all[first:end]); err != nil {
				return err
			}
		}
		if end-first < d.pageSize {
			return nil
		}
	}
}

func (d *fakeDirectory) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deleteErr != nil {
		return d.deleteErr
	}
	d.deleted = append(d.deleted, id)
	return nil
}

func (d *fakeDirectory) ResetPassword(_ context.Context, id, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passwords[id] = password
	return nil
}

// --- Хранилище приглашений: удаление атомарно, как DELETE с RowsAffected ---

type fakeInvitations struct {
	mu        sync.Mutex
	rows      map[string]model.Invitation
	getErr    error
	deleteErr error
	upserts   atomic.Int32
}

func newFakeInvitations() *fakeInvitations {
	return &fakeInvitations{rows: map[string]model.Invitation{}}
}

func (f *fakeInvitations) Get(_ context.Context, email string) (*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	inv, ok := f.rows[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &inv, nil
}

func (f *fakeInvitations) Upsert(_ context.Context, inv *model.Invitation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if prev, ok := f.rows[inv.Email]; ok {
		inv.CreatedAt = prev.CreatedAt
	} else {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now
	f.rows[inv.Email] = *inv
	f.upserts.Add(1)
	return nil
}

func (f *fakeInvitations) DeleteIfExists(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if _, ok := f.rows[email]; !ok {
		return false, nil
	}
	delete(f.rows, email)
	return true, nil
}

func (f *fakeInvitations) ListAfter(_ context.Context, after string, limit int) ([]*model.Invitation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.rows))
	for k := range f.rows {
		if k > after {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if len(keys) > limit {
		keys = keys[:limit]
	}
	result := make([]*model.Invitation, 0, len(keys))
	for _, k := range keys {
		inv := f.rows[k]
		result = append(result, &inv)
	}
	return result, nil
}

func (f *fakeInvitations) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows), nil
}

func (f *fakeInvitations) has(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[email]
	return ok
}

// --- Хранилище профилей ---

type fakeProfiles struct {
	mu        sync.Mutex
	rows      map[string]model.Profile
	failFor   map[string]bool
	mutations map[string]int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		rows:      map[string]model.Profile{},
		failFor:   map[string]bool{},
		mutations: map[string]int{},
	}
}

func (f *fakeProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) Upsert(_ context.Context, id string, fl model.ProfileFields) (*model.Profile, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[id] {
		return nil, false, errStoreDown
	}

	p, exists := f.rows[id]
	if !exists {
		p = model.Profile{ID: id, Role: "user", OnboardingStatus: model.OnboardingPending, CreatedAt: time.Now().UTC()}
	}
	setStr := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setStr(&p.Email, fl.Email)
	setStr(&p.FullName, fl.FullName)
	setStr(&p.Role, fl.Role)
	setStr(&p.Salary, fl.Salary)
	setStr(&p.OnboardingStatus, fl.OnboardingStatus)
	setStr(&p.GovernmentID, fl.GovernmentID)
	setStr(&p.Country, fl.Country)
	setStr(&p.Phone, fl.Phone)
	setStr(&p.Company, fl.Company)
	setStr(&p.DolarTag, fl.DolarTag)
	setStr(&p.ContractURL, fl.ContractURL)
	if fl.ContractSigned != nil {
		p.ContractSigned = *fl.ContractSigned
	}
	if fl.SignedAt != nil {
		t := *fl.SignedAt
		p.SignedAt = &t
	}
	p.UpdatedAt = time.Now().UTC()

	f.rows[id] = p
	f.mutations[id]++
	return &p, !exists, nil
}

func (f *fakeProfiles) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeProfiles) List(_ context.Context, limit, offset int) ([]*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*model.Profile
	for _, p := range f.rows {
		if p.Role == "admin" {
			continue
		}
		cp := p
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (f *fakeProfiles) Count(ctx context.Context) (int, error) {
	list, _ := f.List(ctx, 1<<30, 0)
	return len(list), nil
}

func (f *fakeProfiles) mutationsOf(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations[id]
}

func (f *fakeProfiles) setFail(id string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failFor[id] = fail
}

// --- Состояние sweep ---

type fakeSweepState struct {
	mu    sync.Mutex
	state model.SweepState
}

func (f *fakeSweepState) Get(_ context.Context) (*model.SweepState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	return &s, nil
}

func (f *fakeSweepState) Record(_ context.Context, r *model.SweepReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	at := r.CompletedAt
	f.state.LastSweepAt = &at
	f.state.LastChecked = r.Checked
	f.state.LastApplied = r.Applied
	f.state.LastPending = r.Pending
	f.state.LastFailed = r.Failed
	return nil
}

// noLocker не блокирует ничего: имитирует писателя в обход блокировки.
type noLocker struct{}

func (noLocker) Lock(context.Context, string) (func(), error) { return func() {}, nil }

// --- Сборка ---

type fixture struct {
	dir         *fakeDirectory
	invitations *fakeInvitations
	profiles    *fakeProfiles
	state       *fakeSweepState
	engine      *Engine
	invSvc      *InvitationService
	accessSvc   *AccessService
	profileSvc  *ProfileService
	sweepSvc    *SweepService
}

func newFixture(idents ...model.Identity) *fixture {
	return newFixtureWithLocker(lock.NewLocal(), idents...)
}

func newFixtureWithLocker(locker Locker, idents ...model.Identity) *fixture {
	f := &fixture{
		dir:         newFakeDirectory(idents...),
		invitations: newFakeInvitations(),
		profiles:    newFakeProfiles(),
		state:       &fakeSweepState{},
	}
	logger := discardLogger()
	f.engine = NewEngine(f.dir, f.invitations, f.profiles, locker, logger)
	f.invSvc = NewInvitationService(f.engine, logger)
	f.accessSvc = NewAccessService(f.engine, f.profiles, []string{"onboarding-admins"}, logger)
	f.profileSvc = NewProfileService(f.profiles, f.dir, logger)
	f.sweepSvc = NewSweepService(f.engine, f.dir, f.state, 2, 0, logger)
	return f
}
