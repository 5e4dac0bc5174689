package tenancy

import (
	"context"
	"fmt"
	"sync"

	"coursesync/internal/models"
	"coursesync/internal/repo"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[string]*models.User{}}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) AssignTenant(_ context.Context, userID, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.TenantID = &tenantID
	return nil
}

type fakeTenants struct {
	mu      sync.Mutex
	seq     int
	tenants map[string]*models.TenantAccount
	getErr  error
}

func newFakeTenants(ts ...*models.TenantAccount) *fakeTenants {
	f := &fakeTenants{tenants: map[string]*models.TenantAccount{}}
	for _, t := range ts {
		f.tenants[t.ID] = t
	}
	return f
}

func (f *fakeTenants) Get(_ context.Context, id string) (*models.TenantAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tenants[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTenants) Create(_ context.Context, t *models.TenantAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == "" {
		f.seq++
		t.ID = fmt.Sprintf("tenant-%d", f.seq)
	}
	cp := *t
	f.tenants[t.ID] = &cp
	return nil
}

func (f *fakeTenants) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tenants[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.tenants, id)
	return nil
}

func strptr(s string) *string { return &s }
