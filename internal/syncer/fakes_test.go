package syncer

import (
	"context"
	"sync"
	"time"

	"coursesync/internal/crm"
	"coursesync/internal/models"
	"coursesync/internal/repo"
	"coursesync/internal/tenancy"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) Get(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) UpdateCRMRef(_ context.Context, userID, contactID, locationID string, verifiedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repo.ErrNotFound
	}
	u.CRMContactID = contactID
	u.CRMLocationID = locationID
	u.CRMVerifiedAt = &verifiedAt
	return nil
}

func (m *memUsers) put(u *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

type memCourses struct {
	mu          sync.Mutex
	courses     map[string]*models.Course
	enrollments map[string]*models.Enrollment
	purchases   map[string]*models.Purchase
	markErr     error
}

func (m *memCourses) GetCourse(_ context.Context, id string) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCourses) GetEnrollment(_ context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *memCourses) GetPurchase(_ context.Context, id string) (*models.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memCourses) MarkEnrollmentSynced(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	e, ok := m.enrollments[id]
	if !ok {
		return repo.ErrNotFound
	}
	e.CRMSyncedAt = &at
	return nil
}

func (m *memCourses) synced(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enrollments[id].CRMSyncedAt != nil
}

type memAudit struct {
	mu      sync.Mutex
	records []models.SyncAuditRecord
	err     error
}

// Append ведёт себя как db.WithContext(ctx).Create: отменённый ctx — ошибка.
func (m *memAudit) Append(ctx context.Context, rec *models.SyncAuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memAudit) statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Action+":"+r.Status)
	}
	return out
}

type memTenants struct {
	tenants map[string]*models.TenantAccount
}

func (m *memTenants) Get(_ context.Context, id string) (*models.TenantAccount, error) {
	t, ok := m.tenants[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// cancelOnPipelines отменяет ctx вызывающего посреди синхронизации,
// как отвалившийся HTTP-клиент.
type cancelOnPipelines struct {
	crm.API
	cancel context.CancelFunc
}

func (c cancelOnPipelines) GetPipelines(ctx context.Context) ([]crm.Pipeline, error) {
	c.cancel()
	return c.API.GetPipelines(ctx)
}

type cancellingClients struct {
	inner  ClientSource
	cancel context.CancelFunc
}

func (c cancellingClients) Client(loc tenancy.Location) (crm.API, error) {
	api, err := c.inner.Client(loc)
	if err != nil {
		return nil, err
	}
	return cancelOnPipelines{API: api, cancel: c.cancel}, nil
}
