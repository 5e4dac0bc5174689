package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursesync/internal/locks"
	"coursesync/internal/models"
	"coursesync/internal/repo"
	"coursesync/internal/syncer"
	"coursesync/internal/tenancy"
)

type fakeSyncer struct {
	err      error
	gotID    string
	gotOpts  syncer.Options
	gotUser  string
	gotCours string
}

func (f *fakeSyncer) SyncEnrollment(_ context.Context, id string, opts syncer.Options) (*syncer.SyncReport, error) {
	f.gotID, f.gotOpts = id, opts
	return &syncer.SyncReport{Action: models.SyncActionEnroll, EnrollmentID: id}, f.err
}

func (f *fakeSyncer) SyncPurchase(_ context.Context, id string) (*syncer.SyncReport, error) {
	f.gotID = id
	return &syncer.SyncReport{Action: models.SyncActionPurchase, PurchaseID: id}, f.err
}

func (f *fakeSyncer) RevokeEnrollment(_ context.Context, userID, courseID string) (*syncer.SyncReport, error) {
	f.gotUser, f.gotCours = userID, courseID
	return &syncer.SyncReport{Action: models.SyncActionRevoke, UserID: userID}, f.err
}

type fakeAudit struct {
	gotLimit int
}

func (f *fakeAudit) ListByUser(_ context.Context, userID string, limit int) ([]models.SyncAuditRecord, error) {
	f.gotLimit = limit
	return []models.SyncAuditRecord{{ID: 1, UserID: userID, Action: "enroll", Status: "success"}}, nil
}

type fakeTenants struct {
	err     error
	created tenancy.ProvisionInput
	deleted string
	assign  [2]string
}

func (f *fakeTenants) Provision(_ context.Context, in tenancy.ProvisionInput) (*models.TenantAccount, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &models.TenantAccount{Base: models.Base{ID: "t1"}, Name: in.Name, ExternalCredential: "secret", Status: models.TenantStatusActive}, nil
}

func (f *fakeTenants) Delete(_ context.Context, id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeTenants) AssignUser(_ context.Context, tenantID, userID string) error {
	f.assign = [2]string{tenantID, userID}
	return f.err
}

const token = "api-token"

func newRouter(s Syncer, a AuditReader, t Tenants) *mux.Router {
	r := mux.NewRouter()
	RegisterRoutes(r, token, NewHandler(s, a, t))
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuth(t *testing.T) {
	r := newRouter(&fakeSyncer{}, &fakeAudit{}, &fakeTenants{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sync/purchases/p1", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSyncEnrollment(t *testing.T) {
	s := &fakeSyncer{}
	r := newRouter(s, &fakeAudit{}, &fakeTenants{})

	rec := do(t, r, http.MethodPost, "/api/v1/sync/enrollments/e1", `{"pipelineId":"pl","stageId":"st","automationId":"wf"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "e1", s.gotID)
	assert.Equal(t, syncer.Options{PipelineID: "pl", StageID: "st", AutomationID: "wf"}, s.gotOpts)
	assert.Contains(t, rec.Body.String(), `"enrollment_id":"e1"`)

	rec = do(t, r, http.MethodPost, "/api/v1/sync/enrollments/e2", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/sync/enrollments/e3", "{broken")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: enrollment e1", syncer.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: no credential", syncer.ErrConfiguration), http.StatusInternalServerError},
		{fmt.Errorf("%w: boom", syncer.ErrContactUpsert), http.StatusBadGateway},
		{fmt.Errorf("%w: boom", syncer.ErrAccessGrant), http.StatusBadGateway},
		{fmt.Errorf("%w: %w: p1", syncer.ErrNotFound, syncer.ErrPurchaseNotCompleted), http.StatusConflict},
		{fmt.Errorf("lock: %w", locks.ErrBusy), http.StatusConflict},
		{fmt.Errorf("%w: disk", syncer.ErrAuditWrite), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := newRouter(&fakeSyncer{err: tc.err}, &fakeAudit{}, &fakeTenants{})
		rec := do(t, r, http.MethodPost, "/api/v1/sync/purchases/p1", "")
		assert.Equal(t, tc.code, rec.Code, tc.err.Error())

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tc.err.Error(), body["detail"])
	}
}

func TestConfigurationProblemTitle(t *testing.T) {
	r := newRouter(&fakeSyncer{err: fmt.Errorf("%w: x", syncer.ErrConfiguration)}, &fakeAudit{}, &fakeTenants{})
	rec := do(t, r, http.MethodPost, "/api/v1/sync/purchases/p1", "")
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "CRM not configured", p.Title)
}

func TestRevoke(t *testing.T) {
	s := &fakeSyncer{}
	r := newRouter(s, &fakeAudit{}, &fakeTenants{})

	rec := do(t, r, http.MethodPost, "/api/v1/access/revoke", `{"userId":"u1","courseId":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", s.gotUser)
	assert.Equal(t, "c1", s.gotCours)

	rec = do(t, r, http.MethodPost, "/api/v1/access/revoke", `{"userId":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.err = fmt.Errorf("%w: u1@x", syncer.ErrContactNotFound)
	rec = do(t, r, http.MethodPost, "/api/v1/access/revoke", `{"userId":"u1","courseId":"c1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAudit(t *testing.T) {
	a := &fakeAudit{}
	r := newRouter(&fakeSyncer{}, a, &fakeTenants{})

	rec := do(t, r, http.MethodGet, "/api/v1/sync/audit?user_id=u1&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, a.gotLimit)
	assert.Contains(t, rec.Body.String(), `"user_id":"u1"`)

	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/sync/audit", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, r, http.MethodGet, "/api/v1/sync/audit?user_id=u1&limit=x", "").Code)
}

func TestTenants(t *testing.T) {
	tn := &fakeTenants{}
	r := newRouter(&fakeSyncer{}, &fakeAudit{}, tn)

	rec := do(t, r, http.MethodPost, "/api/v1/tenants", `{"ownerUserId":"u1","name":"Acme","email":"o@acme.test","branding":{"color":"red"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Acme", tn.created.Name)
	assert.Equal(t, "red", tn.created.Branding["color"])
	assert.NotContains(t, rec.Body.String(), "secret", "credential is never serialised")

	rec = do(t, r, http.MethodPost, "/api/v1/tenants", `{"ownerUserId":"u1","name":"Acme","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/api/v1/tenants/t1/users/u2", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, [2]string{"t1", "u2"}, tn.assign)

	rec = do(t, r, http.MethodDelete, "/api/v1/tenants/t1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "t1", tn.deleted)

	tn.err = fmt.Errorf("load tenant t9: %w", repo.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, do(t, r, http.MethodDelete, "/api/v1/tenants/t9", "").Code)

	tn.err = fmt.Errorf("%w: tenant t1 is suspended", tenancy.ErrTenantInactive)
	assert.Equal(t, http.StatusConflict, do(t, r, http.MethodPost, "/api/v1/tenants/t1/users/u2", "").Code)
}
