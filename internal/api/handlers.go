// Package api — HTTP-поверхность движка синхронизации для соседних модулей.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"coursesync/internal/logs"
	"coursesync/internal/models"
	"coursesync/internal/syncer"
	"coursesync/internal/tenancy"
)

type Syncer interface {
	SyncEnrollment(ctx context.Context, enrollmentID string, opts syncer.Options) (*syncer.SyncReport, error)
	SyncPurchase(ctx context.Context, purchaseID string) (*syncer.SyncReport, error)
	RevokeEnrollment(ctx context.Context, userID, courseID string) (*syncer.SyncReport, error)
}

type AuditReader interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.SyncAuditRecord, error)
}

type Tenants interface {
	Provision(ctx context.Context, in tenancy.ProvisionInput) (*models.TenantAccount, error)
	Delete(ctx context.Context, tenantID string) error
	AssignUser(ctx context.Context, tenantID, userID string) error
}

type Handler struct {
	sync     Syncer
	audit    AuditReader
	tenants  Tenants
	validate *validator.Validate
}

func NewHandler(s Syncer, audit AuditReader, tenants Tenants) *Handler {
	return &Handler{sync: s, audit: audit, tenants: tenants, validate: validator.New()}
}

// decode: пустое тело допустимо, если allowEmpty.
func (h *Handler) decode(r *http.Request, v any, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) && allowEmpty {
		return nil
	}
	if err != nil {
		return err
	}
	return h.validate.Struct(v)
}

func badRequest(w http.ResponseWriter, err error) {
	models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
}

func (h *Handler) respondSync(w http.ResponseWriter, r *http.Request, rep *syncer.SyncReport, err error) {
	if err != nil {
		log := logs.FromContext(r.Context())
		if rep != nil {
			log = log.WithField("action", rep.Action)
		}
		log.Warnf("sync request failed: %v", err)
		writeError(w, err, map[string]any{"report": rep})
		return
	}
	models.WriteJSON(w, http.StatusOK, rep)
}

func (h *Handler) SyncEnrollment(w http.ResponseWriter, r *http.Request) {
	var req SyncEnrollmentRequest
	if err := h.decode(r, &req, true); err != nil {
		badRequest(w, err)
		return
	}
	rep, err := h.sync.SyncEnrollment(r.Context(), mux.Vars(r)["id"], req)
	h.respondSync(w, r, rep, err)
}

func (h *Handler) SyncPurchase(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sync.SyncPurchase(r.Context(), mux.Vars(r)["id"])
	h.respondSync(w, r, rep, err)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RevokeRequest
	if err := h.decode(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	rep, err := h.sync.RevokeEnrollment(r.Context(), req.UserID, req.CourseID)
	h.respondSync(w, r, rep, err)
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		badRequest(w, errors.New("user_id required"))
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(w, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	recs, err := h.audit.ListByUser(r.Context(), userID, limit)
	if err != nil {
		writeError(w, err, nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{"items": recs})
}

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := h.decode(r, &req, false); err != nil {
		badRequest(w, err)
		return
	}
	t, err := h.tenants.Provision(r.Context(), tenancy.ProvisionInput{
		OwnerUserID: req.OwnerUserID,
		Name:        req.Name,
		Email:       req.Email,
		Branding:    req.Branding,
	})
	if err != nil {
		writeError(w, err, nil)
		return
	}
	models.WriteJSON(w, http.StatusCreated, t)
}

func (h *Handler) DeleteTenant(w http.ResponseWriter, r *http.Request) {
	if err := h.tenants.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AssignUser(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	if err := h.tenants.AssignUser(r.Context(), v["id"], v["userId"]); err != nil {
		writeError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
