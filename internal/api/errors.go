package api

import (
	"errors"
	"net/http"

	"coursesync/internal/locks"
	"coursesync/internal/models"
	"coursesync/internal/repo"
	"coursesync/internal/syncer"
	"coursesync/internal/tenancy"
)

// statusFor — класс ошибки -> HTTP. Порядок важен: более узкие классы раньше.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, syncer.ErrPurchaseNotCompleted):
		return http.StatusConflict, "Purchase not completed"
	case errors.Is(err, locks.ErrBusy):
		return http.StatusConflict, "Contact is busy"
	case errors.Is(err, tenancy.ErrTenantInactive):
		return http.StatusConflict, "Tenant is not active"
	case errors.Is(err, syncer.ErrContactNotFound):
		return http.StatusNotFound, "Contact not found"
	case errors.Is(err, syncer.ErrNotFound), errors.Is(err, repo.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, syncer.ErrConfiguration):
		return http.StatusInternalServerError, "CRM not configured"
	case errors.Is(err, syncer.ErrContactUpsert),
		errors.Is(err, syncer.ErrAccessGrant),
		errors.Is(err, syncer.ErrSpendUpdate):
		return http.StatusBadGateway, "CRM sync failed"
	case errors.Is(err, syncer.ErrAuditWrite):
		return http.StatusInternalServerError, "Audit write failed"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

func writeError(w http.ResponseWriter, err error, extra any) {
	status, title := statusFor(err)
	models.WriteProblem(w, status, title, err.Error(), extra)
}
