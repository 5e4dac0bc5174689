package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes вешает /api/v1 под bearer-токеном.
func RegisterRoutes(r *mux.Router, token string, h *Handler) {
	sub := r.PathPrefix("/api/v1").Subrouter()
	sub.Use(BearerAuth(token))

	sub.HandleFunc("/sync/enrollments/{id}", h.SyncEnrollment).Methods(http.MethodPost)
	sub.HandleFunc("/sync/purchases/{id}", h.SyncPurchase).Methods(http.MethodPost)
	sub.HandleFunc("/sync/audit", h.ListAudit).Methods(http.MethodGet)
	sub.HandleFunc("/access/revoke", h.Revoke).Methods(http.MethodPost)

	sub.HandleFunc("/tenants", h.CreateTenant).Methods(http.MethodPost)
	sub.HandleFunc("/tenants/{id}", h.DeleteTenant).Methods(http.MethodDelete)
	sub.HandleFunc("/tenants/{id}/users/{userId}", h.AssignUser).Methods(http.MethodPost)
}
