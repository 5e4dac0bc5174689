package crm

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrMissingCredential = errors.New("crm credential is empty")
	ErrMissingLocation   = errors.New("crm location id is empty")
	ErrMissingCompany    = errors.New("crm company id is empty")
)

// APIError — не-2xx ответ CRM. Body сохраняется как есть для аудита.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm api error %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// IsNotFound — 404 от CRM.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
