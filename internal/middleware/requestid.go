package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"coursesync/internal/logs"
)

const requestIDHeader = "X-Request-Id"

// RequestID берёт id из заголовка или выдаёт новый. Он попадает в ответ
// и в контекст, откуда его читают логи движка синхронизации.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logs.WithRequestID(r.Context(), id)))
	})
}

func GetRequestID(r *http.Request) string {
	return logs.RequestID(r.Context())
}
