package models

import (
	"encoding/json"
	"net/http"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeProblem = "application/problem+json"
)

// Problem — ответ об ошибке (RFC 7807). Для ошибок синхронизации в Extra
// лежит отчёт по шагам, чтобы вызывающий видел, что успело примениться.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Extra  any    `json:"extra,omitempty"`
}

func NewProblem(status int, title, detail string, extra any) Problem {
	if title == "" {
		title = http.StatusText(status)
	}
	return Problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Extra: extra}
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, extra any) {
	write(w, contentTypeProblem, status, NewProblem(status, title, detail, extra))
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	write(w, contentTypeJSON, status, v)
}

func write(w http.ResponseWriter, contentType string, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
