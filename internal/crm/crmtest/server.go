// Package crmtest — фейковая CRM поверх httptest для тестов клиента и движка.
package crmtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"coursesync/internal/crm"
)

// Имена маршрутов — для инъекции ошибок и подсчёта вызовов.
const (
	RouteFindContact       = "findContact"
	RouteUpsertContact     = "upsertContact"
	RouteGetContact        = "getContact"
	RouteUpdateContact     = "updateContact"
	RouteAddTags           = "addTags"
	RouteRemoveTags        = "removeTags"
	RouteListTags          = "listTags"
	RouteCreateTag         = "createTag"
	RouteListPipelines     = "listPipelines"
	RouteCreatePipeline    = "createPipeline"
	RouteUpsertOpportunity = "upsertOpportunity"
	RouteTriggerWorkflow   = "triggerWorkflow"
	RouteCreateLocation    = "createLocation"
	RouteSearchLocations   = "searchLocations"
	RouteUpdateLocation    = "updateLocation"
	RouteDeleteLocation    = "deleteLocation"
	RouteLocationToken     = "locationToken"
)

type Trigger struct {
	ContactID  string
	WorkflowID string
}

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	seq           int
	tokens        map[string]bool
	contacts      map[string]*crm.Contact
	tags          map[string][]crm.Tag
	pipelines     map[string][]crm.Pipeline
	opportunities map[string]*crm.Opportunity
	locations     map[string]*crm.Location
	triggered     []Trigger
	failures      map[string]int
	calls         map[string]int
}

// NewServer поднимает фейк. Допустимые bearer-токены — tokens;
// без токенов принимается любой непустой.
func NewServer(tokens ...string) *Server {
	s := &Server{
		tokens:        map[string]bool{},
		contacts:      map[string]*crm.Contact{},
		tags:          map[string][]crm.Tag{},
		pipelines:     map[string][]crm.Pipeline{},
		opportunities: map[string]*crm.Opportunity{},
		locations:     map[string]*crm.Location{},
		failures:      map[string]int{},
		calls:         map[string]int{},
	}
	for _, t := range tokens {
		s.tokens[t] = true
	}

	r := mux.NewRouter()
	r.Use(s.auth)
	s.handle(r, RouteFindContact, http.MethodGet, "/contacts/search/duplicate", s.findContact)
	s.handle(r, RouteUpsertContact, http.MethodPost, "/contacts/upsert", s.upsertContact)
	s.handle(r, RouteAddTags, http.MethodPost, "/contacts/{id}/tags", s.addTags)
	s.handle(r, RouteRemoveTags, http.MethodDelete, "/contacts/{id}/tags", s.removeTags)
	s.handle(r, RouteTriggerWorkflow, http.MethodPost, "/contacts/{id}/workflow/{wf}", s.triggerWorkflow)
	s.handle(r, RouteGetContact, http.MethodGet, "/contacts/{id}", s.getContact)
	s.handle(r, RouteUpdateContact, http.MethodPut, "/contacts/{id}", s.updateContact)
	s.handle(r, RouteListTags, http.MethodGet, "/locations/{loc}/tags", s.listTags)
	s.handle(r, RouteCreateTag, http.MethodPost, "/locations/{loc}/tags", s.createTag)
	s.handle(r, RouteListPipelines, http.MethodGet, "/opportunities/pipelines", s.listPipelines)
	s.handle(r, RouteCreatePipeline, http.MethodPost, "/opportunities/pipelines", s.createPipeline)
	s.handle(r, RouteUpsertOpportunity, http.MethodPost, "/opportunities/upsert", s.upsertOpportunity)
	s.handle(r, RouteSearchLocations, http.MethodGet, "/locations/search", s.searchLocations)
	s.handle(r, RouteCreateLocation, http.MethodPost, "/locations/", s.createLocation)
	s.handle(r, RouteUpdateLocation, http.MethodPut, "/locations/{id}", s.updateLocation)
	s.handle(r, RouteDeleteLocation, http.MethodDelete, "/locations/{id}", s.deleteLocation)
	s.handle(r, RouteLocationToken, http.MethodPost, "/oauth/locationToken", s.locationToken)

	s.Server = httptest.NewServer(r)
	return s
}

// Options — параметры клиента, смотрящего на фейк.
func (s *Server) Options() crm.Options {
	return crm.Options{BaseURL: s.URL, APIVersion: "2021-07-28", HTTPClient: s.Client()}
}

func (s *Server) handle(r *mux.Router, name, method, path string, h http.HandlerFunc) {
	r.HandleFunc(path, func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		code, fail := s.failures[name]
		s.mu.Unlock()
		if fail {
			writeJSON(w, code, map[string]any{"statusCode": code, "message": "injected failure: " + name})
			return
		}
		h(w, req)
	}).Methods(method).Name(name)
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const p = "Bearer "
		auth := r.Header.Get("Authorization")
		tok := strings.TrimPrefix(auth, p)
		if !strings.HasPrefix(auth, p) || tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing bearer"})
			return
		}
		s.mu.Lock()
		ok := len(s.tokens) == 0 || s.tokens[tok]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Fail заставляет маршрут отвечать code до вызова Heal.
func (s *Server) Fail(route string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = code
}

func (s *Server) Heal(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

func (s *Server) AllowToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tok] = true
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func cloneContact(c *crm.Contact) *crm.Contact {
	cp := *c
	cp.Tags = append([]string(nil), c.Tags...)
	if c.CustomFields != nil {
		cp.CustomFields = make(map[string]any, len(c.CustomFields))
		for k, v := range c.CustomFields {
			cp.CustomFields[k] = v
		}
	}
	return &cp
}
