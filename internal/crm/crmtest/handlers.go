package crmtest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"coursesync/internal/crm"
)

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) findByEmail(loc, email string) *crm.Contact {
	for _, c := range s.contacts {
		if c.LocationID == loc && strings.EqualFold(c.Email, email) {
			return c
		}
	}
	return nil
}

func (s *Server) findContact(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("locationId")
	email := r.URL.Query().Get("email")
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findByEmail(loc, email)
	if c == nil {
		writeJSON(w, http.StatusOK, map[string]any{"contact": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact": cloneContact(c)})
}

func (s *Server) upsertContact(w http.ResponseWriter, r *http.Request) {
	var in struct {
		LocationID   string         `json:"locationId"`
		Email        string         `json:"email"`
		Name         string         `json:"name"`
		FirstName    string         `json:"firstName"`
		LastName     string         `json:"lastName"`
		CustomFields map[string]any `json:"customFields"`
	}
	if err := decodeBody(r, &in); err != nil || in.LocationID == "" || in.Email == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "locationId and email required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findByEmail(in.LocationID, in.Email)
	isNew := c == nil
	if isNew {
		c = &crm.Contact{
			ID:           s.nextID("ct"),
			LocationID:   in.LocationID,
			Email:        strings.ToLower(in.Email),
			Tags:         []string{},
			CustomFields: map[string]any{},
		}
		s.contacts[c.ID] = c
	}
	if in.Name != "" {
		c.Name = in.Name
	}
	if in.FirstName != "" {
		c.FirstName = in.FirstName
	}
	if in.LastName != "" {
		c.LastName = in.LastName
	}
	for k, v := range in.CustomFields {
		c.CustomFields[k] = v
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact": cloneContact(c), "new": isNew})
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Contact not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact": cloneContact(c)})
}

func (s *Server) updateContact(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		CustomFields map[string]any `json:"customFields"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Contact not found"})
		return
	}
	if in.CustomFields != nil {
		c.CustomFields = in.CustomFields
	}
	writeJSON(w, http.StatusOK, map[string]any{"contact": cloneContact(c)})
}

func (s *Server) addTags(w http.ResponseWriter, r *http.Request) {
	s.editTags(w, r, true)
}

func (s *Server) removeTags(w http.ResponseWriter, r *http.Request) {
	s.editTags(w, r, false)
}

func (s *Server) editTags(w http.ResponseWriter, r *http.Request, add bool) {
	id := mux.Vars(r)["id"]
	var in struct {
		Tags []string `json:"tags"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Contact not found"})
		return
	}
	for _, t := range in.Tags {
		if add {
			if !c.HasTag(t) {
				c.Tags = append(c.Tags, t)
			}
			continue
		}
		out := c.Tags[:0]
		for _, have := range c.Tags {
			if have != t {
				out = append(out, have)
			}
		}
		c.Tags = out
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": c.Tags})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	loc := mux.Vars(r)["loc"]
	s.mu.Lock()
	defer s.mu.Unlock()
	tags := append([]crm.Tag{}, s.tags[loc]...)
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	loc := mux.Vars(r)["loc"]
	var in struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tag := crm.Tag{ID: s.nextID("tag"), Name: in.Name, LocationID: loc}
	s.tags[loc] = append(s.tags[loc], tag)
	writeJSON(w, http.StatusCreated, map[string]any{"tag": tag})
}

func (s *Server) listPipelines(w http.ResponseWriter, r *http.Request) {
	loc := r.URL.Query().Get("locationId")
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": append([]crm.Pipeline{}, s.pipelines[loc]...)})
}

func (s *Server) createPipeline(w http.ResponseWriter, r *http.Request) {
	var in struct {
		LocationID string      `json:"locationId"`
		Name       string      `json:"name"`
		Stages     []crm.Stage `json:"stages"`
	}
	if err := decodeBody(r, &in); err != nil || in.LocationID == "" || in.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "locationId and name required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p := crm.Pipeline{ID: s.nextID("pl"), Name: in.Name}
	for _, st := range in.Stages {
		st.ID = s.nextID("stg")
		p.Stages = append(p.Stages, st)
	}
	s.pipelines[in.LocationID] = append(s.pipelines[in.LocationID], p)
	writeJSON(w, http.StatusCreated, map[string]any{"pipeline": p})
}

func (s *Server) upsertOpportunity(w http.ResponseWriter, r *http.Request) {
	var in crm.Opportunity
	if err := decodeBody(r, &in); err != nil || in.ContactID == "" || in.PipelineID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "contactId and pipelineId required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := in.ContactID + "/" + in.PipelineID
	op, ok := s.opportunities[key]
	if !ok {
		op = &crm.Opportunity{ID: s.nextID("opp"), ContactID: in.ContactID, PipelineID: in.PipelineID}
		s.opportunities[key] = op
	}
	op.PipelineStageID = in.PipelineStageID
	op.Status = in.Status
	writeJSON(w, http.StatusOK, map[string]any{"opportunity": *op, "new": !ok})
}

func (s *Server) triggerWorkflow(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[v["id"]]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Contact not found"})
		return
	}
	s.triggered = append(s.triggered, Trigger{ContactID: v["id"], WorkflowID: v["wf"]})
	writeJSON(w, http.StatusOK, map[string]bool{"succeded": true})
}

func (s *Server) createLocation(w http.ResponseWriter, r *http.Request) {
	var in crm.Location
	if err := decodeBody(r, &in); err != nil || in.Name == "" || in.CompanyID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "companyId and name required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = s.nextID("loc")
	loc := in
	s.locations[loc.ID] = &loc
	writeJSON(w, http.StatusCreated, loc)
}

func (s *Server) searchLocations(w http.ResponseWriter, r *http.Request) {
	company := r.URL.Query().Get("companyId")
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []crm.Location{}
	for _, l := range s.locations {
		if l.CompanyID == company {
			out = append(out, *l)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": out})
}

func (s *Server) updateLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in crm.Location
	if err := decodeBody(r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Location not found"})
		return
	}
	if in.Name != "" {
		l.Name = in.Name
	}
	if in.Email != "" {
		l.Email = in.Email
	}
	if in.Settings != nil {
		l.Settings = in.Settings
	}
	writeJSON(w, http.StatusOK, *l)
}

func (s *Server) deleteLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Location not found"})
		return
	}
	delete(s.locations, id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) locationToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "cannot parse form"})
		return
	}
	loc := r.Form.Get("locationId")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locations[loc]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Location not found"})
		return
	}
	tok := "tok-" + loc
	if len(s.tokens) > 0 {
		s.tokens[tok] = true
	}
	writeJSON(w, http.StatusOK, crm.LocationToken{AccessToken: tok, TokenType: "Bearer", ExpiresIn: 86399, LocationID: loc})
}
