package crmtest

import (
	"sort"
	"strings"

	"coursesync/internal/crm"
)

func (s *Server) SeedContact(loc, email, name string, fields map[string]any) *crm.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fields == nil {
		fields = map[string]any{}
	}
	c := &crm.Contact{
		ID:           s.nextID("ct"),
		LocationID:   loc,
		Email:        strings.ToLower(email),
		Name:         name,
		Tags:         []string{},
		CustomFields: fields,
	}
	s.contacts[c.ID] = c
	return cloneContact(c)
}

func (s *Server) SeedTag(loc, name string) crm.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag := crm.Tag{ID: s.nextID("tag"), Name: name, LocationID: loc}
	s.tags[loc] = append(s.tags[loc], tag)
	return tag
}

// AttachTag вешает существующий тег на контакт в обход API.
func (s *Server) AttachTag(contactID, tagID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.contacts[contactID]; ok && !c.HasTag(tagID) {
		c.Tags = append(c.Tags, tagID)
	}
}

func (s *Server) SeedPipeline(loc, name string, stages ...string) crm.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := crm.Pipeline{ID: s.nextID("pl"), Name: name}
	for i, st := range stages {
		p.Stages = append(p.Stages, crm.Stage{ID: s.nextID("stg"), Name: st, Position: i})
	}
	s.pipelines[loc] = append(s.pipelines[loc], p)
	return p
}

func (s *Server) SeedLocation(company, name string) crm.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := crm.Location{ID: s.nextID("loc"), CompanyID: company, Name: name}
	s.locations[l.ID] = &l
	return l
}

func (s *Server) Contact(id string) (*crm.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, false
	}
	return cloneContact(c), true
}

func (s *Server) ContactByEmail(loc, email string) (*crm.Contact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.findByEmail(loc, email)
	if c == nil {
		return nil, false
	}
	return cloneContact(c), true
}

// DeleteContact — контакт удалён на стороне CRM.
func (s *Server) DeleteContact(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contacts, id)
}

// TagNames — отсортированные имена тегов контакта.
func (s *Server) TagNames(contactID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[contactID]
	if !ok {
		return nil
	}
	byID := map[string]string{}
	for _, t := range s.tags[c.LocationID] {
		byID[t.ID] = t.Name
	}
	out := make([]string, 0, len(c.Tags))
	for _, id := range c.Tags {
		out = append(out, byID[id])
	}
	sort.Strings(out)
	return out
}

func (s *Server) Tags(loc string) []crm.Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crm.Tag(nil), s.tags[loc]...)
}

func (s *Server) Pipelines(loc string) []crm.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crm.Pipeline(nil), s.pipelines[loc]...)
}

func (s *Server) Opportunity(contactID, pipelineID string) (crm.Opportunity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.opportunities[contactID+"/"+pipelineID]
	if !ok {
		return crm.Opportunity{}, false
	}
	return *op, true
}

func (s *Server) Triggered() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Trigger(nil), s.triggered...)
}

func (s *Server) Location(id string) (crm.Location, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locations[id]
	if !ok {
		return crm.Location{}, false
	}
	return *l, true
}
