package crm

import "time"

// Contact — контакт внутри одной локации. Tags — идентификаторы тегов.
type Contact struct {
	ID           string         `json:"id"`
	LocationID   string         `json:"locationId"`
	Email        string         `json:"email"`
	Name         string         `json:"name,omitempty"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"customFields"`
	DateAdded    *time.Time     `json:"dateAdded,omitempty"`
}

// HasTag — есть ли у контакта тег с данным id.
func (c *Contact) HasTag(tagID string) bool {
	for _, t := range c.Tags {
		if t == tagID {
			return true
		}
	}
	return false
}

type ContactInput struct {
	Email        string         `json:"email"`
	Name         string         `json:"name,omitempty"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	Phone        string         `json:"phone,omitempty"`
	CustomFields map[string]any `json:"customFields,omitempty"`
}

type Tag struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	LocationID string `json:"locationId,omitempty"`
}

type Stage struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type Pipeline struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Stages []Stage `json:"stages"`
}

// FirstStage — этап с минимальной позицией.
func (p *Pipeline) FirstStage() (Stage, bool) {
	if len(p.Stages) == 0 {
		return Stage{}, false
	}
	first := p.Stages[0]
	for _, s := range p.Stages[1:] {
		if s.Position < first.Position {
			first = s
		}
	}
	return first, true
}

type Opportunity struct {
	ID              string `json:"id"`
	ContactID       string `json:"contactId"`
	PipelineID      string `json:"pipelineId"`
	PipelineStageID string `json:"pipelineStageId"`
	Status          string `json:"status"`
	Name            string `json:"name,omitempty"`
}

// Location — субаккаунт в агентском аккаунте CRM.
type Location struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"companyId"`
	Name      string         `json:"name"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Website   string         `json:"website,omitempty"`
	Timezone  string         `json:"timezone,omitempty"`
	Settings  map[string]any `json:"settings,omitempty"`
}

type LocationInput struct {
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Website  string         `json:"website,omitempty"`
	Timezone string         `json:"timezone,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
}

type LocationToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	LocationID  string `json:"locationId"`
}
