package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-cleanhttp"

	"coursesync/internal/logs"
)

// API — то, что движку синхронизации нужно от CRM в рамках одной локации.
type API interface {
	LocationID() string
	Request(ctx context.Context, method, endpoint string, opts RequestOptions) ([]byte, error)

	FindContactByEmail(ctx context.Context, email string) (*Contact, error)
	CreateOrUpdateContact(ctx context.Context, in ContactInput) (*Contact, error)
	GetContactByID(ctx context.Context, id string) (*Contact, error)

	ListTags(ctx context.Context) ([]Tag, error)
	GetOrCreateTag(ctx context.Context, name string) (*Tag, error)
	AddTagsToContact(ctx context.Context, contactID string, names []string) error
	RemoveTagsFromContact(ctx context.Context, contactID string, tagIDs []string) error
	UpdateCustomFields(ctx context.Context, contactID string, fields map[string]any) (*Contact, error)

	GetPipelines(ctx context.Context) ([]Pipeline, error)
	CreatePipeline(ctx context.Context, name string, stages []string) (*Pipeline, error)
	MoveContactToStage(ctx context.Context, contactID, pipelineID, stageID string) (*Opportunity, error)
	TriggerAutomation(ctx context.Context, contactID, automationID string) error
}

// Options — общие параметры транспорта.
// Таймаут не задаётся: работают только таймауты транспорта по умолчанию.
type Options struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

type RequestOptions struct {
	Query map[string]string
	Body  any
	Form  map[string]string
}

type transport struct {
	rc      *resty.Client
	version string
}

func newTransport(opts Options) *transport {
	hc := opts.HTTPClient
	if hc == nil {
		hc = cleanhttp.DefaultPooledClient()
	}
	rc := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetLogger(logs.Logger)
	return &transport{rc: rc, version: opts.APIVersion}
}

// do — единственная точка выхода в сеть. Ретраев нет.
func (t *transport) do(ctx context.Context, token, method, endpoint string, opts RequestOptions) ([]byte, error) {
	req := t.rc.R().
		SetContext(ctx).
		SetAuthToken(token)
	if t.version != "" {
		req.SetHeader("Version", t.version)
	}
	if len(opts.Query) > 0 {
		req.SetQueryParams(opts.Query)
	}
	switch {
	case opts.Form != nil:
		req.SetFormData(opts.Form)
	case opts.Body != nil:
		req.SetHeader("Content-Type", "application/json").SetBody(opts.Body)
	}

	resp, err := req.Execute(method, endpoint)
	if err != nil {
		return nil, fmt.Errorf("crm %s %s: %w", method, endpoint, err)
	}
	if !resp.IsSuccess() {
		return nil, &APIError{
			Method:     method,
			Path:       endpoint,
			StatusCode: resp.StatusCode(),
			Body:       resp.String(),
		}
	}
	return resp.Body(), nil
}

func decode(body []byte, out any) error {
	if len(body) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("crm decode: %w", err)
	}
	return nil
}

// Client — клиент CRM, привязанный к паре (credential, locationId).
// Состояния между вызовами не держит, можно переиспользовать конкурентно.
type Client struct {
	t          *transport
	credential string
	locationID string
}

func New(opts Options, credential, locationID string) (*Client, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(locationID) == "" {
		return nil, ErrMissingLocation
	}
	return &Client{t: newTransport(opts), credential: credential, locationID: locationID}, nil
}

func (c *Client) LocationID() string { return c.locationID }

// Request — произвольный авторизованный запрос.
func (c *Client) Request(ctx context.Context, method, endpoint string, opts RequestOptions) ([]byte, error) {
	return c.t.do(ctx, c.credential, method, endpoint, opts)
}

func (c *Client) call(ctx context.Context, method, endpoint string, opts RequestOptions, out any) error {
	body, err := c.Request(ctx, method, endpoint, opts)
	if err != nil {
		return err
	}
	return decode(body, out)
}

type contactEnvelope struct {
	Contact *Contact `json:"contact"`
	New     bool     `json:"new,omitempty"`
}

// FindContactByEmail возвращает (nil, nil), если контакта нет.
func (c *Client) FindContactByEmail(ctx context.Context, email string) (*Contact, error) {
	var env contactEnvelope
	err := c.call(ctx, http.MethodGet, "/contacts/search/duplicate", RequestOptions{
		Query: map[string]string{"locationId": c.locationID, "email": email},
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.Contact, nil
}

func (c *Client) CreateOrUpdateContact(ctx context.Context, in ContactInput) (*Contact, error) {
	body := map[string]any{
		"locationId": c.locationID,
		"email":      in.Email,
	}
	if in.Name != "" {
		body["name"] = in.Name
	}
	if in.FirstName != "" {
		body["firstName"] = in.FirstName
	}
	if in.LastName != "" {
		body["lastName"] = in.LastName
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}
	if in.CustomFields != nil {
		body["customFields"] = in.CustomFields
	}
	var env contactEnvelope
	if err := c.call(ctx, http.MethodPost, "/contacts/upsert", RequestOptions{Body: body}, &env); err != nil {
		return nil, err
	}
	if env.Contact == nil {
		return nil, fmt.Errorf("crm upsert: empty contact in response")
	}
	return env.Contact, nil
}

func (c *Client) GetContactByID(ctx context.Context, id string) (*Contact, error) {
	var env contactEnvelope
	if err := c.call(ctx, http.MethodGet, "/contacts/"+url.PathEscape(id), RequestOptions{}, &env); err != nil {
		return nil, err
	}
	if env.Contact == nil {
		return nil, &APIError{Method: http.MethodGet, Path: "/contacts/" + id, StatusCode: http.StatusNotFound, Body: "empty contact"}
	}
	return env.Contact, nil
}

func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var env struct {
		Tags []Tag `json:"tags"`
	}
	endpoint := "/locations/" + url.PathEscape(c.locationID) + "/tags"
	if err := c.call(ctx, http.MethodGet, endpoint, RequestOptions{}, &env); err != nil {
		return nil, err
	}
	return env.Tags, nil
}

// GetOrCreateTag не атомарен: два параллельных вызова с новым именем
// могут создать два одноимённых тега.
func (c *Client) GetOrCreateTag(ctx context.Context, name string) (*Tag, error) {
	tags, err := c.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tags {
		if strings.EqualFold(tags[i].Name, name) {
			return &tags[i], nil
		}
	}
	var env struct {
		Tag *Tag `json:"tag"`
	}
	endpoint := "/locations/" + url.PathEscape(c.locationID) + "/tags"
	if err := c.call(ctx, http.MethodPost, endpoint, RequestOptions{Body: map[string]string{"name": name}}, &env); err != nil {
		return nil, err
	}
	if env.Tag == nil {
		return nil, fmt.Errorf("crm create tag %q: empty tag in response", name)
	}
	return env.Tag, nil
}

// AddTagsToContact резолвит имена в id (создавая недостающие теги) и вешает их на контакт.
func (c *Client) AddTagsToContact(ctx context.Context, contactID string, names []string) error {
	ids := make([]string, 0, len(names))
	for _, n := range names {
		tag, err := c.GetOrCreateTag(ctx, n)
		if err != nil {
			return err
		}
		ids = append(ids, tag.ID)
	}
	endpoint := "/contacts/" + url.PathEscape(contactID) + "/tags"
	_, err := c.Request(ctx, http.MethodPost, endpoint, RequestOptions{Body: map[string][]string{"tags": ids}})
	return err
}

func (c *Client) RemoveTagsFromContact(ctx context.Context, contactID string, tagIDs []string) error {
	endpoint := "/contacts/" + url.PathEscape(contactID) + "/tags"
	_, err := c.Request(ctx, http.MethodDelete, endpoint, RequestOptions{Body: map[string][]string{"tags": tagIDs}})
	return err
}

// UpdateCustomFields пишет карту целиком; слияние — забота вызывающего.
func (c *Client) UpdateCustomFields(ctx context.Context, contactID string, fields map[string]any) (*Contact, error) {
	var env contactEnvelope
	endpoint := "/contacts/" + url.PathEscape(contactID)
	if err := c.call(ctx, http.MethodPut, endpoint, RequestOptions{Body: map[string]any{"customFields": fields}}, &env); err != nil {
		return nil, err
	}
	return env.Contact, nil
}

func (c *Client) GetPipelines(ctx context.Context) ([]Pipeline, error) {
	var env struct {
		Pipelines []Pipeline `json:"pipelines"`
	}
	err := c.call(ctx, http.MethodGet, "/opportunities/pipelines", RequestOptions{
		Query: map[string]string{"locationId": c.locationID},
	}, &env)
	if err != nil {
		return nil, err
	}
	return env.Pipelines, nil
}

// CreatePipeline создаёт воронку; позиции этапов — в порядке stages.
func (c *Client) CreatePipeline(ctx context.Context, name string, stages []string) (*Pipeline, error) {
	st := make([]Stage, 0, len(stages))
	for i, s := range stages {
		st = append(st, Stage{Name: s, Position: i})
	}
	var env struct {
		Pipeline *Pipeline `json:"pipeline"`
	}
	err := c.call(ctx, http.MethodPost, "/opportunities/pipelines", RequestOptions{Body: map[string]any{
		"locationId": c.locationID,
		"name":       name,
		"stages":     st,
	}}, &env)
	if err != nil {
		return nil, err
	}
	if env.Pipeline == nil {
		return nil, fmt.Errorf("crm create pipeline %q: empty pipeline in response", name)
	}
	return env.Pipeline, nil
}

// MoveContactToStage не проверяет, что этап принадлежит воронке.
func (c *Client) MoveContactToStage(ctx context.Context, contactID, pipelineID, stageID string) (*Opportunity, error) {
	var env struct {
		Opportunity *Opportunity `json:"opportunity"`
	}
	err := c.call(ctx, http.MethodPost, "/opportunities/upsert", RequestOptions{Body: map[string]any{
		"locationId":      c.locationID,
		"contactId":       contactID,
		"pipelineId":      pipelineID,
		"pipelineStageId": stageID,
		"status":          "open",
	}}, &env)
	if err != nil {
		return nil, err
	}
	return env.Opportunity, nil
}

func (c *Client) TriggerAutomation(ctx context.Context, contactID, automationID string) error {
	endpoint := "/contacts/" + url.PathEscape(contactID) + "/workflow/" + url.PathEscape(automationID)
	_, err := c.Request(ctx, http.MethodPost, endpoint, RequestOptions{Body: map[string]string{
		"eventStartTime": time.Now().UTC().Format(time.RFC3339),
	}})
	return err
}
