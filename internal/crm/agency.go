package crm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// AgencyClient — агентский уровень: управление субаккаунтами (локациями)
// и выпуск токенов для них. Ходит с отдельным, более привилегированным токеном.
type AgencyClient struct {
	t          *transport
	credential string
	companyID  string
}

func NewAgency(opts Options, credential, companyID string) (*AgencyClient, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(companyID) == "" {
		return nil, ErrMissingCompany
	}
	return &AgencyClient{t: newTransport(opts), credential: credential, companyID: companyID}, nil
}

func (a *AgencyClient) call(ctx context.Context, method, endpoint string, opts RequestOptions, out any) error {
	body, err := a.t.do(ctx, a.credential, method, endpoint, opts)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func (a *AgencyClient) CreateLocation(ctx context.Context, in LocationInput) (*Location, error) {
	body := map[string]any{
		"companyId": a.companyID,
		"name":      in.Name,
	}
	if in.Email != "" {
		body["email"] = in.Email
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}
	if in.Website != "" {
		body["website"] = in.Website
	}
	if in.Timezone != "" {
		body["timezone"] = in.Timezone
	}
	if in.Settings != nil {
		body["settings"] = in.Settings
	}
	var loc Location
	if err := a.call(ctx, http.MethodPost, "/locations/", RequestOptions{Body: body}, &loc); err != nil {
		return nil, err
	}
	if loc.ID == "" {
		return nil, fmt.Errorf("crm create location %q: empty id in response", in.Name)
	}
	return &loc, nil
}

func (a *AgencyClient) ListLocations(ctx context.Context, limit int) ([]Location, error) {
	if limit <= 0 {
		limit = 100
	}
	var env struct {
		Locations []Location `json:"locations"`
	}
	err := a.call(ctx, http.MethodGet, "/locations/search", RequestOptions{Query: map[string]string{
		"companyId": a.companyID,
		"limit":     strconv.Itoa(limit),
	}}, &env)
	if err != nil {
		return nil, err
	}
	return env.Locations, nil
}

func (a *AgencyClient) UpdateLocation(ctx context.Context, id string, in LocationInput) (*Location, error) {
	body := map[string]any{
		"companyId": a.companyID,
		"name":      in.Name,
	}
	if in.Email != "" {
		body["email"] = in.Email
	}
	if in.Settings != nil {
		body["settings"] = in.Settings
	}
	var loc Location
	if err := a.call(ctx, http.MethodPut, "/locations/"+url.PathEscape(id), RequestOptions{Body: body}, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func (a *AgencyClient) DeleteLocation(ctx context.Context, id string) error {
	_, err := a.t.do(ctx, a.credential, http.MethodDelete, "/locations/"+url.PathEscape(id), RequestOptions{
		Query: map[string]string{"deleteTwilioAccount": "false"},
	})
	return err
}

// LocationToken выпускает токен, которым дальше ходит Client этой локации.
func (a *AgencyClient) LocationToken(ctx context.Context, locationID string) (*LocationToken, error) {
	var tok LocationToken
	err := a.call(ctx, http.MethodPost, "/oauth/locationToken", RequestOptions{Form: map[string]string{
		"companyId":  a.companyID,
		"locationId": locationID,
	}}, &tok)
	if err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("crm location token for %s: empty access_token", locationID)
	}
	return &tok, nil
}
