// Package tenancy решает, в какую локацию CRM и с каким токеном ходить за пользователя.
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coursesync/internal/models"
	"coursesync/internal/repo"
)

var (
	// ErrConfiguration — нет токена или локации; поднимается до любого сетевого вызова.
	ErrConfiguration  = errors.New("crm configuration error")
	ErrTenantInactive = errors.New("tenant is not active")
)

// Location — куда и с чем ходить в CRM. TenantID пуст для общей локации.
type Location struct {
	TenantID   string
	LocationID string
	Credential string
}

func (l Location) IsDefault() bool { return l.TenantID == "" }

type UserGetter interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

type TenantGetter interface {
	Get(ctx context.Context, id string) (*models.TenantAccount, error)
}

// Defaults — общая локация, задаётся один раз на процесс.
type Defaults struct {
	LocationID string
	Credential string
}

// Resolver ничего не пишет: только читает пользователя и тенанта.
type Resolver struct {
	users    UserGetter
	tenants  TenantGetter
	defaults Defaults
}

func NewResolver(users UserGetter, tenants TenantGetter, defaults Defaults) *Resolver {
	return &Resolver{users: users, tenants: tenants, defaults: defaults}
}

func (r *Resolver) ResolveLocation(ctx context.Context, userID string) (Location, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		return Location{}, fmt.Errorf("load user %s: %w", userID, err)
	}
	return r.ResolveForUser(ctx, u)
}

// ResolveForUser — то же для уже загруженного пользователя.
// Висячая ссылка на удалённого тенанта уводит на общую локацию,
// любая другая ошибка чтения тенанта — ErrConfiguration.
func (r *Resolver) ResolveForUser(ctx context.Context, u *models.User) (Location, error) {
	if u.TenantID != nil && *u.TenantID != "" {
		t, err := r.tenants.Get(ctx, *u.TenantID)
		switch {
		case err == nil:
			return checked(Location{
				TenantID:   t.ID,
				LocationID: t.ExternalLocationID,
				Credential: t.ExternalCredential,
			})
		case errors.Is(err, repo.ErrNotFound):
			// тенант удалён, пользователь идёт как обычный
		default:
			return Location{}, fmt.Errorf("%w: load tenant %s: %w", ErrConfiguration, *u.TenantID, err)
		}
	}
	return checked(Location{LocationID: r.defaults.LocationID, Credential: r.defaults.Credential})
}

func checked(loc Location) (Location, error) {
	scope := "default location"
	if !loc.IsDefault() {
		scope = "tenant " + loc.TenantID
	}
	if strings.TrimSpace(loc.LocationID) == "" {
		return Location{}, fmt.Errorf("%w: %s has no location id", ErrConfiguration, scope)
	}
	if strings.TrimSpace(loc.Credential) == "" {
		return Location{}, fmt.Errorf("%w: %s has no credential", ErrConfiguration, scope)
	}
	return loc, nil
}
