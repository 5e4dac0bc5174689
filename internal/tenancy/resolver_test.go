package tenancy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursesync/internal/models"
	"coursesync/internal/repo"
)

var defaults = Defaults{LocationID: "loc-default", Credential: "default-token"}

func tenant(id, loc, cred string) *models.TenantAccount {
	return &models.TenantAccount{
		Base:               models.Base{ID: id},
		ExternalLocationID: loc,
		ExternalCredential: cred,
		Status:             models.TenantStatusActive,
	}
}

func TestResolve_NoTenantUsesDefault(t *testing.T) {
	users := newFakeUsers(&models.User{Base: models.Base{ID: "u1"}, Email: "a@x.io"})
	r := NewResolver(users, newFakeTenants(), defaults)

	loc, err := r.ResolveLocation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Location{LocationID: "loc-default", Credential: "default-token"}, loc)
	assert.True(t, loc.IsDefault())
}

func TestResolve_TenantWins(t *testing.T) {
	users := newFakeUsers(&models.User{Base: models.Base{ID: "u1"}, TenantID: strptr("t1")})
	r := NewResolver(users, newFakeTenants(tenant("t1", "loc-t1", "t1-token")), defaults)

	loc, err := r.ResolveLocation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, Location{TenantID: "t1", LocationID: "loc-t1", Credential: "t1-token"}, loc)
}

func TestResolve_DanglingTenantFallsBack(t *testing.T) {
	users := newFakeUsers(&models.User{Base: models.Base{ID: "u1"}, TenantID: strptr("gone")})
	r := NewResolver(users, newFakeTenants(), defaults)

	loc, err := r.ResolveLocation(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "loc-default", loc.LocationID)
}

func TestResolve_TenantLookupFailureIsConfiguration(t *testing.T) {
	users := newFakeUsers(&models.User{Base: models.Base{ID: "u1"}, TenantID: strptr("t1")})
	tenants := newFakeTenants()
	tenants.getErr = errors.New("connection reset")
	r := NewResolver(users, tenants, defaults)

	_, err := r.ResolveLocation(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorContains(t, err, "connection reset")
}

func TestResolve_MissingCredentials(t *testing.T) {
	users := newFakeUsers(
		&models.User{Base: models.Base{ID: "u1"}},
		&models.User{Base: models.Base{ID: "u2"}, TenantID: strptr("t1")},
	)
	tenants := newFakeTenants(tenant("t1", "loc-t1", ""))

	_, err := NewResolver(users, tenants, Defaults{LocationID: "loc-default"}).ResolveLocation(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewResolver(users, tenants, Defaults{Credential: "x"}).ResolveLocation(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewResolver(users, tenants, defaults).ResolveLocation(context.Background(), "u2")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestResolve_UnknownUser(t *testing.T) {
	r := NewResolver(newFakeUsers(), newFakeTenants(), defaults)
	_, err := r.ResolveLocation(context.Background(), "nope")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}
