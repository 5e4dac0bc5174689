package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Address)
	assert.Equal(t, "8080", cfg.Server.HTTPPort)
	assert.Equal(t, "https://services.leadconnectorhq.com", cfg.CRM.BaseURL)
	assert.Equal(t, "2021-07-28", cfg.CRM.APIVersion)
	assert.Equal(t, int64(100000), cfg.Sync.MembershipThreshold)
	assert.Equal(t, 24*time.Hour, cfg.Sync.ContactCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Sync.LockTTL)
	assert.Empty(t, cfg.CRM.DefaultCredential)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CRM_DEFAULT_LOCATION_ID", "loc-default")
	t.Setenv("CRM_DEFAULT_CREDENTIAL", "pit-123")
	t.Setenv("CRM_DEFAULT_AUTOMATION_ID", "wf-welcome")
	t.Setenv("SYNC_MEMBERSHIP_THRESHOLD", "50000")
	t.Setenv("SYNC_CONTACT_CACHE_TTL", "1h")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "loc-default", cfg.CRM.DefaultLocationID)
	assert.Equal(t, "pit-123", cfg.CRM.DefaultCredential)
	assert.Equal(t, "wf-welcome", cfg.CRM.DefaultAutomationID)
	assert.Equal(t, int64(50000), cfg.Sync.MembershipThreshold)
	assert.Equal(t, time.Hour, cfg.Sync.ContactCacheTTL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
}

func TestLoad_RejectsBadThreshold(t *testing.T) {
	t.Setenv("SYNC_MEMBERSHIP_THRESHOLD", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "membership_threshold")
}
