package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"sync", "enrollment"},
		{"sync", "purchase"},
		{"sync", "revoke"},
		{"audit"},
		{"tenants", "create"},
		{"tenants", "delete"},
		{"tenants", "assign"},
	} {
		cmd, rest, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Empty(t, rest, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	enr, _, err := rootCmd.Find([]string{"sync", "enrollment"})
	require.NoError(t, err)
	for _, f := range []string{"pipeline", "stage", "automation"} {
		assert.NotNil(t, enr.Flags().Lookup(f), f)
	}
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestSyncEnrollment_RequiresID(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"sync", "enrollment"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
