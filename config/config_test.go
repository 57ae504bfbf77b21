package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
snapshot:
  path: /srv/snapshots/unpacked
rpc:
  address: ":8899"
  transaction_forward_url: "https://upstream.example.com/"
http:
  address: ":8000"
scan:
  expected_accounts: 1000000
`

func TestConfig_LoadYAML(t *testing.T) {
	c := Default()
	require.NoError(t, c.LoadYAML([]byte(testYAML), false))
	require.NoError(t, c.Check())

	assert.Equal(t, "/srv/snapshots/unpacked", c.Snapshot.Path)
	assert.Equal(t, ":8899", c.RPC.Address)
	assert.Equal(t, "https://upstream.example.com/", c.RPC.TransactionForwardURL)
	assert.Equal(t, 1000000, c.Scan.ExpectedAccounts)
	// Defaults survive a partial config.
	assert.Equal(t, DefaultRequestTimeout, c.RPC.RequestTimeout)
	assert.Equal(t, "info", c.Log.Level)
}

func TestConfig_LoadYAML_UnknownKey(t *testing.T) {
	c := Default()
	err := c.LoadYAML([]byte("snapshots:\n  path: /x\n"), false)
	assert.Error(t, err)
}

func TestConfig_ExpandEnv(t *testing.T) {
	t.Setenv("SNAP_PATH", "/data/snap")
	c := Default()
	require.NoError(t, c.LoadYAML([]byte("snapshot:\n  path: ${SNAP_PATH}\n"), true))
	assert.Equal(t, "/data/snap", c.Snapshot.Path)
}

func TestConfig_Check(t *testing.T) {
	base := func() Config {
		c := Default()
		require.NoError(t, c.LoadYAML([]byte(testYAML), false))
		return c
	}

	c := base()
	c.Snapshot.Path = ""
	assert.ErrorContains(t, c.Check(), "snapshot")

	c = base()
	c.Snapshot.Storage.Type = "s3" // both set
	assert.ErrorContains(t, c.Check(), "snapshot")

	c = base()
	c.HTTP.Address = "8000" // missing colon
	assert.ErrorContains(t, c.Check(), "http.address")

	c = base()
	c.RPC.RequestTimeout = time.Millisecond
	assert.ErrorContains(t, c.Check(), "rpc.request_timeout")

	c = base()
	c.Scan.ExpectedAccounts = -1
	assert.ErrorContains(t, c.Check(), "expected_accounts")
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	c := Default()
	c.Snapshot.Storage = Storage{
		Type: "s3",
		Options: map[string]interface{}{
			"bucket":     "snapshots",
			"access_key": "AKIA123",
			"secret_key": "very-secret-value",
		},
	}
	s := c.String()
	assert.Contains(t, s, "snapshots")
	assert.NotContains(t, s, "very-secret-value")
	assert.True(t, strings.Contains(s, "***"))
}
