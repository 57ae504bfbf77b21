// Package config implements the YAML config file parser
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/ledgerlabs/snapstream/config/logger"
)

// DefaultRequestTimeout is the default timeout for a forwarded RPC
// request, covering dial, send and reading the full response.
const DefaultRequestTimeout = 10 * time.Second

// Config is the config root object
type Config struct {
	Snapshot Snapshot      `yaml:"snapshot"`
	RPC      RPC           `yaml:"rpc"`
	HTTP     HTTP          `yaml:"http"`
	Scan     Scan          `yaml:"scan"`
	Log      logger.Config `yaml:"log"`

	// Set to current version by main
	Version string `yaml:"-"`
}

// Snapshot locates the unpacked snapshot to serve from: either a local
// directory tree, or a blob storage backend holding the same layout.
// Exactly one of the two must be configured.
type Snapshot struct {
	Path    string  `yaml:"path"`
	Storage Storage `yaml:"storage"`
}

// Storage configures a blob storage backend. The options are passed to
// the backend as-is; for the s3 backend these include endpoint_url,
// bucket, access_key and secret_key.
type Storage struct {
	Type    string                 `yaml:"type"`
	Prefix  string                 `yaml:"prefix,omitempty"`
	Options map[string]interface{} `yaml:"options,omitempty"`
}

// RPC configures the JSON-RPC query service.
type RPC struct {
	Address string `yaml:"address"` // Address like ":8899"

	// TransactionForwardURL is the upstream RPC endpoint transaction
	// queries are forwarded to. Empty disables forwarding.
	TransactionForwardURL string `yaml:"transaction_forward_url"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// HTTP configures the HTTP server with Prometheus metrics, health and
// status page
type HTTP struct {
	Address string `yaml:"address"` // Address like ":8000"
}

// Scan configures the account index build.
type Scan struct {
	// ExpectedAccounts pre-sizes the index map. Zero is valid and
	// merely slower for large snapshots.
	ExpectedAccounts int `yaml:"expected_accounts"`

	// IndexPath, when set, is where serve looks for a previously
	// dumped index before falling back to a full scan, and where scan
	// writes one.
	IndexPath string `yaml:"index_path"`
}

// Check validates a Config instance
func (c Config) Check() error {
	if err := c.Log.Check(); err != nil {
		return err
	}
	hasPath := c.Snapshot.Path != ""
	hasStorage := c.Snapshot.Storage.Type != ""
	if hasPath == hasStorage {
		return fmt.Errorf("snapshot: exactly one of path and storage.type must be set")
	}
	if c.HTTP.Address != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Address); err != nil {
			return fmt.Errorf("http.address: %v", err)
		}
	}
	if c.RPC.Address != "" {
		if _, _, err := net.SplitHostPort(c.RPC.Address); err != nil {
			return fmt.Errorf("rpc.address: %v", err)
		}
	}
	if c.RPC.RequestTimeout < 100*time.Millisecond {
		return fmt.Errorf("rpc.request_timeout: too short timeout")
	}
	if c.Scan.ExpectedAccounts < 0 {
		return fmt.Errorf("scan.expected_accounts: must not be negative")
	}
	return nil
}

// String returns the config as a YAML string with secrets masked.
func (c Config) String() string {
	masked := c
	if len(c.Snapshot.Storage.Options) > 0 {
		opts := make(map[string]interface{}, len(c.Snapshot.Storage.Options))
		for k, v := range c.Snapshot.Storage.Options {
			if isSecretOption(k) {
				v = "***"
			}
			opts[k] = v
		}
		masked.Snapshot.Storage.Options = opts
	}
	y, err := yaml.Marshal(masked)
	if err != nil {
		logrus.Panicf("YAML marshal of config failed: %v", err) // Should never happen
	}
	return string(y)
}

func isSecretOption(key string) bool {
	key = strings.ToLower(key)
	return lo.SomeBy([]string{"secret", "password", "token"}, func(w string) bool {
		return strings.Contains(key, w)
	})
}

// LoadYAML loads config from YAML. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAML(yamlContents []byte, expandEnv bool) error {
	if expandEnv {
		yamlContents = []byte(os.ExpandEnv(string(yamlContents)))
	}
	return yaml.UnmarshalStrict(yamlContents, c)
}

// LoadYAMLFile loads config from a YAML file. Any set value overwrites any existing value,
// but omitted keys are untouched.
func (c *Config) LoadYAMLFile(fpath string, expandEnv bool) error {
	contents, err := os.ReadFile(fpath)
	if err != nil {
		return errors.Wrap(err, "open yaml file")
	}
	return c.LoadYAML(contents, expandEnv)
}

// Default returns a Config with default settings
func Default() Config {
	return Config{
		Log: logger.DefaultConfig,
		RPC: RPC{
			RequestTimeout: DefaultRequestTimeout,
		},
	}
}
