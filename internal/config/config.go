package config

import (
	"bytes"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the workspace config file.
const FileName = "ktdde.yml"

// Config models ktdde.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"server" json:"server"`
	Issuer struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
	} `yaml:"issuer" json:"issuer"`
	Credential struct {
		Contexts []string `yaml:"contexts" json:"contexts"`
	} `yaml:"credential" json:"credential"`
	Scenario struct {
		// File overrides the embedded scenario. Relative paths resolve
		// against the workspace.
		File  string `yaml:"file" json:"file,omitempty"`
		Watch bool   `yaml:"watch" json:"watch"`
	} `yaml:"scenario" json:"scenario"`
	Transform struct {
		Interval string `yaml:"interval" json:"interval"`
	} `yaml:"transform" json:"transform"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with ktdde config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Server.BasePath != "/" && strings.HasSuffix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must not end with /")
	}
	if c.Issuer.ID == "" {
		return fmt.Errorf("config.issuer.id is required")
	}
	if !strings.HasPrefix(c.Issuer.ID, "did:") {
		return fmt.Errorf("config.issuer.id must be a DID")
	}
	if c.Issuer.Name == "" {
		return fmt.Errorf("config.issuer.name is required")
	}
	if len(c.Credential.Contexts) == 0 {
		return fmt.Errorf("config.credential.contexts is required")
	}
	for i, ctx := range c.Credential.Contexts {
		u, err := url.Parse(ctx)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("credential context %d (%q) must be an https URL", i, ctx)
		}
	}
	if c.Scenario.Watch && c.Scenario.File == "" {
		return fmt.Errorf("config.scenario.watch requires config.scenario.file")
	}
	if _, err := c.TransformInterval(); err != nil {
		return err
	}
	return nil
}

// TransformInterval parses transform.interval.
func (c *Config) TransformInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Transform.Interval)
	if err != nil {
		return 0, fmt.Errorf("config.transform.interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config.transform.interval must not be negative")
	}
	return d, nil
}

// ScenarioPath resolves scenario.file against workspace. Empty means the
// embedded scenario.
func (c *Config) ScenarioPath(workspace string) string {
	if c.Scenario.File == "" {
		return ""
	}
	if filepath.IsAbs(c.Scenario.File) {
		return c.Scenario.File
	}
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, c.Scenario.File)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing
// sections keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

issuer:
  id: did:web:nordic-timber.fi
  name: Nordic Timber Oy

credential:
  contexts:
    - https://www.w3.org/ns/credentials/v2
    - https://iri.suomi.fi/context/ktdde/v1

scenario:
  # file: scenario.yaml
  watch: false

transform:
  interval: 1s
`
