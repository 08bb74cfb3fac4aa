// Copyright (c) 2026 Muso Health. All rights reserved.
// SPDX-License-Identifier: MIT

package formaudit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes the source-control repository holding the form
// definitions.
type SourceConfig struct {
	// Owner is the GitHub organization or user (default "musohealth").
	Owner string `yaml:"owner"`

	// Repo is the repository name (default "cht-configs").
	Repo string `yaml:"repo"`

	// Branch is the branch forms are deployed from (default "master").
	Branch string `yaml:"branch"`

	// TokenEnv names the environment variable carrying the GitHub
	// token (default "GITHUB_PAT").
	TokenEnv string `yaml:"token_env"`
}

// WarehouseConfig describes the BigQuery side.
type WarehouseConfig struct {
	// Project is the warehouse project id (default "musoitproducts").
	Project string `yaml:"project"`

	// Datasets overrides the per-country dataset names. Keys are
	// upper-cased country codes.
	Datasets map[string]string `yaml:"datasets"`
}

// OracleConfig describes the generative model behind the similarity
// oracle.
type OracleConfig struct {
	// Project is the Vertex AI project id (default "musohealth").
	Project string `yaml:"project"`

	// Location is the Vertex AI region (default "us-central1").
	Location string `yaml:"location"`

	// Model is the model id (default "gemini-2.5-flash").
	Model string `yaml:"model"`

	// MaxOutputTokens caps each response (default 1024).
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// InstanceConfig describes the app instances whose installed forms are
// audited.
type InstanceConfig struct {
	// BaseURLs maps an upper-cased country code to the instance URL.
	BaseURLs map[string]string `yaml:"base_urls"`

	// UsernameEnvs and PasswordEnvs name the environment variables
	// carrying each instance's basic-auth credentials.
	UsernameEnvs map[string]string `yaml:"username_envs"`
	PasswordEnvs map[string]string `yaml:"password_envs"`
}

// Config holds all formaudit settings. Callers either construct one in
// Go code or place a formaudit.yaml next to the binary and call
// LoadConfig.
type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Instance  InstanceConfig  `yaml:"instance"`
}

// DefaultConfigFile is the conventional configuration filename.
const DefaultConfigFile = "formaudit.yaml"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// WriteDefaultConfig writes a formaudit.yaml at the given path with all
// defaults filled in. Returns an error if the file already exists.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	cfg := DefaultConfig()
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshalling default config: %w", err)
	}

	header := "# formaudit configuration. Edit fields below.\n\n"
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

func (c *Config) applyDefaults() {
	if c.Source.Owner == "" {
		c.Source.Owner = "musohealth"
	}
	if c.Source.Repo == "" {
		c.Source.Repo = "cht-configs"
	}
	if c.Source.Branch == "" {
		c.Source.Branch = SourceBranch
	}
	if c.Source.TokenEnv == "" {
		c.Source.TokenEnv = "GITHUB_PAT"
	}
	if c.Warehouse.Project == "" {
		c.Warehouse.Project = WarehouseProject
	}
	if len(c.Warehouse.Datasets) == 0 {
		c.Warehouse.Datasets = map[string]string{
			"MALI": "cht_mali_prod",
			"RCI":  "cht_rci_prod",
		}
	}
	if c.Oracle.Project == "" {
		c.Oracle.Project = "musohealth"
	}
	if c.Oracle.Location == "" {
		c.Oracle.Location = "us-central1"
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = "gemini-2.5-flash"
	}
	if c.Oracle.MaxOutputTokens == 0 {
		c.Oracle.MaxOutputTokens = 1024
	}
	if len(c.Instance.BaseURLs) == 0 {
		c.Instance.BaseURLs = map[string]string{
			"MALI": "https://cht.mali.prod.musohealth.app/",
			"RCI":  "https://cht.rci.app.musohealth.app/",
		}
	}
	if len(c.Instance.UsernameEnvs) == 0 {
		c.Instance.UsernameEnvs = map[string]string{
			"MALI": "CHT_MALI_USERNAME",
			"RCI":  "CHT_RCI_USERNAME",
		}
	}
	if len(c.Instance.PasswordEnvs) == 0 {
		c.Instance.PasswordEnvs = map[string]string{
			"MALI": "CHT_MALI_PASSWORD",
			"RCI":  "CHT_RCI_PASSWORD",
		}
	}
}

// LoadConfig reads a configuration YAML file and returns a Config with
// defaults applied.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
