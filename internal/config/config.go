// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config provides configuration management for sirseer-collect with
// support for multiple configuration sources and a well-defined precedence
// order.
//
// Configuration sources (in precedence order, highest to lowest):
//  1. Command-line flags
//  2. Environment variables (including values loaded from .env files)
//  3. Repository-specific configuration
//  4. Global configuration file
//  5. Built-in defaults
//
// The package supports YAML configuration files and provides automatic
// discovery of configuration in standard locations. Repository-specific
// overrides allow fine-grained control of page sizes, page ceilings and the
// set of collected resources.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// maxPageSize is the largest per_page value GitHub's REST API honors.
const maxPageSize = 100

// LoadConfig loads configuration from multiple sources and applies them in
// the correct precedence order. If configPath is provided, it loads from
// that specific file. Otherwise, it searches standard locations:
//   - .sirseer-collect.yaml (current directory)
//   - .sirseer-collect.yml (current directory)
//   - ~/.sirseer/collect.yaml
//   - ~/.sirseer/collect.yml
//
// .env files in the current directory and ~/.sirseer are loaded into the
// process environment first; they never replace variables that are already
// set. Environment variables are applied after loading the config file.
//
// Returns an error if the specified config file cannot be loaded, but will
// succeed with defaults if no config file is found in standard locations.
func LoadConfig(configPath string) (*Config, error) {
	loadDotEnv()

	cfg := DefaultConfig()

	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		for _, path := range defaultConfigPaths() {
			if _, err := os.Stat(path); err == nil {
				if err := loadConfigFile(path, cfg); err != nil {
					return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
				}
				break
			}
		}
	}

	applyEnvOverrides(cfg)

	cfg.Defaults.StateDir = expandPath(cfg.Defaults.StateDir)
	cfg.Defaults.DataDir = expandPath(cfg.Defaults.DataDir)

	return cfg, nil
}

// LoadConfigForRepo loads configuration and folds the overrides configured
// for repo (in "owner/repo" format) into the defaults.
func LoadConfigForRepo(configPath, repo string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyRepoOverrides(repo)
	return cfg, nil
}

// ApplyRepoOverrides copies the non-zero repository overrides for repo into
// the defaults section.
func (c *Config) ApplyRepoOverrides(repo string) {
	repoConfig, ok := c.Repositories[repo]
	if !ok {
		return
	}
	if repoConfig.PageSize > 0 {
		c.Defaults.PageSize = repoConfig.PageSize
	}
	if repoConfig.MaxPages > 0 {
		c.Defaults.MaxPages = repoConfig.MaxPages
	}
	if len(repoConfig.Resources) > 0 {
		c.Defaults.Resources = slices.Clone(repoConfig.Resources)
	}
	if repoConfig.SearchQuery != "" {
		c.Defaults.SearchQuery = repoConfig.SearchQuery
	}
}

func defaultConfigPaths() []string {
	paths := []string{".sirseer-collect.yaml", ".sirseer-collect.yml"}
	if home, err := homedir.Dir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".sirseer", "collect.yaml"),
			filepath.Join(home, ".sirseer", "collect.yml"),
		)
	}
	return paths
}

// loadDotEnv loads optional .env files; missing files are ignored.
func loadDotEnv() {
	_ = godotenv.Load(".env")
	if home, err := homedir.Dir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".sirseer", ".env"))
	}
}

// loadConfigFile reads and parses a YAML config file
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// GitHub endpoints
	if endpoint := os.Getenv("GITHUB_API_ENDPOINT"); endpoint != "" {
		cfg.GitHub.APIEndpoint = endpoint
	}
	if endpoint := os.Getenv("GITHUB_GRAPHQL_ENDPOINT"); endpoint != "" {
		cfg.GitHub.GraphQLEndpoint = endpoint
	}

	// Defaults
	if pageSize := os.Getenv("SIRSEER_PAGE_SIZE"); pageSize != "" {
		if size, err := parsePositiveInt(pageSize); err == nil {
			cfg.Defaults.PageSize = size
		}
	}
	if maxPages := os.Getenv("SIRSEER_MAX_PAGES"); maxPages != "" {
		if n, err := parsePositiveInt(maxPages); err == nil {
			cfg.Defaults.MaxPages = n
		}
	}
	if interval := os.Getenv("SIRSEER_REQUEST_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d >= 0 {
			cfg.Defaults.RequestInterval = d
		}
	}
	if stateDir := os.Getenv("SIRSEER_STATE_DIR"); stateDir != "" {
		cfg.Defaults.StateDir = stateDir
	}
	if dataDir := os.Getenv("SIRSEER_DATA_DIR"); dataDir != "" {
		cfg.Defaults.DataDir = dataDir
	}

	// Rate limit settings
	if autoWait := os.Getenv("SIRSEER_RATE_LIMIT_AUTO_WAIT"); autoWait != "" {
		cfg.RateLimit.AutoWait = parseBool(autoWait)
	}
	if attempts := os.Getenv("SIRSEER_MAX_ATTEMPTS"); attempts != "" {
		if n, err := parsePositiveInt(attempts); err == nil {
			cfg.RateLimit.MaxAttempts = n
		}
	}

	// Checkpoint backend
	if backend := os.Getenv("SIRSEER_CHECKPOINT_BACKEND"); backend != "" {
		cfg.Checkpoint.Backend = strings.ToLower(backend)
	}
	if addr := os.Getenv("SIRSEER_REDIS_ADDR"); addr != "" {
		cfg.Checkpoint.RedisAddr = addr
	}

	// Logging
	if level := os.Getenv("SIRSEER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if expanded, err := homedir.Expand(path); err == nil {
		path = expanded
	}
	return os.ExpandEnv(path)
}

// parsePositiveInt parses a string to a positive integer
func parsePositiveInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	if err != nil {
		return 0, fmt.Errorf("failed to parse integer from '%s': %w", s, err)
	}
	if i <= 0 {
		return 0, fmt.Errorf("value must be positive, got: %d", i)
	}
	return i, nil
}

// parseBool parses various boolean representations
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}

// GetPageSize returns the effective page size for a repository, taking
// into account repository-specific overrides.
func (c *Config) GetPageSize(repo string) int {
	if repoConfig, ok := c.Repositories[repo]; ok && repoConfig.PageSize > 0 {
		return repoConfig.PageSize
	}
	return c.Defaults.PageSize
}

// GetResources returns the resources to collect for a repository.
func (c *Config) GetResources(repo string) []string {
	if repoConfig, ok := c.Repositories[repo]; ok && len(repoConfig.Resources) > 0 {
		return repoConfig.Resources
	}
	return c.Defaults.Resources
}

// Validate checks the whole configuration and reports every problem found,
// joined into one error. It should be called after flags have been applied.
func (c *Config) Validate() error {
	var errs []error

	if c.Defaults.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("page size must be positive, got: %d", c.Defaults.PageSize))
	}
	if c.Defaults.PageSize > maxPageSize {
		errs = append(errs, fmt.Errorf("page size %d exceeds GitHub API limit of %d", c.Defaults.PageSize, maxPageSize))
	}
	if c.Defaults.MaxPages < 0 {
		errs = append(errs, fmt.Errorf("max pages cannot be negative, got: %d", c.Defaults.MaxPages))
	}
	if c.Defaults.RequestInterval < 0 {
		errs = append(errs, errors.New("request interval cannot be negative"))
	}
	if c.GitHub.APIEndpoint == "" {
		errs = append(errs, errors.New("GitHub API endpoint cannot be empty"))
	}
	if c.GitHub.GraphQLEndpoint == "" {
		errs = append(errs, errors.New("GitHub GraphQL endpoint cannot be empty"))
	}
	if c.Defaults.DataDir == "" {
		errs = append(errs, errors.New("data directory cannot be empty"))
	}
	if c.Defaults.StateDir == "" {
		errs = append(errs, errors.New("state directory cannot be empty"))
	}

	switch c.Defaults.OutputFormat {
	case FormatJSON, FormatNDJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown output format %q", c.Defaults.OutputFormat))
	}

	if len(c.Defaults.Resources) == 0 {
		errs = append(errs, errors.New("at least one resource must be configured"))
	}
	for _, r := range c.Defaults.Resources {
		switch r {
		case ResourceIssues, ResourcePulls, ResourceContributors:
		case ResourceSearch:
			if strings.TrimSpace(c.Defaults.SearchQuery) == "" {
				errs = append(errs, errors.New("search resource requires a search query"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown resource %q", r))
		}
	}

	if c.RateLimit.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got: %d", c.RateLimit.MaxAttempts))
	}
	if c.RateLimit.BaseDelay <= 0 {
		errs = append(errs, errors.New("base delay must be positive"))
	}
	if c.RateLimit.MaxDelay < c.RateLimit.BaseDelay {
		errs = append(errs, errors.New("max delay must not be smaller than base delay"))
	}
	if c.RateLimit.MinimumWait < 0 {
		errs = append(errs, errors.New("minimum wait cannot be negative"))
	}

	switch c.Checkpoint.Backend {
	case BackendFile:
	case BackendRedis:
		if c.Checkpoint.RedisAddr == "" {
			errs = append(errs, errors.New("redis checkpoint backend requires redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown checkpoint backend %q", c.Checkpoint.Backend))
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}
