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

// Package config types define the configuration structures used throughout
// sirseer-collect. These types represent settings that can be loaded from
// YAML configuration files, environment variables, or command-line flags.
package config

import "time"

// Resource names accepted in the resources lists.
const (
	ResourceIssues       = "issues"
	ResourcePulls        = "pulls"
	ResourceContributors = "contributors"
	ResourceSearch       = "search"
)

// Output formats for the persisted record files.
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// Checkpoint backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config represents the complete configuration for sirseer-collect.
// It consolidates settings from various sources and is passed explicitly
// to every component that needs it.
type Config struct {
	GitHub       GitHubConfig          `yaml:"github"`
	Defaults     DefaultsConfig        `yaml:"defaults"`
	Repositories map[string]RepoConfig `yaml:"repositories"`
	RateLimit    RateLimitConfig       `yaml:"rate_limit"`
	Checkpoint   CheckpointConfig      `yaml:"checkpoint"`
	Logging      LoggingConfig         `yaml:"logging"`
}

// GitHubConfig contains GitHub-specific settings including API endpoints
// and authentication configuration. This allows easy configuration for
// GitHub Enterprise deployments by specifying custom endpoints.
type GitHubConfig struct {
	APIEndpoint     string `yaml:"api_endpoint"`
	GraphQLEndpoint string `yaml:"graphql_endpoint"`
	TokenEnv        string `yaml:"token_env"`
}

// DefaultsConfig contains settings that apply to every collection run
// unless overridden by repository-specific settings or command-line flags.
type DefaultsConfig struct {
	// PageSize is the per_page value sent with every request (1..100).
	PageSize int `yaml:"page_size"`
	// MaxPages caps the absolute page index fetched per partition. Zero means unlimited.
	MaxPages int `yaml:"max_pages"`
	// RequestInterval is the pause between successful page requests.
	RequestInterval time.Duration `yaml:"request_interval"`
	OutputFormat    string        `yaml:"output_format"`
	DataDir         string        `yaml:"data_dir"`
	StateDir        string        `yaml:"state_dir"`
	Resources       []string      `yaml:"resources"`
	SearchQuery     string        `yaml:"search_query"`
}

// RepoConfig contains repository-specific overrides. Zero values leave the
// defaults in place.
type RepoConfig struct {
	PageSize    int      `yaml:"page_size"`
	MaxPages    int      `yaml:"max_pages"`
	Resources   []string `yaml:"resources"`
	SearchQuery string   `yaml:"search_query"`
}

// RateLimitConfig controls how the collector reacts to rate limits and
// transient failures. AutoWait=false turns a rate limit into a run failure
// instead of a sleep.
type RateLimitConfig struct {
	AutoWait     bool          `yaml:"auto_wait"`
	ShowProgress bool          `yaml:"show_progress"`
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	MinimumWait  time.Duration `yaml:"minimum_wait"`
}

// CheckpointConfig selects where partition checkpoints live.
type CheckpointConfig struct {
	Backend          string `yaml:"backend"`
	RedisAddr        string `yaml:"redis_addr"`
	RedisDB          int    `yaml:"redis_db"`
	RedisPasswordEnv string `yaml:"redis_password_env"`
	KeyPrefix        string `yaml:"key_prefix"`
}

// LoggingConfig configures the zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns a Config with defaults suitable for public GitHub.com.
func DefaultConfig() *Config {
	return &Config{
		GitHub: GitHubConfig{
			APIEndpoint:     "https://api.github.com",
			GraphQLEndpoint: "https://api.github.com/graphql",
			TokenEnv:        "GITHUB_TOKEN",
		},
		Defaults: DefaultsConfig{
			PageSize:        100,
			MaxPages:        0,
			RequestInterval: time.Second,
			OutputFormat:    FormatJSON,
			DataDir:         "./data",
			StateDir:        "~/.sirseer/state",
			Resources:       []string{ResourceIssues, ResourcePulls, ResourceContributors},
		},
		Repositories: make(map[string]RepoConfig),
		RateLimit: RateLimitConfig{
			AutoWait:     true,
			ShowProgress: true,
			MaxAttempts:  5,
			BaseDelay:    2 * time.Second,
			MaxDelay:     2 * time.Minute,
			MinimumWait:  5 * time.Second,
		},
		Checkpoint: CheckpointConfig{
			Backend:          BackendFile,
			RedisAddr:        "localhost:6379",
			RedisPasswordEnv: "SIRSEER_REDIS_PASSWORD",
			KeyPrefix:        "sirseer:checkpoint",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
