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

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sirseerhq/sirseer-collect/internal/config"
	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/state"
)

// parseRepository parses an owner/repo string into its components.
func parseRepository(repoArg string) (owner, repo string, err error) {
	parts := strings.Split(repoArg, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("invalid repository format. Expected: <owner>/<repo>, got: %s", repoArg)
	}

	return owner, repo, nil
}

// loadConfig loads the configuration of owner/repo and applies the global
// flags.
func loadConfig(g *globalOptions, owner, repo string) (*config.Config, error) {
	cfg, err := config.LoadConfigForRepo(g.configPath, owner+"/"+repo)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

// openCheckpoints opens the configured checkpoint backend. The returned
// function releases it.
func openCheckpoints(ctx context.Context, cfg *config.Config, owner, repo string) (state.CheckpointStore, func() error, error) {
	switch cfg.Checkpoint.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Checkpoint.RedisAddr,
			DB:       cfg.Checkpoint.RedisDB,
			Password: os.Getenv(cfg.Checkpoint.RedisPasswordEnv),
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis at %s: %v: %w", cfg.Checkpoint.RedisAddr, err, relaierrors.ErrPersistence)
		}
		return state.NewRedisStore(client, cfg.Checkpoint.KeyPrefix, owner, repo), client.Close, nil

	default:
		path := state.FilePath(cfg.Defaults.StateDir, owner, repo)
		store, err := state.NewFileStore(path, owner+"/"+repo)
		if err != nil {
			return nil, nil, fmt.Errorf("open checkpoints: %v: %w", err, relaierrors.ErrPersistence)
		}
		return store, func() error { return nil }, nil
	}
}
