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

package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
)

// RedisStore is a CheckpointStore backed by one Redis hash per repository,
// field = partition key, value = next page.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a store for owner/repo under keyPrefix.
func NewRedisStore(client *redis.Client, keyPrefix, owner, repo string) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		client: client,
		key:    fmt.Sprintf("%s:%s/%s", keyPrefix, owner, repo),
	}
}

// Key returns the Redis hash holding the checkpoints.
func (s *RedisStore) Key() string {
	return s.key
}

// Get implements CheckpointStore.
func (s *RedisStore) Get(ctx context.Context, key string) (int, error) {
	raw, err := s.client.HGet(ctx, s.key, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return FirstPage, nil
		}
		return 0, fmt.Errorf("redis hget %s: %w", key, err)
	}

	page, err := strconv.Atoi(raw)
	if err != nil || page < FirstPage {
		return 0, fmt.Errorf("%w: page %q for %s", ErrCorrupted, raw, key)
	}
	return page, nil
}

// Set implements CheckpointStore.
func (s *RedisStore) Set(ctx context.Context, key string, page int) error {
	if page < FirstPage {
		return fmt.Errorf("checkpoint page must be >= %d, got %d", FirstPage, page)
	}
	if err := s.client.HSet(ctx, s.key, key, page).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %v: %w", key, err, relaierrors.ErrPersistence)
	}
	return nil
}

// Reset implements CheckpointStore.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %v: %w", key, err, relaierrors.ErrPersistence)
	}
	return nil
}

// All implements CheckpointStore.
func (s *RedisStore) All(ctx context.Context) (map[string]int, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}

	pages := make(map[string]int, len(fields))
	for k, raw := range fields {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: page %q for %s", ErrCorrupted, raw, k)
		}
		pages[k] = page
	}
	return pages, nil
}

// Clear implements CheckpointStore.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %v: %w", err, relaierrors.ErrPersistence)
	}
	return nil
}
