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

//go:build integration

package state

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = container.Terminate(ctx)
	})
	return client
}

func TestRedisStore_Integration(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()
	store := NewRedisStore(client, "sirseer:checkpoint", "octocat", "hello")

	if store.Key() != "sirseer:checkpoint:octocat/hello" {
		t.Errorf("Key() = %q", store.Key())
	}

	page, err := store.Get(ctx, "issues/open")
	if err != nil || page != FirstPage {
		t.Fatalf("Get() on empty hash = %d, %v", page, err)
	}

	if err := store.Set(ctx, "issues/open", 4); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, "pulls/closed", 2); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	// A second store on the same hash sees the same progress.
	other := NewRedisStore(client, "sirseer:checkpoint", "octocat", "hello")
	if page, err := other.Get(ctx, "issues/open"); err != nil || page != 4 {
		t.Errorf("Get() = %d, %v, want 4", page, err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["pulls/closed"] != 2 {
		t.Errorf("All() = %v", all)
	}

	if err := store.Reset(ctx, "issues/open"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if page, _ := store.Get(ctx, "issues/open"); page != FirstPage {
		t.Errorf("Get() after Reset = %d", page)
	}

	if err := client.HSet(ctx, store.Key(), "issues/closed", "garbage").Err(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "issues/closed"); err == nil {
		t.Error("expected error for non-numeric checkpoint")
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	all, _ = store.All(ctx)
	if len(all) != 0 {
		t.Errorf("All() after Clear = %v", all)
	}
}
