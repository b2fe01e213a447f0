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
	"path/filepath"
	"strings"
	"time"
)

// CurrentVersion is the current checkpoint schema version.
// Increment this when making breaking changes to the Checkpoints structure.
const CurrentVersion = 1

// FirstPage is the checkpoint value of a partition with no saved progress.
const FirstPage = 1

// ErrCorrupted indicates a checkpoint file that fails validation.
var ErrCorrupted = errors.New("checkpoint file is corrupted")

// CheckpointStore persists the next page to fetch for each partition.
// A successful Set is durable before it returns.
type CheckpointStore interface {
	// Get returns the saved page for key, or FirstPage when none is saved.
	Get(ctx context.Context, key string) (int, error)

	// Set saves page as the next page to fetch for key.
	Set(ctx context.Context, key string, page int) error

	// Reset forgets the progress saved for key.
	Reset(ctx context.Context, key string) error

	// All returns every saved checkpoint.
	All(ctx context.Context) (map[string]int, error)

	// Clear forgets the progress of every partition.
	Clear(ctx context.Context) error
}

// Checkpoints is the on-disk form of a repository's checkpoints.
type Checkpoints struct {
	// Version indicates the schema version of this file.
	Version int `json:"version"`

	// Checksum is the SHA256 hash of the content, excluding this field.
	Checksum string `json:"checksum"`

	// Repository is the full repository name in "owner/repo" format.
	Repository string `json:"repository"`

	// Pages maps partition keys to the next page to fetch.
	Pages map[string]int `json:"pages"`

	// UpdatedAt records when the file was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// FilePath returns the checkpoint file for a repository:
// <stateDir>/<owner>-<repo>.checkpoint
func FilePath(stateDir, owner, repo string) string {
	name := strings.ReplaceAll(owner+"-"+repo, "/", "-")
	return filepath.Join(stateDir, name+".checkpoint")
}
