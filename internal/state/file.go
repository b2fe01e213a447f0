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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/output"
)

// FileStore is a CheckpointStore backed by one JSON file per repository.
// The file is loaded once and rewritten atomically on every change.
type FileStore struct {
	mu         sync.Mutex
	path       string
	repository string
	pages      map[string]int
	now        func() time.Time
}

// NewFileStore opens the checkpoint file at path, creating an empty store
// when the file does not exist yet.
func NewFileStore(path, repository string) (*FileStore, error) {
	s := &FileStore{
		path:       path,
		repository: repository,
		pages:      make(map[string]int),
		now:        time.Now,
	}

	cp, err := load(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if cp.Repository != "" && cp.Repository != repository {
		return nil, fmt.Errorf("checkpoint file %s belongs to %s, not %s", path, cp.Repository, repository)
	}
	for k, v := range cp.Pages {
		s.pages[k] = v
	}
	return s, nil
}

// Path returns the checkpoint file location.
func (s *FileStore) Path() string {
	return s.path
}

// Get implements CheckpointStore.
func (s *FileStore) Get(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page, ok := s.pages[key]; ok && page >= FirstPage {
		return page, nil
	}
	return FirstPage, nil
}

// Set implements CheckpointStore.
func (s *FileStore) Set(ctx context.Context, key string, page int) error {
	if page < FirstPage {
		return fmt.Errorf("checkpoint page must be >= %d, got %d", FirstPage, page)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.pages[key]
	s.pages[key] = page
	if err := s.save(); err != nil {
		if had {
			s.pages[key] = prev
		} else {
			delete(s.pages, key)
		}
		return err
	}
	return nil
}

// Reset implements CheckpointStore.
func (s *FileStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.pages[key]
	if !had {
		return nil
	}
	delete(s.pages, key)
	if err := s.save(); err != nil {
		s.pages[key] = prev
		return err
	}
	return nil
}

// All implements CheckpointStore.
func (s *FileStore) All(ctx context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pages := make(map[string]int, len(s.pages))
	for k, v := range s.pages {
		pages[k] = v
	}
	return pages, nil
}

// Clear implements CheckpointStore by deleting the checkpoint file.
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint file: %v: %w", err, relaierrors.ErrPersistence)
	}
	s.pages = make(map[string]int)
	return nil
}

// save rewrites the whole file. Callers hold s.mu.
func (s *FileStore) save() error {
	cp := &Checkpoints{
		Version:    CurrentVersion,
		Repository: s.repository,
		Pages:      s.pages,
		UpdatedAt:  s.now().UTC(),
	}

	checksum, err := calculateChecksum(cp)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %v: %w", err, relaierrors.ErrPersistence)
	}
	cp.Checksum = checksum

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoints: %v: %w", err, relaierrors.ErrPersistence)
	}

	if err := output.WriteFileAtomic(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write checkpoint file %s: %v: %w", s.path, err, relaierrors.ErrPersistence)
	}
	return nil
}

// load reads and validates a checkpoint file. The returned error satisfies
// os.IsNotExist when the file is missing.
func load(path string) (*Checkpoints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read checkpoint file %s: %w", path, err)
	}

	var cp Checkpoints
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("%w (invalid JSON): %v", ErrCorrupted, err)
	}

	if cp.Version != CurrentVersion {
		return nil, fmt.Errorf("checkpoint file version (%d) is incompatible with current version (%d)",
			cp.Version, CurrentVersion)
	}

	saved := cp.Checksum
	calculated, err := calculateChecksum(&cp)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum for validation: %w", err)
	}
	if saved != calculated {
		return nil, fmt.Errorf("%w (checksum mismatch)", ErrCorrupted)
	}

	for key, page := range cp.Pages {
		if page < FirstPage {
			return nil, fmt.Errorf("%w (page %d for %s)", ErrCorrupted, page, key)
		}
	}

	return &cp, nil
}

// calculateChecksum computes the SHA256 hash of the checkpoint content.
// The checksum field itself is excluded from the calculation.
func calculateChecksum(cp *Checkpoints) (string, error) {
	c := *cp
	c.Checksum = ""

	// Map keys are marshaled in sorted order, so the encoding is stable.
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}

	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}
