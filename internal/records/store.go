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

package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/output"
)

// ErrCorrupted indicates a record file that cannot be decoded.
var ErrCorrupted = errors.New("record file is corrupted")

// maxLineBytes bounds a single NDJSON record.
const maxLineBytes = 16 * 1024 * 1024

// Store reads and writes the record files of one repository.
type Store struct {
	dir    string
	format string
}

// NewStore creates a store rooted at <dataDir>/<owner>-<repo>.
func NewStore(dataDir, owner, repo, format string) (*Store, error) {
	switch format {
	case output.FormatJSON, output.FormatNDJSON:
	case "":
		format = output.FormatJSON
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	name := strings.ReplaceAll(owner+"-"+repo, "/", "-")
	return &Store{dir: filepath.Join(dataDir, name), format: format}, nil
}

// Dir returns the directory holding the record files.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the file of a resource, e.g. <dir>/issues.json.
func (s *Store) Path(resource github.Resource) string {
	return filepath.Join(s.dir, string(resource)+".json")
}

// Load reads the persisted set of a resource. A missing file yields an
// empty set. Both JSON array and NDJSON files are accepted regardless of
// the configured format, so switching formats keeps earlier progress.
func (s *Store) Load(resource github.Resource) (*Set, error) {
	set := NewSet(resource)

	data, err := os.ReadFile(s.Path(resource))
	if err != nil {
		if os.IsNotExist(err) {
			return set, nil
		}
		return nil, fmt.Errorf("failed to read %s records: %w", resource, err)
	}

	raws, err := splitRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, s.Path(resource), err)
	}

	recs := make([]github.Record, 0, len(raws))
	for i, raw := range raws {
		rec, err := resource.DecodeStored(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s record %d: %v", ErrCorrupted, s.Path(resource), i+1, err)
		}
		recs = append(recs, rec)
	}
	set.Merge(recs)
	return set, nil
}

// Persist rewrites the file of a resource with every record in set.
// Failures wrap ErrPersistence.
func (s *Store) Persist(resource github.Resource, set *Set) error {
	f, err := output.CreateAtomic(s.Path(resource), 0o644)
	if err != nil {
		return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
	}
	defer f.Abort()

	buf := bufio.NewWriter(f)
	w, err := output.NewRecordWriter(buf, s.format)
	if err != nil {
		return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
	}

	for _, rec := range set.Sorted() {
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
	}
	if err := f.Commit(); err != nil {
		return fmt.Errorf("persist %s: %v: %w", resource, err, relaierrors.ErrPersistence)
	}
	return nil
}

// splitRecords accepts a JSON array or one JSON object per line.
func splitRecords(data []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	}

	var raws []json.RawMessage
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !json.Valid(text) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		raws = append(raws, json.RawMessage(append([]byte(nil), text...)))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return raws, nil
}
