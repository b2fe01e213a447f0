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

// Package metadata records statistics about each collection run: API calls,
// backoff waits, per-resource merge counts and the outcome of every
// partition.
//
// Metadata is saved as JSON files next to the checkpoint files, allowing
// external tools and the status command to inspect run history.
package metadata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sirseerhq/sirseer-collect/internal/output"
)

const (
	// MethodVersion identifies the collection strategy recorded in metadata.
	MethodVersion = "rest-partitioned-v1"

	filePrefix = "collect-metadata-"
)

// Tracker collects statistics during a run. Create one per run; it is not
// safe for concurrent use.
type Tracker struct {
	now        func() time.Time
	startTime  time.Time
	apiCalls   int
	waits      int
	backoff    time.Duration
	resumed    bool
	resources  map[string]*ResourceResults
	partitions []PartitionRecord
}

// New creates a tracker started at now(). A nil now uses time.Now.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		now:       now,
		startTime: now(),
		resources: make(map[string]*ResourceResults),
	}
}

// IncrementAPICall records one request sent to GitHub.
func (t *Tracker) IncrementAPICall() {
	t.apiCalls++
}

// APICalls returns the number of requests recorded so far.
func (t *Tracker) APICalls() int {
	return t.apiCalls
}

// Waits returns the number of backoff sleeps recorded so far.
func (t *Tracker) Waits() int {
	return t.waits
}

// RecordWait records one backoff sleep.
func (t *Tracker) RecordWait(d time.Duration) {
	t.waits++
	t.backoff += d
}

// RecordPage adds the outcome of one merged page.
func (t *Tracker) RecordPage(resource string, fetched, inserted, updated, rejected, skipped int) {
	r := t.resource(resource)
	r.Fetched += fetched
	r.Inserted += inserted
	r.Updated += updated
	r.Rejected += rejected
	r.Skipped += skipped
}

// UpdateItemStats widens the number and date ranges of a resource with
// one numbered record.
func (t *Tracker) UpdateItemStats(resource string, number int, createdAt, updatedAt time.Time) {
	r := t.resource(resource)

	if r.FirstNumber == 0 || number < r.FirstNumber {
		r.FirstNumber = number
	}
	if number > r.LastNumber {
		r.LastNumber = number
	}

	if r.Oldest.IsZero() || createdAt.Before(r.Oldest) {
		r.Oldest = createdAt
	}
	if updatedAt.After(r.Newest) {
		r.Newest = updatedAt
	}
}

// SetRecords records the size of a resource's store at the end of the run.
func (t *Tracker) SetRecords(resource string, n int) {
	t.resource(resource).Records = n
}

// RecordPartition records the end of one partition walk. A walk that
// started past the first page marks the run as resumed.
func (t *Tracker) RecordPartition(p PartitionRecord) {
	if p.StartPage > 1 {
		t.resumed = true
	}
	t.partitions = append(t.partitions, p)
}

func (t *Tracker) resource(name string) *ResourceResults {
	r, ok := t.resources[name]
	if !ok {
		r = &ResourceResults{}
		t.resources[name] = r
	}
	return r
}

// GenerateMetadata creates the metadata record of the run. Call it once
// the run has finished, successfully or not.
func (t *Tracker) GenerateMetadata(collectorVersion string, params RunParams, previous *RunRef) *RunMetadata {
	completedAt := t.now()

	abandoned := 0
	for _, p := range t.partitions {
		if p.Status == "abandoned" {
			abandoned++
		}
	}

	resources := make(map[string]ResourceResults, len(t.resources))
	for name, r := range t.resources {
		resources[name] = *r
	}

	return &RunMetadata{
		CollectorVersion: collectorVersion,
		MethodVersion:    MethodVersion,
		RunID:            fmt.Sprintf("%s-%d", runType(t.resumed), t.startTime.Unix()),
		Parameters:       params,
		Results: RunResults{
			APICallCount:   t.apiCalls,
			RateLimitWaits: t.waits,
			BackoffTime:    t.backoff.String(),
			Abandoned:      abandoned,
			Duration:       completedAt.Sub(t.startTime).String(),
			StartedAt:      t.startTime,
			CompletedAt:    completedAt,
		},
		Resources:   resources,
		Partitions:  append([]PartitionRecord(nil), t.partitions...),
		Resumed:     t.resumed,
		PreviousRun: previous,
	}
}

// SaveMetadata writes a record to <stateDir>/collect-metadata-<unix>.json
// and returns the file path.
func SaveMetadata(metadata *RunMetadata, stateDir string) (string, error) {
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	filename := fmt.Sprintf("%s%d.json", filePrefix, metadata.Results.StartedAt.Unix())
	path := filepath.Join(stateDir, filename)
	if err := output.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("failed to save metadata file: %w", err)
	}
	return path, nil
}

// LoadLatestMetadata loads the most recent metadata record of owner/repo
// from stateDir. It returns nil when the repository has no recorded run.
func LoadLatestMetadata(stateDir, owner, repo string) (*RunMetadata, error) {
	files, err := filepath.Glob(filepath.Join(stateDir, filePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list metadata files: %w", err)
	}

	var runs []*RunMetadata
	for _, file := range files {
		m, err := readMetadata(file)
		if err != nil {
			continue
		}
		if m.Parameters.Owner == owner && m.Parameters.Repository == repo {
			runs = append(runs, m)
		}
	}
	if len(runs) == 0 {
		return nil, nil
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Results.StartedAt.After(runs[j].Results.StartedAt)
	})
	return runs[0], nil
}

func readMetadata(path string) (*RunMetadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer file.Close()

	var m RunMetadata
	if err := json.NewDecoder(file).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &m, nil
}

// WriteMetadataToWriter writes a record as indented JSON.
func WriteMetadataToWriter(metadata *RunMetadata, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// Ref returns a reference to the run, for linking the next run to it.
func (m *RunMetadata) Ref() *RunRef {
	if m == nil {
		return nil
	}
	return &RunRef{RunID: m.RunID, CompletedAt: m.Results.CompletedAt}
}

func runType(resumed bool) string {
	if resumed {
		return "resumed"
	}
	return "full"
}
