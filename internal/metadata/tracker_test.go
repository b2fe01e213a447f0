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

package metadata

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func fixedNow(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func TestTracker_UpdateItemStats(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2023, 1, d, 0, 0, 0, 0, time.UTC) }

	tests := []struct {
		name    string
		updates []struct {
			number    int
			createdAt time.Time
			updatedAt time.Time
		}
		want ResourceResults
	}{
		{
			name: "single item",
			updates: []struct {
				number    int
				createdAt time.Time
				updatedAt time.Time
			}{
				{100, day(1), day(2)},
			},
			want: ResourceResults{FirstNumber: 100, LastNumber: 100, Oldest: day(1), Newest: day(2)},
		},
		{
			name: "items out of order",
			updates: []struct {
				number    int
				createdAt time.Time
				updatedAt time.Time
			}{
				{50, day(5), day(6)},
				{10, day(2), day(9)},
				{70, day(7), day(8)},
			},
			want: ResourceResults{FirstNumber: 10, LastNumber: 70, Oldest: day(2), Newest: day(9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := New(nil)
			for _, u := range tt.updates {
				tracker.UpdateItemStats("issues", u.number, u.createdAt, u.updatedAt)
			}

			got := *tracker.resources["issues"]
			if got != tt.want {
				t.Errorf("stats = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTracker_GenerateMetadata(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tracker := New(fixedNow(start, start.Add(90*time.Second)))

	tracker.IncrementAPICall()
	tracker.IncrementAPICall()
	tracker.IncrementAPICall()
	tracker.RecordWait(30 * time.Second)
	tracker.RecordPage("issues", 100, 90, 5, 1, 4)
	tracker.RecordPage("issues", 45, 45, 0, 0, 0)
	tracker.SetRecords("issues", 245)
	tracker.RecordPartition(PartitionRecord{Partition: "issues/open", Status: "complete", StartPage: 1, Pages: 3, Reason: "short page"})
	tracker.RecordPartition(PartitionRecord{Partition: "issues/closed", Status: "abandoned", StartPage: 1, Pages: 0, Reason: "unprocessable"})

	params := RunParams{Owner: "octocat", Repository: "hello", Resources: []string{"issues"}, PageSize: 100, OutputFormat: "json", Checkpoint: "file"}
	m := tracker.GenerateMetadata("v1.2.3", params, nil)

	if m.CollectorVersion != "v1.2.3" || m.MethodVersion != MethodVersion {
		t.Errorf("versions = %q/%q", m.CollectorVersion, m.MethodVersion)
	}
	if want := "full-1714557600"; m.RunID != want {
		t.Errorf("RunID = %q, want %q", m.RunID, want)
	}
	if m.Results.APICallCount != 3 || m.Results.RateLimitWaits != 1 {
		t.Errorf("results = %+v", m.Results)
	}
	if m.Results.BackoffTime != "30s" || m.Results.Duration != "1m30s" {
		t.Errorf("BackoffTime = %q, Duration = %q", m.Results.BackoffTime, m.Results.Duration)
	}
	if m.Results.Abandoned != 1 {
		t.Errorf("Abandoned = %d, want 1", m.Results.Abandoned)
	}
	issues := m.Resources["issues"]
	if issues.Records != 245 || issues.Fetched != 145 || issues.Inserted != 135 || issues.Skipped != 4 {
		t.Errorf("issues = %+v", issues)
	}
	if len(m.Partitions) != 2 || m.Resumed {
		t.Errorf("partitions = %v, resumed = %v", m.Partitions, m.Resumed)
	}
}

func TestTracker_GenerateMetadata_Resumed(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tracker := New(fixedNow(start))
	tracker.RecordPartition(PartitionRecord{Partition: "pulls/open", Status: "complete", StartPage: 4, Pages: 2})

	previous := &RunRef{RunID: "full-1", CompletedAt: start.Add(-time.Hour)}
	m := tracker.GenerateMetadata("dev", RunParams{Owner: "o", Repository: "r"}, previous)

	if !m.Resumed || !strings.HasPrefix(m.RunID, "resumed-") {
		t.Errorf("RunID = %q, Resumed = %v", m.RunID, m.Resumed)
	}
	if m.PreviousRun == nil || m.PreviousRun.RunID != "full-1" {
		t.Errorf("PreviousRun = %+v", m.PreviousRun)
	}
}

func TestSaveAndLoadMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	runs := []struct {
		owner, repo string
		start       time.Time
	}{
		{"octocat", "hello", base},
		{"octocat", "hello", base.Add(time.Hour)},
		{"someone", "else", base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		m := New(fixedNow(r.start)).GenerateMetadata("dev", RunParams{Owner: r.owner, Repository: r.repo}, nil)
		path, err := SaveMetadata(m, dir)
		if err != nil {
			t.Fatalf("SaveMetadata() error = %v", err)
		}
		if filepath.Base(path) != "collect-metadata-"+strconv.FormatInt(r.start.Unix(), 10)+".json" {
			t.Errorf("path = %q", path)
		}
	}

	latest, err := LoadLatestMetadata(dir, "octocat", "hello")
	if err != nil {
		t.Fatalf("LoadLatestMetadata() error = %v", err)
	}
	if latest == nil || !latest.Results.StartedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("latest = %+v, want run started at %v", latest, base.Add(time.Hour))
	}
	if ref := latest.Ref(); ref.RunID != latest.RunID {
		t.Errorf("Ref() = %+v", ref)
	}

	missing, err := LoadLatestMetadata(dir, "nobody", "here")
	if err != nil || missing != nil {
		t.Errorf("LoadLatestMetadata() for unknown repo = %v, %v", missing, err)
	}
}

func TestLoadLatestMetadata_SkipsUnreadableFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "collect-metadata-1.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadLatestMetadata(dir, "octocat", "hello")
	if err != nil || m != nil {
		t.Errorf("LoadLatestMetadata() = %v, %v, want nil, nil", m, err)
	}
}

func TestWriteMetadataToWriter(t *testing.T) {
	m := New(nil).GenerateMetadata("dev", RunParams{Owner: "o", Repository: "r", PageSize: 100}, nil)

	var buf bytes.Buffer
	if err := WriteMetadataToWriter(m, &buf); err != nil {
		t.Fatalf("WriteMetadataToWriter() error = %v", err)
	}

	var decoded RunMetadata
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Parameters.PageSize != 100 {
		t.Errorf("PageSize = %d, want 100", decoded.Parameters.PageSize)
	}
	if !strings.Contains(buf.String(), "\n  \"run_id\"") {
		t.Error("expected indented output")
	}
}

func TestRefOfNil(t *testing.T) {
	var m *RunMetadata
	if m.Ref() != nil {
		t.Error("Ref() of nil metadata should be nil")
	}
}
