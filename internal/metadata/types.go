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

// Package metadata types define the structures recorded for each collection
// run. A record captures what was requested, what each partition did and how
// much of the API budget the run consumed.
package metadata

import (
	"time"
)

// RunMetadata is the complete record of a single collection run.
type RunMetadata struct {
	CollectorVersion string                     `json:"collector_version"`
	MethodVersion    string                     `json:"method_version"`
	RunID            string                     `json:"run_id"`
	Parameters       RunParams                  `json:"parameters"`
	Results          RunResults                 `json:"results"`
	Resources        map[string]ResourceResults `json:"resources"`
	Partitions       []PartitionRecord          `json:"partitions"`
	Resumed          bool                       `json:"resumed"`
	PreviousRun      *RunRef                    `json:"previous_run,omitempty"`
}

// RunParams captures the input parameters of a run so it can be reproduced.
type RunParams struct {
	Owner        string   `json:"owner"`
	Repository   string   `json:"repository"`
	Resources    []string `json:"resources"`
	PageSize     int      `json:"page_size"`
	MaxPages     int      `json:"max_pages,omitempty"`
	SearchQuery  string   `json:"search_query,omitempty"`
	OutputFormat string   `json:"output_format"`
	Checkpoint   string   `json:"checkpoint_backend"`
}

// RunResults holds run-wide counters.
type RunResults struct {
	APICallCount   int       `json:"api_calls_made"`
	RateLimitWaits int       `json:"rate_limit_waits"`
	BackoffTime    string    `json:"backoff_time"`
	Abandoned      int       `json:"abandoned_partitions"`
	Duration       string    `json:"duration"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
}

// ResourceResults holds per-resource counters.
type ResourceResults struct {
	Records  int `json:"records"`
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Rejected int `json:"rejected"`
	Skipped  int `json:"skipped"`

	// Number and date ranges of numbered records seen in this run.
	FirstNumber int       `json:"first_number,omitempty"`
	LastNumber  int       `json:"last_number,omitempty"`
	Oldest      time.Time `json:"oldest"`
	Newest      time.Time `json:"newest"`
}

// PartitionRecord describes how one partition walk ended.
type PartitionRecord struct {
	Partition string `json:"partition"`
	Status    string `json:"status"`
	StartPage int    `json:"start_page"`
	Pages     int    `json:"pages"`
	Reason    string `json:"reason"`
	Error     string `json:"error,omitempty"`
}

// RunRef is a lightweight reference to an earlier run of the same
// repository.
type RunRef struct {
	RunID       string    `json:"run_id"`
	CompletedAt time.Time `json:"completed_at"`
}
