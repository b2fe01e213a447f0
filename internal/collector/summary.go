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

package collector

import (
	"fmt"

	relaierrors "github.com/sirseerhq/sirseer-collect/internal/errors"
	"github.com/sirseerhq/sirseer-collect/internal/github"
	"github.com/sirseerhq/sirseer-collect/internal/records"
)

// ResourceSummary reports the totals of one resource.
type ResourceSummary struct {
	Resource github.Resource
	// Records is the size of the store after the run.
	Records  int
	Inserted int
	Updated  int
	Rejected int
	Skipped  int

	// Contributors is set for the contributors resource.
	Contributors *records.ContributorStats
	// States counts issues and pull requests by state.
	States map[string]int
}

// Summary reports the outcome of a run.
type Summary struct {
	Partitions []PartitionResult
	Resources  []ResourceSummary
	APICalls   int
	Waits      int
}

// Abandoned returns the partitions that stopped early.
func (s *Summary) Abandoned() []PartitionResult {
	var out []PartitionResult
	for _, p := range s.Partitions {
		if p.State == StateAbandoned {
			out = append(out, p)
		}
	}
	return out
}

// Inserted returns the number of new records across all resources.
func (s *Summary) Inserted() int {
	n := 0
	for _, r := range s.Resources {
		n += r.Inserted
	}
	return n
}

// Err returns an error wrapping ErrPartialCollection when any partition was
// abandoned, nil otherwise.
func (s *Summary) Err() error {
	abandoned := s.Abandoned()
	if len(abandoned) == 0 {
		return nil
	}
	return fmt.Errorf("%d partition(s) abandoned, first %s: %s: %w",
		len(abandoned), abandoned[0].Partition, abandoned[0].Reason, relaierrors.ErrPartialCollection)
}
