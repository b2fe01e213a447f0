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

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

// PartitionState is the position of a partition walk in its state machine.
type PartitionState int

const (
	// StateFetching means a page request is about to be sent.
	StateFetching PartitionState = iota
	// StateMerging means a page was received and is being stored.
	StateMerging
	// StateBackoff means the walk is waiting before retrying the same page.
	StateBackoff
	// StateComplete is terminal: the partition has no more pages.
	StateComplete
	// StateAbandoned is terminal: the partition stopped early for this run.
	StateAbandoned
)

func (s PartitionState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateBackoff:
		return "backoff"
	case StateComplete:
		return "complete"
	case StateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s PartitionState) Terminal() bool {
	return s == StateComplete || s == StateAbandoned
}

// Reasons a partition walk stopped.
const (
	ReasonShortPage        = "short page"
	ReasonTotalReached     = "reported total reached"
	ReasonPageCeiling      = "page ceiling reached"
	ReasonSearchWindow     = "search result window exhausted"
	ReasonUnprocessable    = "unprocessable"
	ReasonRetriesExhausted = "retries exhausted"
	ReasonFatal            = "fatal status"
	ReasonAborted          = "run aborted"
)

// PartitionResult reports how one partition walk ended.
type PartitionResult struct {
	Partition github.Partition
	State     PartitionState
	Reason    string

	// StartPage is the checkpoint the walk resumed from.
	StartPage int
	// Pages is the number of pages merged in this run.
	Pages int

	Fetched  int
	Inserted int
	Updated  int
	Rejected int
	Skipped  int

	// Err is set for abandoned partitions.
	Err error
}

// transition moves the walk to next. Terminal states are final.
func (r *PartitionResult) transition(next PartitionState) {
	if r.State.Terminal() {
		return
	}
	r.State = next
}

func (r *PartitionResult) finish(state PartitionState, reason string, err error) {
	r.transition(state)
	r.Reason = reason
	r.Err = err
}
