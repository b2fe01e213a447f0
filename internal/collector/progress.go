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
	"io"
	"time"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

// progress prints a one-line status per page. The line is rewritten in
// place and cleared when the partition ends.
type progress struct {
	w     io.Writer
	now   func() time.Time
	start time.Time
}

func newProgress(w io.Writer, now func() time.Time) *progress {
	if w == nil {
		w = io.Discard
	}
	return &progress{w: w, now: now}
}

func (p *progress) begin(part github.Partition, startPage, expected int) {
	p.start = p.now()
	if expected >= 0 {
		fmt.Fprintf(p.w, "Collecting %s (%d expected) from page %d...\n", part, expected, startPage)
		return
	}
	fmt.Fprintf(p.w, "Collecting %s from page %d...\n", part, startPage)
}

// update displays progress with percentage and ETA when the expected total
// is known.
func (p *progress) update(part github.Partition, page, current, expected int) {
	if expected <= 0 {
		fmt.Fprintf(p.w, "\r\033[K%s: page %d | %d items", part, page, current)
		return
	}

	percent := float64(current) * 100 / float64(expected)
	elapsed := p.now().Sub(p.start)

	var eta string
	if current > 0 && current < expected {
		totalTime := elapsed.Seconds() * float64(expected) / float64(current)
		remaining := time.Duration(totalTime-elapsed.Seconds()) * time.Second
		if remaining > 0 {
			eta = fmt.Sprintf(" | ETA: %s", remaining.Round(time.Second))
		}
	}

	fmt.Fprintf(p.w, "\r\033[K%s: page %d | %d / %d [%.1f%%]%s", part, page, current, expected, percent, eta)
}

func (p *progress) waiting(part github.Partition, page int, wait time.Duration, reason string) {
	fmt.Fprintf(p.w, "\r\033[K%s: page %d | %s, waiting %s", part, page, reason, wait.Round(time.Second))
}

func (p *progress) end(r PartitionResult) {
	fmt.Fprintf(p.w, "\r\033[K")
	if r.State == StateAbandoned {
		fmt.Fprintf(p.w, "Abandoned %s at page %d: %s\n", r.Partition, r.StartPage+r.Pages, r.Reason)
		return
	}
	fmt.Fprintf(p.w, "Completed %s: %d pages, %d new, %d updated (%s) in %s\n",
		r.Partition, r.Pages, r.Inserted, r.Updated, r.Reason, p.now().Sub(p.start).Round(time.Second))
}
