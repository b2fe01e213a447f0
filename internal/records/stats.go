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
	"sort"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

// ContributorStats summarizes a contributors set.
type ContributorStats struct {
	Contributors       int                  `json:"contributors"`
	Anonymous          int                  `json:"anonymous"`
	TotalContributions int                  `json:"total_contributions"`
	Average            float64              `json:"average_contributions"`
	Top                []github.Contributor `json:"top"`
}

// Contributors computes contributor statistics with the top n contributors
// by contribution count. Ties are broken by key.
func Contributors(set *Set, n int) ContributorStats {
	var stats ContributorStats
	all := make([]github.Contributor, 0, set.Len())
	for _, rec := range set.Sorted() {
		c, ok := rec.(github.Contributor)
		if !ok {
			continue
		}
		all = append(all, c)
		stats.TotalContributions += c.Contributions
		if c.Anonymous() {
			stats.Anonymous++
		}
	}

	stats.Contributors = len(all)
	if stats.Contributors > 0 {
		stats.Average = float64(stats.TotalContributions) / float64(stats.Contributors)
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Contributions > all[j].Contributions
	})
	if n > len(all) {
		n = len(all)
	}
	if n > 0 {
		stats.Top = all[:n]
	}
	return stats
}

// StateCounts counts issues and pull requests by state. Merged pull
// requests are counted under both "closed" and "merged".
func StateCounts(set *Set) map[string]int {
	counts := make(map[string]int)
	for _, rec := range set.items {
		switch r := rec.(type) {
		case github.Issue:
			counts[r.State]++
		case github.PullRequest:
			counts[r.State]++
			if r.Merged() {
				counts["merged"]++
			}
			if r.Draft {
				counts["draft"]++
			}
		}
	}
	return counts
}
