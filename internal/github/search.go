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

package github

import (
	"fmt"
	"strings"
)

// buildSearchQuery scopes a user search expression to one repository and
// one partition state. Qualifiers the partition controls are dropped from
// the user expression so they cannot contradict it.
func buildSearchQuery(owner, repo, state, query string) string {
	parts := make([]string, 0, 8)
	for _, term := range strings.Fields(query) {
		lower := strings.ToLower(term)
		if strings.HasPrefix(lower, "repo:") ||
			strings.HasPrefix(lower, "state:") ||
			strings.HasPrefix(lower, "is:open") ||
			strings.HasPrefix(lower, "is:closed") {
			continue
		}
		parts = append(parts, term)
	}

	parts = append(parts, fmt.Sprintf("repo:%s/%s", owner, repo))
	if state == StateOpen || state == StateClosed {
		parts = append(parts, "state:"+state)
	}

	return strings.Join(parts, " ")
}
