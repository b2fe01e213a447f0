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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

func issue(n int, state string) github.Issue {
	return github.Issue{
		Number:    n,
		State:     state,
		Title:     "issue",
		Labels:    []string{"bug"},
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSet_MergeInsertsAndOverwrites(t *testing.T) {
	set := NewSet(github.ResourceIssues)

	res := set.Merge([]github.Record{issue(1, "open"), issue(2, "open")})
	assert.Equal(t, MergeResult{Inserted: 2}, res)
	assert.Equal(t, 2, set.Len())

	res = set.Merge([]github.Record{issue(2, "closed"), issue(1, "open"), issue(3, "open")})
	assert.Equal(t, MergeResult{Inserted: 1, Updated: 1, Unchanged: 1}, res)
	assert.Equal(t, 3, set.Len())

	got, ok := set.Get("2")
	require.True(t, ok)
	assert.Equal(t, "closed", got.(github.Issue).State, "last write wins")
}

func TestSet_MergeIsIdempotent(t *testing.T) {
	page := []github.Record{issue(1, "open"), issue(2, "open"), issue(3, "closed")}

	set := NewSet(github.ResourceIssues)
	set.Merge(page)
	before := set.Sorted()

	res := set.Merge(page)
	assert.Equal(t, 0, res.Inserted)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, before, set.Sorted())
}

func TestSet_MergeOrderIndependentForDistinctKeys(t *testing.T) {
	a := []github.Record{issue(1, "open"), issue(2, "open")}
	b := []github.Record{issue(3, "closed"), issue(4, "closed")}

	ab := NewSet(github.ResourceIssues)
	ab.Merge(a)
	ab.Merge(b)

	ba := NewSet(github.ResourceIssues)
	ba.Merge(b)
	ba.Merge(a)

	assert.Equal(t, ab.Sorted(), ba.Sorted())
}

func TestSet_MergeDuplicateWithinPage(t *testing.T) {
	set := NewSet(github.ResourceIssues)
	res := set.Merge([]github.Record{issue(5, "open"), issue(5, "closed")})

	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Updated)
	got, _ := set.Get("5")
	assert.Equal(t, "closed", got.(github.Issue).State)
}

func TestSet_SortedOrdersNumericKeysNumerically(t *testing.T) {
	set := NewSet(github.ResourceIssues)
	set.Merge([]github.Record{issue(10, "open"), issue(9, "open"), issue(100, "open"), issue(1, "open")})

	var keys []string
	for _, r := range set.Sorted() {
		keys = append(keys, r.Key())
	}
	assert.Equal(t, []string{"1", "9", "10", "100"}, keys)

	contributors := NewSet(github.ResourceContributors)
	contributors.Merge([]github.Record{
		github.Contributor{Login: "zed", Type: "User"},
		github.Contributor{Type: github.AnonymousType, Email: "a@example.com"},
		github.Contributor{Login: "42", Type: "User"},
		github.Contributor{Login: "alice", Type: "User"},
	})
	keys = nil
	for _, r := range contributors.Sorted() {
		keys = append(keys, r.Key())
	}
	assert.Equal(t, []string{"42", "alice", "anonymous:a@example.com", "zed"}, keys)
}

func TestMergeResult_Add(t *testing.T) {
	var total MergeResult
	total.Add(MergeResult{Inserted: 2, Updated: 1})
	total.Add(MergeResult{Inserted: 1, Unchanged: 4})
	assert.Equal(t, MergeResult{Inserted: 3, Updated: 1, Unchanged: 4}, total)
}
