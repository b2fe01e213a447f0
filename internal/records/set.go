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
	"reflect"
	"sort"
	"strconv"

	"github.com/sirseerhq/sirseer-collect/internal/github"
)

// MergeResult counts what a merge did to a Set.
type MergeResult struct {
	// Inserted is the number of keys that were not in the set before.
	Inserted int
	// Updated is the number of existing keys whose fields changed.
	Updated int
	// Unchanged is the number of existing keys supplied again as-is.
	Unchanged int
}

// Add accumulates another result.
func (r *MergeResult) Add(o MergeResult) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
}

// Set is the deduplicated collection of one resource.
type Set struct {
	resource github.Resource
	items    map[string]github.Record
}

// NewSet creates an empty set for resource.
func NewSet(resource github.Resource) *Set {
	return &Set{resource: resource, items: make(map[string]github.Record)}
}

// Resource returns the resource the set holds.
func (s *Set) Resource() github.Resource {
	return s.resource
}

// Len returns the number of unique records.
func (s *Set) Len() int {
	return len(s.items)
}

// Get returns the record stored under key.
func (s *Set) Get(key string) (github.Record, bool) {
	rec, ok := s.items[key]
	return rec, ok
}

// Merge folds recs into the set. Absent keys are inserted and present keys
// are overwritten, later records in recs winning over earlier ones.
func (s *Set) Merge(recs []github.Record) MergeResult {
	var res MergeResult
	for _, rec := range recs {
		key := rec.Key()
		prev, ok := s.items[key]
		switch {
		case !ok:
			res.Inserted++
		case reflect.DeepEqual(prev, rec):
			res.Unchanged++
		default:
			res.Updated++
		}
		s.items[key] = rec
	}
	return res
}

// Sorted returns the records ordered by key. Numeric keys sort numerically
// and before non-numeric ones, which sort lexically.
func (s *Set) Sorted() []github.Record {
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return lessKey(keys[i], keys[j])
	})

	out := make([]github.Record, len(keys))
	for i, k := range keys {
		out[i] = s.items[k]
	}
	return out
}

func lessKey(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}
