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

// Package state persists per-partition checkpoints so an interrupted
// collection resumes from the page it stopped at.
//
// A checkpoint is the next page index to fetch for one partition key such
// as "issues/open". Get returns FirstPage for partitions that were never
// checkpointed or whose last walk completed.
//
// Two backends are provided. FileStore keeps one checkpoint file per
// repository, rewritten in full on every update using a write-to-temp and
// rename pattern, with a SHA256 checksum and schema version to detect
// corruption. RedisStore keeps the same mapping in a Redis hash, for
// collectors running on ephemeral hosts.
//
// Example usage:
//
//	store, err := state.NewFileStore(state.FilePath(stateDir, "golang", "go"), "golang/go")
//	page, err := store.Get(ctx, "issues/open")
//	...
//	err = store.Set(ctx, "issues/open", page+1)
package state
