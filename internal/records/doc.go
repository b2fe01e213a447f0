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

// Package records holds the deduplicated record sets collected for a
// repository and persists them as one file per resource.
//
// A Set is keyed by record identity. Merging a page inserts new keys and
// overwrites existing ones, so refetching a page never grows the set.
// A Store rewrites the whole file for a resource after every merged page,
// atomically, so readers only ever see a complete snapshot.
package records
