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

// Package collector drives the collection of a repository: for every
// resource and every partition of it, it fetches pages starting at the
// saved checkpoint, merges them into the resource's record set, persists
// the set and only then advances the checkpoint.
//
// Rate-limited and transient responses are handed to a ratelimit.Governor,
// which decides how long to wait before the same page is requested again.
// A partition that cannot make progress is abandoned without stopping the
// others; authorization and persistence failures stop the whole run.
package collector
