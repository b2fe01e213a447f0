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

// Package output writes collected records to disk.
//
// Two formats are supported: an indented JSON array (the default, one file
// per resource that downstream tools can load in one call) and NDJSON. Both
// implement RecordWriter.
//
// AtomicFile guarantees that readers only ever observe a complete file: data
// is written to a temporary sibling, synced and renamed over the target.
//
// Example usage:
//
//	f, err := output.CreateAtomic("data/golang-go/issues.json", 0o644)
//	if err != nil {
//	    return err
//	}
//	defer f.Abort()
//
//	w, _ := output.NewRecordWriter(f, output.FormatJSON)
//	for _, record := range records {
//	    if err := w.Write(record); err != nil {
//	        return err
//	    }
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
//	return f.Commit()
package output
