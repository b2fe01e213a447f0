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

package output

import (
	"fmt"
	"io"
)

// Supported record file formats.
const (
	FormatJSON   = "json"
	FormatNDJSON = "ndjson"
)

// RecordWriter defines the interface for writing collected records.
type RecordWriter interface {
	// Write writes a single record to the output.
	Write(record any) error

	// Close finishes the document and releases any resources.
	Close() error
}

// NewRecordWriter returns a writer for the given format on w.
func NewRecordWriter(w io.Writer, format string) (RecordWriter, error) {
	switch format {
	case FormatJSON, "":
		return NewArrayWriter(w), nil
	case FormatNDJSON:
		return NewLineWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}
