// Copyright 2024 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2024 Institute of the Czech National Corpus,
//                Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"squidcount/cache"
	"squidcount/counter"
)

// Options control the final aggregation of cached counts
type Options struct {

	// SampleRate is an inverse of the fraction of logged traffic
	// (e.g. 10 for 1:10 sampled logs)
	SampleRate int64

	// Missing dates are removed from the result as their
	// counts would be incomplete
	Missing []time.Time

	// Project restricts the result to a single project
	// (e.g. wikipedia.org). Empty value means all projects.
	Project string
}

// Aggregate groups rows by their count keys, rescales the sums
// by the sample rate, removes rows of missing dates and optionally
// applies the project filter. Input rows are not modified.
func Aggregate(rows []counter.Row, opts Options) counter.Table {
	sampleRate := opts.SampleRate
	if sampleRate < 1 {
		sampleRate = 1
	}
	grouped := counter.TableFromRows(cache.PurgeDates(rows, opts.Missing))
	ans := make(counter.Table, len(grouped))
	for k, v := range grouped {
		if opts.Project != "" && k.Project != opts.Project {
			continue
		}
		ans[k] = v * sampleRate
	}
	return ans
}

// WriteCSV writes the table sorted by keys, with a header row
func WriteCSV(w io.Writer, table counter.Table, columns []string) error {
	if len(columns) == 0 {
		columns = counter.DefaultColumns
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write aggregate header: %w", err)
	}
	for _, row := range table.Rows() {
		if err := cw.Write(row.Values(columns)); err != nil {
			return fmt.Errorf("failed to write aggregate row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
