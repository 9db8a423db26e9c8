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

package cache

import (
	"regexp"
	"slices"
	"time"

	"squidcount/counter"

	"github.com/rs/zerolog/log"
)

const (
	fileDateLayout = "20060102"
)

var (
	fileDatePattern = regexp.MustCompile(`\.log-(\d{8})`)
)

// DateFromName extracts the date a log (or cache entry)
// file name refers to
func DateFromName(name string) (time.Time, bool) {
	srch := fileDatePattern.FindStringSubmatch(name)
	if len(srch) < 2 {
		return time.Time{}, false
	}
	t, err := time.Parse(fileDateLayout, srch[1])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// DetectMissingDates finds days between the earliest and the latest
// date found in the provided file names which have no file.
// Names without a recognizable date are ignored.
func DetectMissingDates(names []string) []time.Time {
	present := make(map[time.Time]bool)
	var first, last time.Time
	for _, name := range names {
		t, ok := DateFromName(name)
		if !ok {
			log.Warn().Str("file", name).Msg("cannot determine date of file, ignoring")
			continue
		}
		if len(present) == 0 || t.Before(first) {
			first = t
		}
		if len(present) == 0 || t.After(last) {
			last = t
		}
		present[t] = true
	}
	ans := make([]time.Time, 0, 10)
	if len(present) == 0 {
		return ans
	}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !present[d] {
			ans = append(ans, d)
		}
	}
	return ans
}

// DetectMissingDates applies DetectMissingDates to the store's entries
func (s *Store) DetectMissingDates() ([]time.Time, error) {
	names, err := s.entryNames()
	if err != nil {
		return nil, err
	}
	return DetectMissingDates(names), nil
}

// FormatDates converts dates to the format used by count keys
func FormatDates(dates []time.Time) []string {
	ans := make([]string, len(dates))
	for i, d := range dates {
		ans[i] = d.Format(time.DateOnly)
	}
	return ans
}

// PurgeDates removes rows of the provided dates. The returned
// slice is a new one, rows are not modified.
func PurgeDates(rows []counter.Row, missing []time.Time) []counter.Row {
	if len(missing) == 0 {
		return slices.Clone(rows)
	}
	purged := make(map[string]bool, len(missing))
	for _, d := range FormatDates(missing) {
		purged[d] = true
	}
	ans := make([]counter.Row, 0, len(rows))
	for _, row := range rows {
		if !purged[row.Key.Date] {
			ans = append(ans, row)
		}
	}
	return ans
}
