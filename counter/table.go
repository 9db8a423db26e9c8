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

package counter

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/czcorpus/cnc-gokit/collections"
)

const (
	ColCount    = "count"
	ColDate     = "date"
	ColLang     = "lang"
	ColProject  = "project"
	ColSite     = "site"
	ColCountry  = "country"
	ColProvider = "provider"
)

// DefaultColumns is the column order of count tables
// written without an explicit configuration
var DefaultColumns = []string{
	ColCount, ColDate, ColLang, ColProject, ColSite, ColCountry, ColProvider}

// ValidateColumns checks that columns contain each of the
// known columns exactly once
func ValidateColumns(columns []string) error {
	if len(columns) != len(DefaultColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(DefaultColumns), len(columns))
	}
	for _, c := range DefaultColumns {
		if !collections.SliceContains(columns, c) {
			return fmt.Errorf("missing column %s", c)
		}
	}
	return nil
}

// CountKey is a grouping tuple counts are tallied by
type CountKey struct {
	Date     string
	Lang     string
	Project  string
	Site     string
	Country  string
	Provider string
}

// Field returns a value of the key attribute matching a column
// name. For the count column (and unknown names) an empty string
// is returned.
func (k CountKey) Field(col string) string {
	switch col {
	case ColDate:
		return k.Date
	case ColLang:
		return k.Lang
	case ColProject:
		return k.Project
	case ColSite:
		return k.Site
	case ColCountry:
		return k.Country
	case ColProvider:
		return k.Provider
	}
	return ""
}

func (k *CountKey) SetField(col, value string) error {
	switch col {
	case ColDate:
		k.Date = value
	case ColLang:
		k.Lang = value
	case ColProject:
		k.Project = value
	case ColSite:
		k.Site = value
	case ColCountry:
		k.Country = value
	case ColProvider:
		k.Provider = value
	default:
		return fmt.Errorf("unknown key column %s", col)
	}
	return nil
}

func compareKeys(a, b CountKey) int {
	return cmp.Or(
		cmp.Compare(a.Date, b.Date),
		cmp.Compare(a.Lang, b.Lang),
		cmp.Compare(a.Project, b.Project),
		cmp.Compare(a.Site, b.Site),
		cmp.Compare(a.Country, b.Country),
		cmp.Compare(a.Provider, b.Provider),
	)
}

// Row is a single (key, count) item of a materialized table
type Row struct {
	Key   CountKey
	Count int64
}

// Values returns the row as strings ordered by columns
func (r Row) Values(columns []string) []string {
	ans := make([]string, len(columns))
	for i, c := range columns {
		if c == ColCount {
			ans[i] = strconv.FormatInt(r.Count, 10)

		} else {
			ans[i] = r.Key.Field(c)
		}
	}
	return ans
}

// Table maps count keys to numbers of occurrences
type Table map[CountKey]int64

// Add increments a key's count
func (t Table) Add(key CountKey, count int64) {
	t[key] += count
}

// Merge adds all counts of other into t
func (t Table) Merge(other Table) {
	for k, v := range other {
		t[k] += v
	}
}

func (t Table) Total() int64 {
	var ans int64
	for _, v := range t {
		ans += v
	}
	return ans
}

// Rows materializes the table into a deterministically
// ordered list of rows
func (t Table) Rows() []Row {
	ans := make([]Row, 0, len(t))
	for k, v := range t {
		ans = append(ans, Row{Key: k, Count: v})
	}
	slices.SortFunc(ans, func(a, b Row) int {
		return compareKeys(a.Key, b.Key)
	})
	return ans
}

// TableFromRows groups rows by their keys summing the counts
func TableFromRows(rows []Row) Table {
	ans := make(Table)
	for _, r := range rows {
		ans[r.Key] += r.Count
	}
	return ans
}
