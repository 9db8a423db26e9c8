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
	"bytes"
	"testing"
	"time"

	"squidcount/counter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(date, project string) counter.CountKey {
	return counter.CountKey{
		Date: date, Lang: "en", Project: project, Site: "M",
		Country: "KE", Provider: "orange-kenya"}
}

func testRows() []counter.Row {
	return []counter.Row{
		{Key: key("2013-05-01", "wikipedia.org"), Count: 3},
		{Key: key("2013-05-01", "wikipedia.org"), Count: 4},
		{Key: key("2013-05-01", "wiktionary.org"), Count: 2},
		{Key: key("2013-05-02", "wikipedia.org"), Count: 6},
		{Key: key("2013-05-03", "wikipedia.org"), Count: 1},
	}
}

func TestSumAndScale(t *testing.T) {
	rows := []counter.Row{
		{Key: key("2013-05-01", "wikipedia.org"), Count: 3},
		{Key: key("2013-05-01", "wikipedia.org"), Count: 4},
	}
	assert.Equal(
		t,
		counter.Table{key("2013-05-01", "wikipedia.org"): 7},
		Aggregate(rows, Options{SampleRate: 1}),
	)
	assert.Equal(
		t,
		counter.Table{key("2013-05-01", "wikipedia.org"): 70},
		Aggregate(rows, Options{SampleRate: 10}),
	)
}

func TestAggregateIsIdempotent(t *testing.T) {
	opts := Options{SampleRate: 10, Missing: []time.Time{time.Date(2013, 5, 2, 0, 0, 0, 0, time.UTC)}}
	first := Aggregate(testRows(), opts)
	second := Aggregate(testRows(), opts)
	assert.Equal(t, first, second)

	reversed := testRows()
	for i, j := 0, len(reversed)-1; i < j; i, j = i+1, j-1 {
		reversed[i], reversed[j] = reversed[j], reversed[i]
	}
	assert.Equal(t, first, Aggregate(reversed, opts))
}

func TestRescalingIsLinear(t *testing.T) {
	base := Aggregate(testRows(), Options{SampleRate: 1})
	for _, k := range []int64{1, 2, 10, 100} {
		scaled := Aggregate(testRows(), Options{SampleRate: k})
		require.Len(t, scaled, len(base))
		for key, v := range base {
			assert.Equal(t, v*k, scaled[key])
		}
	}
}

func TestMissingDatesArePurged(t *testing.T) {
	ans := Aggregate(testRows(), Options{
		SampleRate: 1,
		Missing:    []time.Time{time.Date(2013, 5, 2, 0, 0, 0, 0, time.UTC)},
	})
	for k := range ans {
		assert.NotEqual(t, "2013-05-02", k.Date)
	}
	assert.Len(t, ans, 3)
}

func TestProjectFilter(t *testing.T) {
	ans := Aggregate(testRows(), Options{SampleRate: 1, Project: "wiktionary.org"})
	assert.Equal(t, counter.Table{key("2013-05-01", "wiktionary.org"): 2}, ans)
}

func TestInputIsNotModified(t *testing.T) {
	rows := testRows()
	Aggregate(rows, Options{SampleRate: 10, Project: "wikipedia.org"})
	assert.Equal(t, testRows(), rows)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	tab := counter.Table{
		key("2013-05-02", "wikipedia.org"): 60,
		key("2013-05-01", "wikipedia.org"): 70,
	}
	require.NoError(t, WriteCSV(&buf, tab, nil))
	assert.Equal(
		t,
		"count,date,lang,project,site,country,provider\n"+
			"70,2013-05-01,en,wikipedia.org,M,KE,orange-kenya\n"+
			"60,2013-05-02,en,wikipedia.org,M,KE,orange-kenya\n",
		buf.String(),
	)
}
