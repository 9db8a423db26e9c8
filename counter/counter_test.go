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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"squidcount/squid"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLocator map[string]string

func (sl staticLocator) CountryCode(ip net.IP) (string, error) {
	if v, ok := sl[ip.String()]; ok {
		return v, nil
	}
	return "", errors.New("not found")
}

type recordingPublisher struct {
	published map[string]Table
	err       error
}

func (rp *recordingPublisher) Publish(sourceName string, table Table) error {
	if rp.err != nil {
		return rp.err
	}
	if rp.published == nil {
		rp.published = make(map[string]Table)
	}
	rp.published[sourceName] = table
	return nil
}

func mkLine(ts, ip, status, url, mime string) string {
	return fmt.Sprintf(
		"cp1046.eqiad.wmnet 1 %s 0.001 %s %s 100 GET %s CARP/10.64.0.1 %s - - Opera/9.80",
		ts, ip, status, url, mime)
}

var testLines = []string{
	mkLine("2013-05-01T10:00:00.000", "41.90.12.5", "TCP_MISS/200", "http://en.m.wikipedia.org/wiki/Nairobi", "text/html"),
	mkLine("2013-05-01T10:00:01.000", "41.90.12.5", "TCP_MISS/200", "http://en.m.wikipedia.org/wiki/Kenya", "text/html"),
	mkLine("2013-05-01T10:00:02.000", "41.90.12.6", "TCP_MISS/404", "http://sw.m.wikipedia.org/wiki/Kenya", "text/html"),
	mkLine("2013-05-01T10:00:03.000", "41.90.12.5", "TCP_MISS/200", "http://en.m.wikipedia.org/w/api.php", "text/html"),
	mkLine("garbage", "41.90.12.5", "TCP_MISS/200", "http://en.m.wikipedia.org/wiki/X", "text/html"),
	mkLine("2013-05-01T23:59:59.999", "41.90.12.5", "TCP_MISS/200", "/wiki/NoHost", "text/html"),
	"truncated line",
	mkLine("2013-05-02T00:00:00.000", "41.90.12.5", "TCP_MISS/200", "http://en.zero.wikipedia.org/wiki/Nairobi", "text/html"),
}

func newTestCounter(opts Options, pub Publisher) *Counter {
	env := &squid.RecordEnv{Locator: staticLocator{"41.90.12.5": "KE"}}
	return NewCounter(env, opts, pub)
}

func writeGzip(t *testing.T, path string, lines []string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestCountWithPredicate(t *testing.T) {
	c := newTestCounter(Options{FilterRequests: true}, nil)
	tally, stats, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines, "\n")), "orange-kenya")
	require.NoError(t, err)
	assert.Equal(t, int64(8), stats.LinesRead)
	assert.Equal(t, int64(1), stats.Malformed)
	assert.Equal(t, int64(1), stats.BadTimestamp)
	assert.Equal(t, int64(1), stats.BadNetloc)
	assert.Equal(t, int64(1), stats.Filtered)
	assert.Equal(t, int64(4), stats.Counted)
	assert.Equal(t, int64(1), stats.UnknownCountry)

	assert.Equal(t, int64(2), tally[CountKey{
		Date: "2013-05-01", Lang: "en", Project: "wikipedia.org", Site: "M",
		Country: "KE", Provider: "orange-kenya"}])
	assert.Equal(t, int64(1), tally[CountKey{
		Date: "2013-05-01", Lang: "sw", Project: "wikipedia.org", Site: "M",
		Country: squid.CountryUnknown, Provider: "orange-kenya"}])
	assert.Equal(t, int64(1), tally[CountKey{
		Date: "2013-05-02", Lang: "en", Project: "wikipedia.org", Site: "Z",
		Country: "KE", Provider: "orange-kenya"}])
	assert.Equal(t, int64(4), tally.Total())
}

func TestCountStrictPredicate(t *testing.T) {
	c := newTestCounter(Options{FilterRequests: true, Predicate: PredicateInitRequest}, nil)
	tally, stats, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines, "\n")), "p")
	require.NoError(t, err)
	assert.Equal(t, int64(3), tally.Total())
	assert.Equal(t, int64(2), stats.Filtered)
}

func TestCountWithoutFilter(t *testing.T) {
	c := newTestCounter(Options{}, nil)
	tally, stats, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines, "\n")), "p")
	require.NoError(t, err)
	assert.Equal(t, int64(5), tally.Total())
	assert.Equal(t, int64(0), stats.Filtered)
}

func TestSplitFileMergeEqualsWhole(t *testing.T) {
	c := newTestCounter(Options{FilterRequests: true}, nil)
	whole, _, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines, "\n")), "p")
	require.NoError(t, err)
	for split := 0; split <= len(testLines); split++ {
		first, _, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines[:split], "\n")), "p")
		require.NoError(t, err)
		second, _, err := c.Count(context.Background(), strings.NewReader(strings.Join(testLines[split:], "\n")), "p")
		require.NoError(t, err)
		merged := make(Table)
		merged.Merge(first)
		merged.Merge(second)
		assert.Equal(t, whole, merged, "split at %d", split)
	}
}

func TestCountCancelled(t *testing.T) {
	lines := make([]string, ctxCheckInterval+10)
	for i := range lines {
		lines[i] = testLines[0]
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := newTestCounter(Options{}, nil)
	_, _, err := c.Count(ctx, strings.NewReader(strings.Join(lines, "\n")), "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCountFilePublishes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero-orange-kenya.log-20130501.gz")
	writeGzip(t, path, testLines)
	pub := &recordingPublisher{}
	c := newTestCounter(Options{FilterRequests: true, ProviderPrefix: DefaultProviderPrefix}, pub)
	tally, stats, err := c.CountFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Counted)
	require.Contains(t, pub.published, "zero-orange-kenya.log-20130501.gz")
	assert.Equal(t, tally, pub.published["zero-orange-kenya.log-20130501.gz"])
	for k := range tally {
		assert.Equal(t, "orange-kenya", k.Provider)
	}
}

func TestCountFileSkipsTooLongLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orange-kenya.log-20130501.gz")
	lines := []string{
		testLines[0],
		strings.Repeat("x", 2*maxLineSize),
		testLines[1],
	}
	writeGzip(t, path, lines)
	pub := &recordingPublisher{}
	c := newTestCounter(Options{FilterRequests: true}, pub)
	tally, stats, err := c.CountFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.LinesRead)
	assert.Equal(t, int64(1), stats.Malformed)
	assert.Equal(t, int64(2), stats.Counted)
	assert.Equal(t, int64(2), tally.Total())
	require.Contains(t, pub.published, "orange-kenya.log-20130501.gz")
	assert.Equal(t, tally, pub.published["orange-kenya.log-20130501.gz"])
}

func TestReadLine(t *testing.T) {
	input := "first\r\n\n" + strings.Repeat("y", maxLineSize+1) + "\n" +
		strings.Repeat("z", maxLineSize) + "\nlast"
	rd := bufio.NewReaderSize(strings.NewReader(input), 16)
	var buf []byte

	line, tooLong, err := readLine(rd, buf)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "first", string(line))

	line, tooLong, err = readLine(rd, buf)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "", string(line))

	line, tooLong, err = readLine(rd, buf)
	require.NoError(t, err)
	assert.True(t, tooLong)
	assert.Empty(t, line)

	line, tooLong, err = readLine(rd, buf)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Len(t, line, maxLineSize)

	line, tooLong, err = readLine(rd, buf)
	require.NoError(t, err)
	assert.False(t, tooLong)
	assert.Equal(t, "last", string(line))

	_, _, err = readLine(rd, buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestCountFileCorruptedStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orange-kenya.log-20130501.gz")
	writeGzip(t, path, testLines)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0644))

	pub := &recordingPublisher{}
	c := newTestCounter(Options{}, pub)
	_, _, err = c.CountFile(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestCountFileNotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orange-kenya.log-20130501.gz")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(testLines, "\n")), 0644))
	pub := &recordingPublisher{}
	_, _, err := newTestCounter(Options{}, pub).CountFile(context.Background(), path)
	assert.Error(t, err)
	assert.Empty(t, pub.published)
}

func TestCountFilePublishError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orange-kenya.log-20130501.gz")
	writeGzip(t, path, testLines)
	pubErr := errors.New("disk full")
	_, _, err := newTestCounter(Options{}, &recordingPublisher{err: pubErr}).CountFile(context.Background(), path)
	assert.ErrorIs(t, err, pubErr)
}

func TestProviderFromFileName(t *testing.T) {
	assert.Equal(t, "orange-kenya", ProviderFromFileName("/data/zero-orange-kenya.log-20130501.gz", "zero-"))
	assert.Equal(t, "zero-orange-kenya", ProviderFromFileName("zero-orange-kenya.log-20130501.gz", ""))
	assert.Equal(t, "digi-malaysia", ProviderFromFileName("digi-malaysia.log-20130501.gz", "zero-"))
	assert.Equal(t, "something.gz", ProviderFromFileName("something.gz", "zero-"))
}

func TestPredicateValidate(t *testing.T) {
	assert.NoError(t, PredicateAll.Validate())
	assert.NoError(t, PredicateInitRequest.Validate())
	assert.NoError(t, PredicateOldInitRequest.Validate())
	assert.Error(t, Predicate("mobile").Validate())
}
