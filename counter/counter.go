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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"squidcount/squid"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

const (
	ctxCheckInterval  = 10000
	maxLineSize       = 1024 * 1024
	readBufferSize    = 64 * 1024
	sourceNameDivider = ".log-"

	DefaultProviderPrefix = "zero-"
)

// Predicate selects log records to be counted
type Predicate string

const (
	PredicateOldInitRequest Predicate = "old-init-request"
	PredicateInitRequest    Predicate = "init-request"
	PredicateAll            Predicate = "all"
)

func (p Predicate) Validate() error {
	switch p {
	case PredicateOldInitRequest, PredicateInitRequest, PredicateAll:
		return nil
	}
	return fmt.Errorf("unknown count predicate: %s", p)
}

func (p Predicate) Apply(rec *squid.Record) bool {
	switch p {
	case PredicateInitRequest:
		return rec.IsInitRequest()
	case PredicateAll:
		return true
	default:
		return rec.IsOldInitRequest()
	}
}

// Options configure which lines are counted and how the provider
// is derived
type Options struct {

	// FilterRequests enables the Predicate. Without it, all
	// parseable lines with a valid timestamp are counted.
	FilterRequests bool

	Predicate Predicate

	// ExcludeBots skips lines with a crawler user agent
	ExcludeBots bool

	// ProviderPrefix is stripped from source names when
	// deriving the provider (e.g. zero-orange-kenya => orange-kenya)
	ProviderPrefix string
}

// Publisher stores a finished per-file table
type Publisher interface {
	Publish(sourceName string, table Table) error
}

// FileStats summarizes processing of a single file
type FileStats struct {
	LinesRead      int64
	Counted        int64
	Malformed      int64
	BadTimestamp   int64
	BadNetloc      int64
	Filtered       int64
	Bots           int64
	UnknownCountry int64
	Duration       time.Duration
}

// Skipped returns the number of lines which could not be used
// due to invalid data
func (fs *FileStats) Skipped() int64 {
	return fs.Malformed + fs.BadTimestamp + fs.BadNetloc
}

// ProviderFromFileName derives a provider (traffic source) identifier
// from a log file name like zero-orange-kenya.log-20130501.gz
func ProviderFromFileName(fileName, stripPrefix string) string {
	name := filepath.Base(fileName)
	if i := strings.Index(name, sourceNameDivider); i >= 0 {
		name = name[:i]
	}
	return strings.TrimPrefix(name, stripPrefix)
}

// Counter tallies qualifying lines of Squid log files.
// A single Counter may be shared by concurrent workers as it
// keeps no per-file state.
type Counter struct {
	parser    *squid.LineParser
	opts      Options
	publisher Publisher
}

func (c *Counter) countRecord(rec *squid.Record, provider string, tally Table, stats *FileStats) {
	if c.opts.FilterRequests && !c.opts.Predicate.Apply(rec) {
		stats.Filtered++
		return
	}
	if c.opts.ExcludeBots && rec.IsBot() {
		stats.Bots++
		return
	}
	date, err := rec.Date()
	if err != nil {
		stats.BadTimestamp++
		return
	}
	netloc, err := rec.Netloc()
	if err != nil {
		stats.BadNetloc++
		return
	}
	country := rec.Country()
	if country == squid.CountryUnknown {
		stats.UnknownCountry++
	}
	tally.Add(
		CountKey{
			Date:     date,
			Lang:     netloc.Lang,
			Project:  netloc.Project,
			Site:     netloc.Site,
			Country:  country,
			Provider: provider,
		},
		1,
	)
	stats.Counted++
}

// readLine reads a single line without its line terminator. Lines
// longer than maxLineSize are consumed up to their end and reported
// as too long, with no content. At the end of the input, io.EOF is
// returned.
func readLine(rd *bufio.Reader, buf []byte) ([]byte, bool, error) {
	buf = buf[:0]
	var numRead int
	var tooLong bool
	for {
		chunk, err := rd.ReadSlice('\n')
		numRead += len(chunk)
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > maxLineSize+2 {
				tooLong = true
				buf = buf[:0]
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF {
			if numRead == 0 {
				return nil, false, io.EOF
			}

		} else if err != nil {
			return nil, false, err
		}
		buf = bytes.TrimSuffix(bytes.TrimSuffix(buf, []byte("\n")), []byte("\r"))
		if len(buf) > maxLineSize {
			return buf[:0], true, nil
		}
		return buf, tooLong, nil
	}
}

// Count reads plain text lines from r and tallies them. Lines which
// cannot be used (including too long ones) are skipped and only
// reflected in the returned stats.
func (c *Counter) Count(ctx context.Context, r io.Reader, provider string) (Table, *FileStats, error) {
	t0 := time.Now()
	tally := make(Table)
	stats := new(FileStats)
	rd := bufio.NewReaderSize(r, readBufferSize)
	buf := make([]byte, 0, readBufferSize)
	for {
		line, tooLong, err := readLine(rd, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to read line %d: %w", stats.LinesRead+1, err)
		}
		buf = line[:0]
		stats.LinesRead++
		if stats.LinesRead%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
		}
		if tooLong {
			stats.Malformed++
			log.Debug().Int64("line", stats.LinesRead).Msg("skipping too long line")
			continue
		}
		rec, err := c.parser.ParseLine(string(line), stats.LinesRead)
		if err != nil {
			stats.Malformed++
			continue
		}
		c.countRecord(rec, provider, tally, stats)
	}
	stats.Duration = time.Since(t0)
	return tally, stats, nil
}

// CountFile counts a gzipped Squid log file and publishes the result.
// The table is published only once the whole file is tallied so an
// interrupted or failed run leaves no cache entry behind.
func (c *Counter) CountFile(ctx context.Context, path string) (Table, *FileStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	rd, err := gzip.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	defer rd.Close()
	sourceName := filepath.Base(path)
	tally, stats, err := c.Count(ctx, rd, ProviderFromFileName(sourceName, c.opts.ProviderPrefix))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, stats, err
		}
		return nil, stats, fmt.Errorf("failed to process %s: %w", path, err)
	}
	if c.publisher != nil {
		if err := c.publisher.Publish(sourceName, tally); err != nil {
			return nil, stats, err
		}
	}
	log.Info().
		Str("file", sourceName).
		Int64("linesRead", stats.LinesRead).
		Int64("counted", stats.Counted).
		Int64("skipped", stats.Skipped()).
		Int64("filtered", stats.Filtered).
		Int("numKeys", len(tally)).
		Dur("duration", stats.Duration).
		Msg("file counted")
	log.Debug().
		Str("file", sourceName).
		Int64("malformed", stats.Malformed).
		Int64("badTimestamp", stats.BadTimestamp).
		Int64("badNetloc", stats.BadNetloc).
		Int64("bots", stats.Bots).
		Int64("unknownCountry", stats.UnknownCountry).
		Msg("skipped lines")
	return tally, stats, nil
}

// NewCounter creates a new Counter. The publisher may be nil in
// which case tables are only returned.
func NewCounter(env *squid.RecordEnv, opts Options, publisher Publisher) *Counter {
	if opts.Predicate == "" {
		opts.Predicate = PredicateOldInitRequest
	}
	return &Counter{
		parser:    squid.NewLineParser(env),
		opts:      opts,
		publisher: publisher,
	}
}
