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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"squidcount/counter"
	"squidcount/squid"

	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/rs/zerolog/log"
)

const (
	EntrySuffix = ".counts"
	tmpPrefix   = ".tmp-"
	legacyNone  = "None"
)

// CacheCorruptionError reports a cache entry which cannot be
// parsed. Such an entry is skipped on reload.
type CacheCorruptionError struct {
	File  string
	Line  int
	Cause error
}

func (e CacheCorruptionError) Error() string {
	return fmt.Sprintf("CacheCorruptionError: %s, line %d: %s", e.File, e.Line, e.Cause)
}

func (e CacheCorruptionError) Unwrap() error {
	return e.Cause
}

// LoadReport describes the result of a cache reload
type LoadReport struct {
	NumFiles  int
	NumRows   int
	Corrupted []string
}

// Store is a directory of per-source count tables, one
// `<source file name>.counts` CSV file per processed log file.
// An entry is either complete or absent.
type Store struct {
	dir     string
	columns []string
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Columns() []string {
	return s.columns
}

func (s *Store) EntryPath(sourceName string) string {
	return filepath.Join(s.dir, sourceName+EntrySuffix)
}

func isEntryName(name string) bool {
	return strings.HasSuffix(name, EntrySuffix) && !strings.HasPrefix(name, tmpPrefix)
}

func (s *Store) entryNames() ([]string, error) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache directory %s: %w", s.dir, err)
	}
	ans := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type().IsRegular() && isEntryName(item.Name()) {
			ans = append(ans, item.Name())
		}
	}
	return ans, nil
}

// ListCached returns names of source files which already have
// a published entry
func (s *Store) ListCached() (*collections.Set[string], error) {
	names, err := s.entryNames()
	if err != nil {
		return nil, err
	}
	ans := new(collections.Set[string])
	for _, name := range names {
		ans.Add(strings.TrimSuffix(name, EntrySuffix))
	}
	return ans, nil
}

// Publish writes a table as the cache entry of sourceName. Data are
// written to a temporary file first which is then atomically renamed.
// On failure, no entry (and no temporary file) is left behind.
func (s *Store) Publish(sourceName string, table counter.Table) (err error) {
	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary cache file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				log.Error().Err(rmErr).Str("file", tmpPath).Msg("failed to remove temporary cache file")
			}
		}
	}()
	if err = writeTable(tmp, table, s.columns); err != nil {
		return fmt.Errorf("failed to write cache entry for %s: %w", sourceName, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync cache entry for %s: %w", sourceName, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close cache entry for %s: %w", sourceName, err)
	}
	if err = os.Rename(tmpPath, s.EntryPath(sourceName)); err != nil {
		return fmt.Errorf("failed to publish cache entry for %s: %w", sourceName, err)
	}
	return nil
}

func writeTable(w io.Writer, table counter.Table, columns []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range table.Rows() {
		if err := cw.Write(row.Values(columns)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Remove invalidates a single cache entry so the respective
// source file is processed again on the next run
func (s *Store) Remove(sourceName string) error {
	err := os.Remove(s.EntryPath(sourceName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove cache entry for %s: %w", sourceName, err)
	}
	return nil
}

// RemoveStale deletes temporary files left by interrupted
// runs. Published entries are never touched.
func (s *Store) RemoveStale() (int, error) {
	items, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list cache directory %s: %w", s.dir, err)
	}
	var numRemoved int
	for _, item := range items {
		if !strings.HasPrefix(item.Name(), tmpPrefix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, item.Name())); err != nil {
			log.Error().Err(err).Str("file", item.Name()).Msg("failed to remove stale temporary file")
			continue
		}
		numRemoved++
	}
	return numRemoved, nil
}

// headerColumns detects a header row. Legacy entries have
// a positional header (0, 1, ...) in the default column order.
func headerColumns(rec []string) ([]string, bool) {
	if counter.ValidateColumns(rec) == nil {
		return rec, true
	}
	if len(rec) != len(counter.DefaultColumns) {
		return nil, false
	}
	for i, v := range rec {
		if v != strconv.Itoa(i) {
			return nil, false
		}
	}
	return counter.DefaultColumns, true
}

// normalizeLegacyKey maps the "None" placeholder of legacy
// entries to the values written for the same keys now
func normalizeLegacyKey(key *counter.CountKey) {
	if key.Lang == legacyNone {
		key.Lang = ""
	}
	if key.Country == legacyNone {
		key.Country = squid.CountryUnknown
	}
}

func parseRow(rec []string, columns []string) (counter.Row, error) {
	var row counter.Row
	if len(rec) != len(columns) {
		return row, fmt.Errorf("expected %d fields, found %d", len(columns), len(rec))
	}
	for i, col := range columns {
		if col == counter.ColCount {
			v, err := strconv.ParseInt(rec[i], 10, 64)
			if err != nil {
				return row, fmt.Errorf("invalid count value: %w", err)
			}
			if v < 0 {
				return row, fmt.Errorf("negative count value %d", v)
			}
			row.Count = v

		} else if err := row.Key.SetField(col, rec[i]); err != nil {
			return row, err
		}
	}
	// legacy entries may contain a full datetime
	row.Key.Date, _, _ = strings.Cut(row.Key.Date, " ")
	normalizeLegacyKey(&row.Key)
	if row.Key.Date == "" {
		return row, fmt.Errorf("missing date")
	}
	return row, nil
}

func (s *Store) loadEntry(name string) ([]counter.Row, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return nil, CacheCorruptionError{File: name, Cause: err}
	}
	defer f.Close()
	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	columns := counter.DefaultColumns
	ans := make([]counter.Row, 0, 100)
	for lineNum := 1; ; lineNum++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, CacheCorruptionError{File: name, Line: lineNum, Cause: err}
		}
		if lineNum == 1 {
			if hdr, ok := headerColumns(rec); ok {
				columns = hdr
				continue
			}
		}
		row, err := parseRow(rec, columns)
		if err != nil {
			return nil, CacheCorruptionError{File: name, Line: lineNum, Cause: err}
		}
		ans = append(ans, row)
	}
	return ans, nil
}

// Load reads all the cache entries and concatenates their rows.
// Rows are not grouped. Entries which cannot be parsed are
// logged, reported and skipped.
func (s *Store) Load() ([]counter.Row, LoadReport, error) {
	var report LoadReport
	names, err := s.entryNames()
	if err != nil {
		return nil, report, err
	}
	ans := make([]counter.Row, 0, 1000)
	for _, name := range names {
		rows, err := s.loadEntry(name)
		if err != nil {
			log.Error().Err(err).Str("file", name).Msg("skipping corrupted cache entry")
			report.Corrupted = append(report.Corrupted, name)
			continue
		}
		ans = append(ans, rows...)
		report.NumFiles++
		report.NumRows += len(rows)
	}
	return ans, report, nil
}

// NewStore opens (and creates if needed) a cache directory.
// Empty columns mean counter.DefaultColumns.
func NewStore(dir string, columns []string) (*Store, error) {
	if len(columns) == 0 {
		columns = counter.DefaultColumns
	}
	if err := counter.ValidateColumns(columns); err != nil {
		return nil, fmt.Errorf("invalid cache columns: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Store{dir: dir, columns: columns}, nil
}
