// Copyright 2017 Tomas Machalek <tomas.machalek@gmail.com>
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

// fileselect functions are used to find gzipped Squid log files
// (one file per source and day) and to skip the ones processed
// in previous runs.

package fetch

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"squidcount/fsop"

	"github.com/czcorpus/cnc-gokit/collections"
	"github.com/rs/zerolog/log"
)

var (
	logFilePattern = regexp.MustCompile(`^([a-z0-9\-]+)\.log-(\d{8})\.gz$`)
)

// LogFile describes a discovered source log file
type LogFile struct {
	Path string

	// Name is the file name without a directory
	Name string

	// Source is the part of the name preceding .log-
	Source string

	Date time.Time
	Size int64
}

// ParseLogFileName tests whether a name matches the expected pattern
// `<source>.log-<YYYYMMDD>.gz` and returns parsed information.
func ParseLogFileName(path string) (LogFile, bool) {
	name := filepath.Base(path)
	srch := logFilePattern.FindStringSubmatch(name)
	if len(srch) < 3 {
		return LogFile{}, false
	}
	date, err := time.Parse("20060102", srch[2])
	if err != nil {
		return LogFile{}, false
	}
	return LogFile{Path: path, Name: name, Source: srch[1], Date: date}, true
}

// GetFilesInDir recursively lists all the matching log files
// sorted by their names
func GetFilesInDir(dirPath string) ([]LogFile, error) {
	if !fsop.IsDir(dirPath) {
		return nil, fmt.Errorf("source directory %s not found", dirPath)
	}
	ans := make([]LogFile, 0, 100)
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("failed to read source directory item, skipping")
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		lf, ok := ParseLogFileName(path)
		if !ok {
			return nil
		}
		lf.Size = fsop.FileSize(path)
		ans = append(ans, lf)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan source directory %s: %w", dirPath, err)
	}
	slices.SortFunc(ans, func(a, b LogFile) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ans, nil
}

// FilterUncached returns files with no entry in the cache.
// Files are matched by their names so a file moved to a different
// subdirectory is still considered processed.
func FilterUncached(files []LogFile, cached *collections.Set[string]) []LogFile {
	ans := make([]LogFile, 0, len(files))
	for _, f := range files {
		if cached != nil && cached.Contains(f.Name) {
			continue
		}
		ans = append(ans, f)
	}
	return ans
}

// Paths returns paths of all the files
func Paths(files []LogFile) []string {
	ans := make([]string, len(files))
	for i, f := range files {
		ans[i] = f.Path
	}
	return ans
}
