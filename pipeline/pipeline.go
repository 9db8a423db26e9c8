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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"

	"squidcount/counter"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const (
	DefaultConcurrencyLimit = 4
	MaxConcurrencyLimit     = 16
)

// FileProcessingError wraps any failure of a single file task
// (including a recovered panic)
type FileProcessingError struct {
	File  string
	Cause error
}

func (e FileProcessingError) Error() string {
	return fmt.Sprintf("FileProcessingError: %s: %s", e.File, e.Cause)
}

func (e FileProcessingError) Unwrap() error {
	return e.Cause
}

// FileCounter processes a single log file
type FileCounter interface {
	CountFile(ctx context.Context, path string) (counter.Table, *counter.FileStats, error)
}

// FileResult is an outcome of a single file task. Exactly one
// of Table and Err is set.
type FileResult struct {
	File  string
	Table counter.Table
	Stats *counter.FileStats
	Err   error
}

// Cancelled tells whether the file was not processed due to
// the run cancellation
func (fr FileResult) Cancelled() bool {
	return errors.Is(fr.Err, context.Canceled) || errors.Is(fr.Err, context.DeadlineExceeded)
}

// ResultHandler is called for each finished file. It may be called
// concurrently from multiple workers.
type ResultHandler func(res FileResult)

// Pipeline dispatches files to a FileCounter using a bounded
// pool of workers
type Pipeline struct {
	counter  FileCounter
	limit    int
	onResult ResultHandler
}

func (p *Pipeline) processFile(ctx context.Context, path string) (ans FileResult) {
	ans.File = path
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("file", path).
				Str("stack", string(debug.Stack())).
				Msgf("recovered from panic: %v", r)
			ans.Table = nil
			ans.Err = FileProcessingError{File: path, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := ctx.Err(); err != nil {
		ans.Err = err
		return
	}
	table, stats, err := p.counter.CountFile(ctx, path)
	ans.Stats = stats
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			ans.Err = err

		} else {
			ans.Err = FileProcessingError{File: path, Cause: err}
		}
		return
	}
	ans.Table = table
	return
}

// Run processes all the files and returns their results in the
// order of the input. A failure of one file does not affect the
// others. Once ctx is cancelled, no new file is started and the
// remaining files are reported with the context error.
func (p *Pipeline) Run(ctx context.Context, files []string) []FileResult {
	results := make([]FileResult, len(files))
	wp := pool.New().WithMaxGoroutines(p.limit)
	for i, file := range files {
		if ctx.Err() != nil {
			results[i] = FileResult{File: file, Err: ctx.Err()}
			continue
		}
		wp.Go(func() {
			res := p.processFile(ctx, file)
			if res.Err != nil && !res.Cancelled() {
				log.Error().Err(res.Err).Str("file", filepath.Base(file)).Msg("failed to process file")
			}
			if p.onResult != nil {
				p.onResult(res)
			}
			results[i] = res
		})
	}
	wp.Wait()
	return results
}

// New creates a pipeline. The limit is clamped to
// [1, MaxConcurrencyLimit], zero means DefaultConcurrencyLimit.
func New(fc FileCounter, limit int, onResult ResultHandler) *Pipeline {
	if limit == 0 {
		limit = DefaultConcurrencyLimit
	}
	limit = max(1, min(limit, MaxConcurrencyLimit))
	return &Pipeline{counter: fc, limit: limit, onResult: onResult}
}
