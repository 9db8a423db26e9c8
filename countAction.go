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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"squidcount/aggregate"
	"squidcount/cache"
	"squidcount/config"
	"squidcount/counter"
	"squidcount/ctype"
	"squidcount/fetch"
	"squidcount/geo"
	"squidcount/metrics"
	"squidcount/notifications"
	"squidcount/pipeline"
	"squidcount/squid"
	"squidcount/worklog"

	"github.com/rs/zerolog/log"
)

// ErrInterrupted is returned when a run is cancelled before all
// the source files are processed. No output is produced in such case.
var ErrInterrupted = errors.New("processing interrupted")

func openRecordEnv(conf *config.Main) (*squid.RecordEnv, io.Closer, error) {
	env := new(squid.RecordEnv)
	bots, err := ctype.LoadFromResource(conf.BotDefsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load bot definitions: %w", err)
	}
	log.Info().Int("numDefs", bots.NumDefs()).Msg("loaded bot definitions")
	env.BotDetector = bots
	if conf.GeoIPDbPath == "" {
		return env, nil, nil
	}
	locator, err := geo.OpenGeoIPLocator(conf.GeoIPDbPath)
	if err != nil {
		return nil, nil, err
	}
	env.Locator = locator
	return env, locator, nil
}

func resultStatus(res pipeline.FileResult) worklog.Status {
	switch {
	case res.Err == nil:
		return worklog.StatusDone
	case res.Cancelled():
		return worklog.StatusCancelled
	default:
		return worklog.StatusFailed
	}
}

// processSources counts all the source files without a cache entry
// and publishes their tables to the store
func processSources(
	ctx context.Context,
	conf *config.Main,
	store *cache.Store,
	wl *worklog.Worklog,
	mtr *metrics.Metrics,
) (pipeline.Summary, error) {
	env, closer, err := openRecordEnv(conf)
	if err != nil {
		return pipeline.Summary{}, err
	}
	if closer != nil {
		defer closer.Close()
	}
	files, err := fetch.GetFilesInDir(conf.SrcDir)
	if err != nil {
		return pipeline.Summary{}, err
	}
	cached, err := store.ListCached()
	if err != nil {
		return pipeline.Summary{}, err
	}
	todo := fetch.FilterUncached(files, cached)
	var totalBytes int64
	for _, lf := range todo {
		totalBytes += max(lf.Size, 0)
		log.Debug().
			Str("file", lf.Name).
			Str("source", lf.Source).
			Str("date", lf.Date.Format(time.DateOnly)).
			Int64("size", lf.Size).
			Msg("scheduled for counting")
	}
	log.Info().
		Int("numFound", len(files)).
		Int("numCached", cached.Size()).
		Int("numToProcess", len(todo)).
		Int64("totalBytes", totalBytes).
		Msg("selected source files")

	fc := counter.NewCounter(env, conf.CountOptions(), store)
	pl := pipeline.New(fc, conf.NumWorkers, func(res pipeline.FileResult) {
		mtr.ObserveFile(res)
		if wl == nil {
			return
		}
		if err := wl.UpdateFileInfo(filepath.Base(res.File), resultStatus(res), res.Err); err != nil {
			log.Error().Err(err).Str("file", res.File).Msg("failed to update worklog")
		}
	})
	summary := pipeline.Summarize(pl.Run(ctx, fetch.Paths(todo)))
	summary.Log()
	return summary, nil
}

func writeOutput(path string, table counter.Table, columns []string) error {
	if path == "" {
		return aggregate.WriteCSV(os.Stdout, table, columns)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := aggregate.WriteCSV(f, table, columns); err != nil {
		f.Close()
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return f.Close()
}

func runCountAction(ctx context.Context, conf *config.Main, opts *ProcessOptions, runID string) error {
	t0 := time.Now()
	store, err := cache.NewStore(conf.CacheDir, conf.CacheColumns)
	if err != nil {
		return err
	}
	if n, err := store.RemoveStale(); err != nil {
		return err

	} else if n > 0 {
		log.Warn().Int("numRemoved", n).Msg("removed temporary files of an interrupted run")
	}
	mtr := metrics.New()

	var wl *worklog.Worklog
	if conf.WorklogPath != "" {
		wl, err = worklog.Open(conf.WorklogPath, runID)
		if err != nil {
			return err
		}
		defer wl.Close()
		if opts.worklogReset {
			if err := wl.Reset(); err != nil {
				return err
			}
			log.Info().Str("path", conf.WorklogPath).Msg("worklog reset")
		}
	}

	report := notifications.RunReport{
		RunID:    runID,
		SrcDir:   conf.SrcDir,
		CacheDir: conf.CacheDir,
	}
	if !conf.CacheOnly {
		summary, err := processSources(ctx, conf, store, wl, mtr)
		if err != nil {
			return err
		}
		report.FailedFiles = summary.FailedFiles
		if ctx.Err() != nil {
			if _, err := store.RemoveStale(); err != nil {
				log.Error().Err(err).Msg("failed to clean up cache directory")
			}
			return ErrInterrupted
		}
	}

	rows, loadReport, err := store.Load()
	if err != nil {
		return err
	}
	mtr.ObserveCacheLoad(len(loadReport.Corrupted))
	report.CorruptedCache = loadReport.Corrupted
	log.Info().
		Int("numFiles", loadReport.NumFiles).
		Int("numRows", loadReport.NumRows).
		Int("numCorrupted", len(loadReport.Corrupted)).
		Msg("loaded cached counts")

	missing, err := store.DetectMissingDates()
	if err != nil {
		return err
	}
	report.MissingDates = missing
	if len(missing) > 0 {
		log.Warn().
			Strs("dates", cache.FormatDates(missing)).
			Msg("found days without data, their counts are removed from the output")
	}

	table := aggregate.Aggregate(
		rows,
		aggregate.Options{
			SampleRate: conf.SampleRate,
			Missing:    missing,
			Project:    conf.Project,
		},
	)
	if err := writeOutput(conf.OutputPath, table, store.Columns()); err != nil {
		return err
	}
	mtr.ObserveAggregation(len(missing), table.Total())
	log.Info().
		Int("numRows", len(table)).
		Int64("total", table.Total()).
		Str("output", conf.OutputPath).
		Dur("duration", time.Since(t0)).
		Msg("aggregation finished")

	if conf.MetricsTextfile != "" {
		if err := mtr.WriteTextfile(conf.MetricsTextfile); err != nil {
			log.Error().Err(err).Msg("failed to write metrics")
		}
	}

	notifier, err := notifications.NewNotifier(
		conf.EmailNotification, conf.ConomiNotification, conf.TimezoneLocation())
	if err != nil {
		return err
	}
	report.Finished = time.Now().In(conf.TimezoneLocation())
	if err := notifications.SendRunReport(notifier, report); err != nil {
		log.Error().Err(err).Msg("failed to send run report")
	}
	return nil
}
