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
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"squidcount/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	version   string
	buildDate string
	gitCommit string
)

// ProcessOptions contains command line options overriding
// the respective configuration values. Only explicitly
// provided flags are applied.
type ProcessOptions struct {
	srcDir       string
	cacheDir     string
	sampleRate   int64
	mobileOnly   bool
	cacheOnly    bool
	numWorkers   int
	project      string
	outputPath   string
	logLevel     string
	worklogReset bool
}

func (opts *ProcessOptions) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&opts.srcDir, "src-dir", "", "directory with gzipped Squid log files (overrides srcDir)")
	fs.StringVar(&opts.cacheDir, "cache-dir", "", "directory with per-file counts (overrides cacheDir)")
	fs.Int64Var(&opts.sampleRate, "sample-rate", 1, "inverse of the log sampling ratio (overrides sampleRate)")
	fs.BoolVar(&opts.mobileOnly, "mobile-only", false, "count page views only (overrides filterRequests)")
	fs.BoolVar(&opts.cacheOnly, "cache-only", false, "do not process source files, aggregate cached counts only")
	fs.IntVar(&opts.numWorkers, "workers", 0, "number of files processed concurrently (overrides numWorkers)")
	fs.StringVar(&opts.project, "project", "", "restrict output to a single project, e.g. wikipedia.org")
	fs.StringVar(&opts.outputPath, "output", "", "output CSV file (overrides outputPath, empty means stdout)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.worklogReset, "worklog-reset", false, "clear the worklog before processing")
}

// applyTo overrides configuration values by the flags explicitly
// set in fs
func (opts *ProcessOptions) applyTo(conf *config.Main, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "src-dir":
			conf.SrcDir = opts.srcDir
		case "cache-dir":
			conf.CacheDir = opts.cacheDir
		case "sample-rate":
			conf.SampleRate = opts.sampleRate
		case "mobile-only":
			conf.FilterRequests = opts.mobileOnly
		case "cache-only":
			conf.CacheOnly = opts.cacheOnly
		case "workers":
			conf.NumWorkers = opts.numWorkers
		case "project":
			conf.Project = opts.project
		case "output":
			conf.OutputPath = opts.outputPath
		case "log-level":
			conf.LogLevel = opts.logLevel
		}
	})
}

func setup(confPath string, opts *ProcessOptions, action string) *config.Main {
	if confPath == "" {
		fmt.Fprintln(os.Stderr, "config path not specified")
		os.Exit(1)
	}
	conf, err := config.Load(confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %s\n", confPath, err)
		os.Exit(1)
	}
	opts.applyTo(conf, flag.CommandLine)
	if err := setupLogging(conf.LogPath, conf.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %s\n", err)
		os.Exit(1)
	}
	config.Validate(conf, action)
	return conf
}

func main() {
	procOpts := new(ProcessOptions)
	procOpts.registerFlags(flag.CommandLine)
	flag.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Squidcount - counts page views of Squid access logs per day, language, project, site, country and provider\n\n"+
				"Usage:\n\t%s [options] [action] [config.json] [source files...]\n\nAvailable actions:\n\t%s\n\nOptions:\n",
			filepath.Base(os.Args[0]),
			strings.Join(
				[]string{
					config.ActionCount, config.ActionGaps, config.ActionInvalidate,
					config.ActionHelp, config.ActionVersion,
				},
				", ",
			),
		)
		flag.PrintDefaults()
	}
	flag.Parse()
	action := flag.Arg(0)

	switch action {
	case config.ActionHelp:
		help(flag.Arg(1))
	case config.ActionVersion:
		fmt.Printf("squidcount %s\nbuild date: %s\nlast commit: %s\n", version, buildDate, gitCommit)
	case config.ActionCount, config.ActionGaps, config.ActionInvalidate:
		conf := setup(flag.Arg(1), procOpts, action)
		runID := uuid.New().String()
		attachRunID(runID)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		var err error
		switch action {
		case config.ActionCount:
			err = runCountAction(ctx, conf, procOpts, runID)
		case config.ActionGaps:
			err = runGapsAction(conf, os.Stdout)
		case config.ActionInvalidate:
			_, err = runInvalidateAction(conf, flag.Args()[2:])
		}
		stop()
		if err != nil {
			log.Fatal().Err(err).Str("action", action).Msg("action failed")
		}
	default:
		fmt.Printf("Unknown action [%s]. Try -h for help\n", action)
		os.Exit(1)
	}
}
