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
	"fmt"
	"io"

	"squidcount/cache"
	"squidcount/config"
	"squidcount/worklog"

	"github.com/rs/zerolog/log"
)

// runGapsAction prints days without a cache entry and (if
// a worklog is configured) files which failed to be processed
func runGapsAction(conf *config.Main, w io.Writer) error {
	store, err := cache.NewStore(conf.CacheDir, conf.CacheColumns)
	if err != nil {
		return err
	}
	missing, err := store.DetectMissingDates()
	if err != nil {
		return err
	}
	log.Info().Int("numMissing", len(missing)).Msg("checked cache for missing dates")
	for _, d := range cache.FormatDates(missing) {
		fmt.Fprintf(w, "missing\t%s\n", d)
	}
	if conf.WorklogPath == "" {
		return nil
	}
	wl, err := worklog.Open(conf.WorklogPath, "")
	if err != nil {
		return err
	}
	defer wl.Close()
	failed, err := wl.Failed()
	if err != nil {
		return err
	}
	for _, item := range failed {
		fmt.Fprintf(w, "failed\t%s\t%d\t%s\n", item.File, item.Attempts, item.LastError)
	}
	return nil
}
