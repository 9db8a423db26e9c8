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
	"errors"
	"path/filepath"

	"squidcount/cache"
	"squidcount/config"

	"github.com/rs/zerolog/log"
)

// runInvalidateAction removes cache entries of the provided source
// files so the next count run processes them again. It returns the
// number of removed entries.
func runInvalidateAction(conf *config.Main, sourceFiles []string) (int, error) {
	if len(sourceFiles) == 0 {
		return 0, errors.New("no source files to invalidate")
	}
	store, err := cache.NewStore(conf.CacheDir, conf.CacheColumns)
	if err != nil {
		return 0, err
	}
	cached, err := store.ListCached()
	if err != nil {
		return 0, err
	}
	var numRemoved int
	for _, sf := range sourceFiles {
		name := filepath.Base(sf)
		if !cached.Contains(name) {
			log.Warn().Str("file", name).Msg("no cache entry found, nothing to invalidate")
			continue
		}
		if err := store.Remove(name); err != nil {
			return numRemoved, err
		}
		log.Info().Str("file", name).Msg("cache entry removed")
		numRemoved++
	}
	return numRemoved, nil
}
