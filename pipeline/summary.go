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
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Summary aggregates outcomes of a pipeline run
type Summary struct {
	Succeeded   int
	Failed      int
	Cancelled   int
	LinesRead   int64
	Counted     int64
	Skipped     int64
	FailedFiles []string
}

func Summarize(results []FileResult) Summary {
	var ans Summary
	for _, res := range results {
		switch {
		case res.Err == nil:
			ans.Succeeded++
		case res.Cancelled():
			ans.Cancelled++
		default:
			ans.Failed++
			ans.FailedFiles = append(ans.FailedFiles, filepath.Base(res.File))
		}
		if res.Stats != nil {
			ans.LinesRead += res.Stats.LinesRead
			ans.Counted += res.Stats.Counted
			ans.Skipped += res.Stats.Skipped()
		}
	}
	return ans
}

func (s Summary) Log() {
	evt := log.Info()
	if s.Failed > 0 || s.Cancelled > 0 {
		evt = log.Warn()
	}
	evt.
		Int("succeeded", s.Succeeded).
		Int("failed", s.Failed).
		Int("cancelled", s.Cancelled).
		Int64("linesRead", s.LinesRead).
		Int64("counted", s.Counted).
		Int64("skipped", s.Skipped).
		Strs("failedFiles", s.FailedFiles).
		Msg("count pipeline finished")
}
