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

package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/czcorpus/cnc-gokit/datetime"
)

const (
	maxListedItems = 50
)

// RunReport summarizes problems found during a run
type RunReport struct {
	RunID          string
	SrcDir         string
	CacheDir       string
	FailedFiles    []string
	MissingDates   []time.Time
	CorruptedCache []string
	Finished       time.Time
}

func (r RunReport) IsEmpty() bool {
	return len(r.FailedFiles) == 0 && len(r.MissingDates) == 0 && len(r.CorruptedCache) == 0
}

func listItems(items []string) string {
	var sb strings.Builder
	for i, item := range items {
		if i == maxListedItems {
			sb.WriteString(fmt.Sprintf("... and %d more", len(items)-maxListedItems))
			break
		}
		sb.WriteString("  * ")
		sb.WriteString(item)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (r RunReport) paragraphs() []string {
	ans := make([]string, 0, 4)
	intro := fmt.Sprintf("Squid log counting finished with problems (source: %s, cache: %s).", r.SrcDir, r.CacheDir)
	if !r.Finished.IsZero() {
		intro += fmt.Sprintf(" Run finished at %s.", datetime.FormatDatetime(r.Finished))
	}
	ans = append(ans, intro)
	if len(r.FailedFiles) > 0 {
		ans = append(ans, fmt.Sprintf(
			"The following %d file(s) could not be processed and will be retried in the next run:\n%s",
			len(r.FailedFiles), listItems(r.FailedFiles)))
	}
	if len(r.MissingDates) > 0 {
		dates := make([]string, len(r.MissingDates))
		for i, d := range r.MissingDates {
			dates[i] = d.Format(time.DateOnly)
		}
		ans = append(ans, fmt.Sprintf(
			"No data for the following %d day(s), the days are excluded from the output:\n%s",
			len(dates), listItems(dates)))
	}
	if len(r.CorruptedCache) > 0 {
		ans = append(ans, fmt.Sprintf(
			"The following cache entries are corrupted and were skipped (remove them to reprocess the files):\n%s",
			listItems(r.CorruptedCache)))
	}
	return ans
}

// SendRunReport sends a report via the notifier. Empty reports
// are not sent.
func SendRunReport(notifier Notifier, report RunReport) error {
	if report.IsEmpty() {
		return nil
	}
	return notifier.SendNotification(
		"squidcount: problems found while counting Squid logs",
		map[string]any{
			"runId":          report.RunID,
			"failedFiles":    len(report.FailedFiles),
			"missingDates":   len(report.MissingDates),
			"corruptedCache": len(report.CorruptedCache),
		},
		report.paragraphs()...,
	)
}
