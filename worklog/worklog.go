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

package worklog

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketFiles = []byte("files")
)

type Status string

const (
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"

	openTimeout = 5 * time.Second
)

// WorklogItem stores the last known processing state of a source file
type WorklogItem struct {
	File        string    `json:"file"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"lastError,omitempty"`
	LastAttempt time.Time `json:"lastAttempt"`
	RunID       string    `json:"runId"`
}

// Worklog keeps a persistent journal of file processing attempts
// so that repeatedly failing files can be reported. Cache entries
// remain the only source of truth of what has been counted.
// Worklog is safe for concurrent use.
type Worklog struct {
	db    *bolt.DB
	runID string
}

// UpdateFileInfo records a processing attempt of a file
func (w *Worklog) UpdateFileInfo(file string, status Status, procErr error) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketFiles)
		item := WorklogItem{File: file}
		if data := b.Get([]byte(file)); data != nil {
			if err := json.Unmarshal(data, &item); err != nil {
				log.Warn().Err(err).Str("file", file).Msg("invalid worklog item, resetting")
				item = WorklogItem{File: file}
			}
		}
		item.Status = status
		item.Attempts++
		item.LastAttempt = time.Now()
		item.RunID = w.runID
		item.LastError = ""
		if procErr != nil {
			item.LastError = procErr.Error()
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal worklog item: %w", err)
		}
		return b.Put([]byte(file), data)
	})
}

// GetData retrieves the state of a file. The second returned
// value is false if there is no record of the file.
func (w *Worklog) GetData(file string) (WorklogItem, bool, error) {
	var ans WorklogItem
	var found bool
	err := w.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketFiles).Get([]byte(file))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &ans)
	})
	return ans, found, err
}

// Failed returns all files whose last attempt failed,
// sorted by file names
func (w *Worklog) Failed() ([]WorklogItem, error) {
	ans := make([]WorklogItem, 0, 10)
	err := w.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var item WorklogItem
			if err := json.Unmarshal(v, &item); err != nil {
				log.Warn().Err(err).Str("file", string(k)).Msg("skipping invalid worklog item")
				return nil
			}
			if item.Status == StatusFailed {
				ans = append(ans, item)
			}
			return nil
		})
	})
	slices.SortFunc(ans, func(a, b WorklogItem) int {
		return strings.Compare(a.File, b.File)
	})
	return ans, err
}

// Reset removes all the worklog records
func (w *Worklog) Reset() error {
	return w.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketFiles); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketFiles)
		return err
	})
}

// Close cleans up worklog for safe exit
func (w *Worklog) Close() error {
	return w.db.Close()
}

// Open opens (or creates) a worklog database. Records written
// by this instance are tagged with runID.
func Open(path, runID string) (*Worklog, error) {
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open worklog %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketFiles)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize worklog %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("initialized worklog")
	return &Worklog{db: db, runID: runID}, nil
}
