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

package fsop

import (
	"os"
	"path/filepath"
)

// IsDir tests whether a provided path represents
// a directory. If not or in case of an IO error,
// false is returned.
func IsDir(path string) bool {
	finfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return finfo.Mode().IsDir()
}

// IsFile tests whether a provided path represents
// a file. If not or in case of an IO error,
// false is returned.
func IsFile(path string) bool {
	finfo, err := os.Stat(path)
	if err != nil {
		return false
	}
	return finfo.Mode().IsRegular()
}

// FileSize returns size of a file in bytes.
// In case of an error, -1 is returned
func FileSize(path string) int64 {
	finfo, err := os.Stat(path)
	if err != nil {
		return -1
	}
	return finfo.Size()
}

// IsWritableDir tests whether a directory (or its nearest
// existing parent in case it does not exist yet) exists
// and a file can be created there.
func IsWritableDir(path string) bool {
	for !IsDir(path) {
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
	f, err := os.CreateTemp(path, ".probe-*")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}
