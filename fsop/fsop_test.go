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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTests(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	assert.True(t, IsDir(dir))
	assert.False(t, IsDir(path))
	assert.True(t, IsFile(path))
	assert.False(t, IsFile(dir))
	assert.False(t, IsFile(filepath.Join(dir, "missing")))
	assert.Equal(t, int64(5), FileSize(path))
	assert.Equal(t, int64(-1), FileSize(filepath.Join(dir, "missing")))
}

func TestIsWritableDir(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, IsWritableDir(dir))
	assert.True(t, IsWritableDir(filepath.Join(dir, "not", "yet", "created")))
	items, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, items)
}
