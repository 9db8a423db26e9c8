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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"squidcount/counter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONWithDefaults(t *testing.T) {
	conf, err := Parse([]byte(`{"srcDir": "/data/squid", "cacheDir": "/var/cache/squidcount", "sampleRate": 1000}`), "json")
	require.NoError(t, err)
	assert.Equal(t, "/data/squid", conf.SrcDir)
	assert.Equal(t, "/var/cache/squidcount", conf.CacheDir)
	assert.Equal(t, int64(1000), conf.SampleRate)
	assert.Equal(t, 4, conf.NumWorkers)
	assert.Equal(t, "old-init-request", conf.Predicate)
	assert.Equal(t, "zero-", conf.ProviderPrefix)
	assert.Equal(t, DefaultLogLevel, conf.LogLevel)
	assert.Equal(t, DefaultTimeZone, conf.TimeZone)
	assert.Nil(t, conf.EmailNotification)
	assert.Nil(t, conf.ConomiNotification)
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
srcDir: /data/squid
cacheDir: /tmp/cache
filterRequests: true
predicate: init-request
providerPrefix: ""
project: wikipedia.org
numWorkers: 8
cacheColumns: [date, lang, project, site, country, provider, count]
emailNotification:
  sender: squidcount@example.com
  recipients:
    - admin@example.com
`)
	conf, err := Parse(data, "yaml")
	require.NoError(t, err)
	assert.True(t, conf.FilterRequests)
	assert.Equal(t, "init-request", conf.Predicate)
	assert.Equal(t, "", conf.ProviderPrefix)
	assert.Equal(t, "wikipedia.org", conf.Project)
	assert.Equal(t, 8, conf.NumWorkers)
	assert.Equal(t, "count", conf.CacheColumns[6])
	require.NotNil(t, conf.EmailNotification)
	assert.Equal(t, []string{"admin@example.com"}, conf.EmailNotification.Recipients)

	opts := conf.CountOptions()
	assert.Equal(t, counter.PredicateInitRequest, opts.Predicate)
	assert.True(t, opts.FilterRequests)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SQUIDCOUNT_SAMPLERATE", "10")
	t.Setenv("SQUIDCOUNT_FILTERREQUESTS", "true")
	conf, err := Parse([]byte(`{"cacheDir": "/tmp/cache", "sampleRate": 1000}`), "json")
	require.NoError(t, err)
	assert.Equal(t, int64(10), conf.SampleRate)
	assert.True(t, conf.FilterRequests)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"cacheDir": "/tmp/cache", "numWorkers": 2}`), 0644))
	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, conf.NumWorkers)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte(`{"cacheDir": `), "json")
	assert.Error(t, err)
}

func validConf(t *testing.T) *Main {
	conf, err := Parse([]byte(`{}`), "json")
	require.NoError(t, err)
	conf.SrcDir = t.TempDir()
	conf.CacheDir = filepath.Join(t.TempDir(), "cache")
	return conf
}

func TestCheck(t *testing.T) {
	conf := validConf(t)
	assert.NoError(t, Check(conf, ActionCount))

	conf = validConf(t)
	conf.SampleRate = 0
	assert.ErrorContains(t, Check(conf, ActionCount), "sampleRate")

	conf = validConf(t)
	conf.NumWorkers = 17
	assert.ErrorContains(t, Check(conf, ActionCount), "numWorkers")

	conf = validConf(t)
	conf.Predicate = "mobile"
	assert.ErrorContains(t, Check(conf, ActionCount), "predicate")

	conf = validConf(t)
	conf.CacheDir = ""
	assert.ErrorContains(t, Check(conf, ActionCount), "cacheDir")

	conf = validConf(t)
	conf.SrcDir = filepath.Join(conf.SrcDir, "missing")
	assert.Error(t, Check(conf, ActionCount))
	assert.NoError(t, Check(conf, ActionGaps))
	conf.CacheOnly = true
	assert.NoError(t, Check(conf, ActionCount))

	conf = validConf(t)
	conf.GeoIPDbPath = filepath.Join(conf.SrcDir, "missing.mmdb")
	assert.Error(t, Check(conf, ActionCount))

	conf = validConf(t)
	conf.CacheColumns = []string{"count", "date"}
	assert.Error(t, Check(conf, ActionCount))

	conf = validConf(t)
	conf.TimeZone = "Mars/Olympus"
	assert.Error(t, Check(conf, ActionCount))
}
