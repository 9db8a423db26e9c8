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

package ctype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	googlebotUA = "Mozilla/5.0 (Linux; Android 6.0.1; Nexus 5X Build/MMB29P) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/41.0.2272.96 Mobile Safari/537.36 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
	operaMiniUA = "Opera/9.80 (J2ME/MIDP; Opera Mini/9.80 (S60; SymbOS; Opera Mobi/23.348; U; en) Presto/2.5.25 Version/10.54"
)

func TestAgentIsBot(t *testing.T) {
	analyzer := NewClientTypeAnalyzer(&BotDefs{
		Bots: []BotInfo{
			{Match: []string{"Googlebot/", "Mozilla/5.0"}},
		},
	})
	assert.True(t, analyzer.AgentIsBot(googlebotUA))
	assert.False(t, analyzer.AgentIsBot(operaMiniUA))
}

func TestAgentIsBotMustMatchAll(t *testing.T) {
	defs := []BotInfo{
		{Match: []string{"Googlebot/", "Mozilla/6.0"}},
	}
	assert.False(t, searchMatchingDef(googlebotUA, defs))
	assert.False(t, searchMatchingDef(googlebotUA, []BotInfo{{}}))
}

func TestCustomDefinition(t *testing.T) {
	analyzer := NewClientTypeAnalyzer(&BotDefs{
		Bots: []BotInfo{{Title: "in-house checker", Match: []string{"zabbix-test"}}},
	})
	ua := "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0 zabbix-test"
	assert.True(t, analyzer.AgentIsBot(ua))
	assert.False(t, NewClientTypeAnalyzer(nil).AgentIsBot(ua))
}

func TestLegacyPattern(t *testing.T) {
	legacy := &LegacyClientTypeAnalyzer{}
	assert.True(t, legacy.AgentIsBot("msnbot/2.0b"))
	assert.True(t, legacy.AgentIsBot("Baiduspider"))
	assert.True(t, legacy.AgentIsBot("some crawler"))
	assert.True(t, legacy.AgentIsBot("Checker (+http://example.com/info)"))
	assert.False(t, legacy.AgentIsBot(operaMiniUA))
}

func TestLegacyPatternMatchesAnywhere(t *testing.T) {
	legacy := &LegacyClientTypeAnalyzer{}
	assert.True(t, legacy.AgentIsBot("Mozilla/5.0 (compatible; MSIECrawler)"))
	assert.True(t, legacy.AgentIsBot("Mozilla/5.0 (compatible; Sosospider/2.0)"))
	assert.True(t, legacy.AgentIsBot("Mozilla/5.0 (compatible; Feedfetcher; http://example.com)"))
}

func TestEmptyAgentIsNotBot(t *testing.T) {
	analyzer := NewClientTypeAnalyzer(nil)
	assert.False(t, analyzer.AgentIsBot(""))
	assert.False(t, analyzer.AgentIsBot("-"))
}

func TestLoadFromResource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bots.json")
	require.NoError(t, os.WriteFile(
		path, []byte(`{"bots": [{"title": "x", "match": ["FooFetcher"], "example": "FooFetcher/1"}]}`), 0644))
	analyzer, err := LoadFromResource(path)
	require.NoError(t, err)
	assert.Equal(t, 1, analyzer.NumDefs())
	assert.True(t, analyzer.AgentIsBot("FooFetcher/1"))

	analyzer, err = LoadFromResource("")
	require.NoError(t, err)
	assert.Equal(t, 0, analyzer.NumDefs())

	_, err = LoadFromResource(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
