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
	"encoding/json"
	"fmt"
	"strings"

	"squidcount/common"

	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"
)

type BotInfo struct {
	Title   string   `json:"title"`
	Match   []string `json:"match"`
	Example string   `json:"example"`
}

type BotDefs struct {
	Bots []BotInfo `json:"bots"`
}

// searchMatchingDef returns true if all the Match
// substrings of some definition are found in the agent
func searchMatchingDef(userAgent string, defs []BotInfo) bool {
	for _, item := range defs {
		if len(item.Match) == 0 {
			continue
		}
		match := true
		for _, m := range item.Match {
			match = match && strings.Contains(userAgent, m)
			if !match {
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// ClientTypeAnalyzer detects crawlers by combining explicit
// definitions, the user agent parser and the legacy pattern.
// It is read-only after creation and safe for concurrent use.
type ClientTypeAnalyzer struct {
	data   *BotDefs
	legacy *LegacyClientTypeAnalyzer
}

func (cta *ClientTypeAnalyzer) AgentIsBot(userAgent string) bool {
	if userAgent == "" || userAgent == "-" {
		return false
	}
	if searchMatchingDef(userAgent, cta.data.Bots) {
		return true
	}
	if useragent.Parse(userAgent).Bot {
		return true
	}
	return cta.legacy.AgentIsBot(userAgent)
}

func (cta *ClientTypeAnalyzer) NumDefs() int {
	return len(cta.data.Bots)
}

// NewClientTypeAnalyzer creates an analyzer with explicit definitions.
// A nil defs value is allowed.
func NewClientTypeAnalyzer(defs *BotDefs) *ClientTypeAnalyzer {
	if defs == nil {
		defs = &BotDefs{}
	}
	return &ClientTypeAnalyzer{data: defs, legacy: &LegacyClientTypeAnalyzer{}}
}

// LoadFromResource loads bot definitions from a file or URL
// (see common.LoadSupportedResource). An empty path produces
// an analyzer without explicit definitions.
func LoadFromResource(path string) (*ClientTypeAnalyzer, error) {
	if path == "" {
		return NewClientTypeAnalyzer(nil), nil
	}
	rawData, err := common.LoadSupportedResource(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot definitions: %w", err)
	}
	conf := new(BotDefs)
	if err := json.Unmarshal(rawData, conf); err != nil {
		return nil, fmt.Errorf("failed to parse bot definitions %s: %w", path, err)
	}
	log.Info().Int("numDefs", len(conf.Bots)).Str("source", path).Msg("loaded bot definitions")
	return NewClientTypeAnalyzer(conf), nil
}
