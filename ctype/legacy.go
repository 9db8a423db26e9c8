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

import "regexp"

var legacyBotPattern = regexp.MustCompile(
	`.*([Bb][Oo][Tt])|([Cc]rawl(er)?)|([Ss]pider)|(http://).*`)

// LegacyClientTypeAnalyzer applies the single pattern historical
// counts were produced with. Agents mentioning a URL are
// considered bots too.
type LegacyClientTypeAnalyzer struct {
}

func (cta *LegacyClientTypeAnalyzer) AgentIsBot(userAgent string) bool {
	return legacyBotPattern.MatchString(userAgent)
}
