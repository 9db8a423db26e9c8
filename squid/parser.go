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

package squid

import (
	"net"
	"strings"
)

const (
	numTokens = 14

	// mimeParamTokenIdx is the position of the token produced by
	// a MIME type logged with parameters ("text/html; charset=UTF-8").
	// Such lines have one extra token.
	mimeParamTokenIdx = 11
)

// Locator maps a client IP to an ISO country code.
type Locator interface {
	CountryCode(ip net.IP) (string, error)
}

// BotDetector decides whether a user agent belongs to a crawler.
type BotDetector interface {
	AgentIsBot(userAgent string) bool
}

// RecordEnv holds read-only collaborators shared by all records
// produced by a parser. Both the locator and the detector must be
// safe for concurrent use.
type RecordEnv struct {
	Locator     Locator
	BotDetector BotDetector
}

// LineParser is a parser for reading Squid access log lines
// as written by the Wikimedia udp2log filters.
type LineParser struct {
	env *RecordEnv
}

// tokenize splits a line into the expected list of tokens. The logger
// URL-encodes spaces within fields so a single space is a reliable
// separator (and empty trailing fields are preserved).
func (lp *LineParser) tokenize(s string, lineNum int64) ([]string, error) {
	tokens := strings.Split(strings.TrimRight(s, "\r\n"), " ")
	if len(tokens) == numTokens+1 {
		tokens = append(tokens[:mimeParamTokenIdx], tokens[mimeParamTokenIdx+1:]...)
	}
	if len(tokens) != numTokens {
		return nil, NewMalformedLineError(lineNum, len(tokens))
	}
	return tokens, nil
}

// ParseLine parses a Squid log line
// data example:
//
//	0) cp1046.eqiad.wmnet
//	1) 5439162
//	2) 2013-05-01T10:23:41.123
//	3) 0.001
//	4) 41.90.12.5
//	5) TCP_MISS/200
//	6) 12345
//	7) GET
//	8) http://en.m.wikipedia.org/wiki/Nairobi
//	9) CARP/10.64.0.1
//	10) text/html
//	11) http://www.google.com/
//	12) -
//	13) Mozilla/5.0%20(Linux;%20Android%204.0)
func (lp *LineParser) ParseLine(s string, lineNum int64) (*Record, error) {
	tokens, err := lp.tokenize(s, lineNum)
	if err != nil {
		return nil, err
	}
	return &Record{
		Host:           tokens[0],
		Seq:            tokens[1],
		Timestamp:      tokens[2],
		ReqTime:        tokens[3],
		IP:             tokens[4],
		Status:         tokens[5],
		ReplySize:      tokens[6],
		Method:         tokens[7],
		RawURL:         tokens[8],
		SquidHierarchy: tokens[9],
		MimeTypeRaw:    tokens[10],
		Referrer:       tokens[11],
		XFF:            tokens[12],
		AgentRaw:       tokens[13],
		env:            lp.env,
	}, nil
}

// NewLineParser creates a parser producing records bound
// to the provided environment. A nil env is allowed, records
// then report unknown country and no bots.
func NewLineParser(env *RecordEnv) *LineParser {
	if env == nil {
		env = &RecordEnv{}
	}
	return &LineParser{env: env}
}
