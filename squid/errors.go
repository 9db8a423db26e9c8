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

import "fmt"

// MalformedLineError informs that a line does not match the expected
// Squid token layout. Such lines are expected noise in the archives
// and the caller should just skip them.
type MalformedLineError struct {
	LineNumber int64
	NumTokens  int
}

func (m MalformedLineError) Error() string {
	return fmt.Sprintf(
		"MalformedLineError at line %d: expected %d tokens, found %d",
		m.LineNumber, numTokens, m.NumTokens)
}

// NewMalformedLineError is a constructor for MalformedLineError
func NewMalformedLineError(lineNumber int64, numTokens int) MalformedLineError {
	return MalformedLineError{LineNumber: lineNumber, NumTokens: numTokens}
}

// TimestampError reports a timestamp field which matches none of
// the supported formats.
type TimestampError struct {
	Value string
	Cause error
}

func (m TimestampError) Error() string {
	return fmt.Sprintf("TimestampError: cannot parse \"%s\": %s", m.Value, m.Cause)
}

func (m TimestampError) Unwrap() error {
	return m.Cause
}

// NetlocError reports a request URL whose host cannot be decomposed
// into language, site and project.
type NetlocError struct {
	URL     string
	Message string
}

func (m NetlocError) Error() string {
	return fmt.Sprintf("NetlocError: %s (url: %s)", m.Message, m.URL)
}
