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

package common

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	httpResourceTimeout = 30 * time.Second
)

// ResourceError reports a configuration or definitions
// resource which cannot be obtained
type ResourceError struct {
	URI   string
	Cause error
}

func (e ResourceError) Error() string {
	return fmt.Sprintf("failed to load resource %s: %s", e.URI, e.Cause)
}

func (e ResourceError) Unwrap() error {
	return e.Cause
}

func loadHTTPResource(url string) ([]byte, error) {
	client := http.Client{Timeout: httpResourceTimeout}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected response status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ResourceExt returns a lowercase extension (without the dot)
// of a resource URI. It is used to choose a decoder.
func ResourceExt(uri string) string {
	if i := strings.IndexAny(uri, "?#"); i >= 0 && strings.Contains(uri, "://") {
		uri = uri[:i]
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(uri)), ".")
}

// LoadSupportedResource loads raw byte data for configuration
// and for bot definitions. Allowed formats are:
// 1) http://..., https://...
// 2) file:/localhost/..., file:///...
// 3) /abs/fs/path, rel/fs/path
func LoadSupportedResource(uri string) ([]byte, error) {
	if uri == "" {
		return nil, fmt.Errorf("no resource (http, file) specified")
	}
	var rawData []byte
	var err error
	if strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://") {
		rawData, err = loadHTTPResource(uri)

	} else if strings.HasPrefix(uri, "file:/localhost/") {
		rawData, err = os.ReadFile(uri[len("file:/localhost/")-1:])

	} else if strings.HasPrefix(uri, "file:///") {
		rawData, err = os.ReadFile(uri[len("file:///")-1:])

	} else { // we assume a common fs path
		rawData, err = os.ReadFile(uri)
	}
	if err != nil {
		return nil, ResourceError{URI: uri, Cause: err}
	}
	return rawData, nil
}
