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

package geo

import (
	"errors"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticLocator(t *testing.T) {
	loc := StaticLocator{"41.90.12.5": "KE", "2001:db8::1": "CZ"}
	code, err := loc.CountryCode(net.ParseIP("41.90.12.5"))
	assert.NoError(t, err)
	assert.Equal(t, "KE", code)

	code, err = loc.CountryCode(net.ParseIP("2001:db8::1"))
	assert.NoError(t, err)
	assert.Equal(t, "CZ", code)

	_, err = loc.CountryCode(net.ParseIP("10.0.0.1"))
	var gErr GeoLookupError
	assert.True(t, errors.As(err, &gErr))
	assert.Equal(t, "10.0.0.1", gErr.IP)
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := OpenGeoIPLocator(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestGeoLookupErrorUnwrap(t *testing.T) {
	cause := errors.New("invalid node")
	err := GeoLookupError{IP: "1.2.3.4", Cause: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "1.2.3.4")
}
