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
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// GeoLookupError reports a failed IP to country resolution
type GeoLookupError struct {
	IP    string
	Cause error
}

func (e GeoLookupError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("GeoLookupError: no country for %s", e.IP)
	}
	return fmt.Sprintf("GeoLookupError: failed to resolve %s: %s", e.IP, e.Cause)
}

func (e GeoLookupError) Unwrap() error {
	return e.Cause
}

// Locator maps client IP addresses to ISO 3166 country codes.
// Implementations must be safe for concurrent use.
type Locator interface {
	CountryCode(ip net.IP) (string, error)
}

// GeoIPLocator is a Locator backed by a MaxMind
// country (or city) database
type GeoIPLocator struct {
	db *geoip2.Reader
}

func (gl *GeoIPLocator) CountryCode(ip net.IP) (string, error) {
	rec, err := gl.db.Country(ip)
	if err != nil {
		return "", GeoLookupError{IP: ip.String(), Cause: err}
	}
	if rec.Country.IsoCode == "" {
		return "", GeoLookupError{IP: ip.String()}
	}
	return rec.Country.IsoCode, nil
}

func (gl *GeoIPLocator) Close() error {
	return gl.db.Close()
}

// OpenGeoIPLocator opens a MaxMind database file. The returned
// locator should be closed once all the processing is done.
func OpenGeoIPLocator(path string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("opened GeoIP database")
	return &GeoIPLocator{db: db}, nil
}

// StaticLocator resolves addresses using a fixed table.
// It is mostly useful for testing and for small installations
// where the client networks are known in advance.
type StaticLocator map[string]string

func (sl StaticLocator) CountryCode(ip net.IP) (string, error) {
	if v, ok := sl[ip.String()]; ok {
		return v, nil
	}
	return "", GeoLookupError{IP: ip.String()}
}
