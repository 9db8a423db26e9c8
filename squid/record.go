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
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	timestampLayout         = "2006-01-02T15:04:05.000"
	timestampLayoutFallback = "2006-01-02T15:04:05"

	// CountryUnknown is used whenever the geo lookup fails
	CountryUnknown = "unknown"

	initRequestPathPrefix = "wiki"
	initRequestMimeType   = "text/html"
)

// Field identifies a derived (lazily computed) record attribute
type Field uint

const (
	FieldDatetime Field = iota
	FieldURL
	FieldURLArgs
	FieldURLPath
	FieldNetloc
	FieldCountry
	FieldDeviceType
	FieldBot
	FieldStatusCode
	FieldMimeType
	FieldAgent
	FieldInitRequest
	FieldOldInitRequest
)

// Record represents a parsed Squid log line. Raw fields are
// available directly, derived fields via methods. Each derived
// field is computed at most once (including a possible error)
// and kept for the lifetime of the record. A Record is not safe
// for concurrent use.
type Record struct {
	Host           string
	Seq            string
	Timestamp      string
	ReqTime        string
	IP             string
	Status         string
	ReplySize      string
	Method         string
	RawURL         string
	SquidHierarchy string
	MimeTypeRaw    string
	Referrer       string
	XFF            string
	AgentRaw       string

	env      *RecordEnv
	computed uint32

	datetime       time.Time
	datetimeErr    error
	url            *url.URL
	urlErr         error
	urlArgs        url.Values
	urlPath        []string
	netloc         Netloc
	netlocErr      error
	country        string
	deviceType     DeviceType
	bot            bool
	statusCode     int
	mimeType       string
	agent          string
	initRequest    bool
	oldInitRequest bool
}

// Computed tells whether a derived field has been already resolved
func (r *Record) Computed(f Field) bool {
	return r.computed&(1<<f) != 0
}

// resolve runs the field's resolver in case the field has not
// been computed yet
func (r *Record) resolve(f Field) {
	if r.Computed(f) {
		return
	}
	switch f {
	case FieldDatetime:
		resolveDatetime(r)
	case FieldURL:
		resolveURL(r)
	case FieldURLArgs:
		resolveURLArgs(r)
	case FieldURLPath:
		resolveURLPath(r)
	case FieldNetloc:
		resolveNetloc(r)
	case FieldCountry:
		resolveCountry(r)
	case FieldDeviceType:
		resolveDeviceType(r)
	case FieldBot:
		resolveBot(r)
	case FieldStatusCode:
		resolveStatusCode(r)
	case FieldMimeType:
		resolveMimeType(r)
	case FieldAgent:
		resolveAgent(r)
	case FieldInitRequest:
		resolveInitRequest(r)
	case FieldOldInitRequest:
		resolveOldInitRequest(r)
	}
	r.computed |= 1 << f
}

// ------------------ resolvers

func resolveDatetime(r *Record) {
	t, err := time.Parse(timestampLayout, r.Timestamp)
	if err != nil {
		var err2 error
		t, err2 = time.Parse(timestampLayoutFallback, r.Timestamp)
		if err2 != nil {
			r.datetimeErr = TimestampError{Value: r.Timestamp, Cause: err}
			return
		}
	}
	r.datetime = t
}

func resolveURL(r *Record) {
	r.url, r.urlErr = url.Parse(r.RawURL)
}

func resolveURLArgs(r *Record) {
	u, err := r.URL()
	if err != nil {
		r.urlArgs = url.Values{}
		return
	}
	r.urlArgs = u.Query()
}

func resolveURLPath(r *Record) {
	u, err := r.URL()
	if err != nil || u.Path == "" {
		r.urlPath = []string{}
		return
	}
	r.urlPath = strings.Split(u.Path, "/")[1:]
}

func resolveNetloc(r *Record) {
	u, err := r.URL()
	if err != nil {
		r.netlocErr = NetlocError{URL: r.RawURL, Message: err.Error()}
		return
	}
	r.netloc, r.netlocErr = parseNetloc(u)
}

func resolveCountry(r *Record) {
	r.country = CountryUnknown
	if r.env.Locator == nil {
		return
	}
	ip := net.ParseIP(r.IP)
	if ip == nil {
		return
	}
	code, err := r.env.Locator.CountryCode(ip)
	if err != nil || code == "" {
		return
	}
	r.country = code
}

func resolveDeviceType(r *Record) {
	r.deviceType = classifyDevice(r.UserAgent())
}

func resolveBot(r *Record) {
	if r.env.BotDetector != nil {
		r.bot = r.env.BotDetector.AgentIsBot(r.UserAgent())
	}
}

func resolveStatusCode(r *Record) {
	statusStr := r.Status
	if i := strings.Index(statusStr, "/"); i >= 0 {
		statusStr = statusStr[i+1:]
	}
	status, err := strconv.Atoi(statusStr)
	if err != nil {
		status = -1
	}
	r.statusCode = status
}

func resolveMimeType(r *Record) {
	r.mimeType = strings.TrimSuffix(r.MimeTypeRaw, ";")
}

func resolveAgent(r *Record) {
	agent, err := url.PathUnescape(r.AgentRaw)
	if err != nil {
		agent = r.AgentRaw
	}
	r.agent = agent
}

func resolveInitRequest(r *Record) {
	status := r.StatusCode()
	r.initRequest = r.MimeType() == initRequestMimeType &&
		status >= 0 && status < 300 &&
		r.firstPathSegment() == initRequestPathPrefix
}

func resolveOldInitRequest(r *Record) {
	r.oldInitRequest = r.firstPathSegment() == initRequestPathPrefix
}

func (r *Record) firstPathSegment() string {
	p := r.URLPath()
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// ------------------ accessors

// Datetime returns the request time. Records are logged
// in UTC without zone information.
func (r *Record) Datetime() (time.Time, error) {
	r.resolve(FieldDatetime)
	return r.datetime, r.datetimeErr
}

// Date returns the calendar date of the request in the YYYY-MM-DD format
func (r *Record) Date() (string, error) {
	dt, err := r.Datetime()
	if err != nil {
		return "", err
	}
	return dt.Format(time.DateOnly), nil
}

func (r *Record) URL() (*url.URL, error) {
	r.resolve(FieldURL)
	return r.url, r.urlErr
}

func (r *Record) URLArgs() url.Values {
	r.resolve(FieldURLArgs)
	return r.urlArgs
}

// URLPath returns path segments of the request URL
// (without the leading empty segment)
func (r *Record) URLPath() []string {
	r.resolve(FieldURLPath)
	return r.urlPath
}

func (r *Record) Netloc() (Netloc, error) {
	r.resolve(FieldNetloc)
	return r.netloc, r.netlocErr
}

func (r *Record) Lang() (string, error) {
	n, err := r.Netloc()
	return n.Lang, err
}

func (r *Record) Site() (string, error) {
	n, err := r.Netloc()
	return n.Site, err
}

func (r *Record) Project() (string, error) {
	n, err := r.Netloc()
	return n.Project, err
}

// Country returns an ISO country code of the client IP or
// CountryUnknown. The method never fails.
func (r *Record) Country() string {
	r.resolve(FieldCountry)
	return r.country
}

func (r *Record) DeviceType() DeviceType {
	r.resolve(FieldDeviceType)
	return r.deviceType
}

func (r *Record) IsBot() bool {
	r.resolve(FieldBot)
	return r.bot
}

// StatusCode returns the HTTP status code or -1
// if the status field cannot be decoded
func (r *Record) StatusCode() int {
	r.resolve(FieldStatusCode)
	return r.statusCode
}

func (r *Record) MimeType() string {
	r.resolve(FieldMimeType)
	return r.mimeType
}

// UserAgent returns the URL-decoded user agent
func (r *Record) UserAgent() string {
	r.resolve(FieldAgent)
	return r.agent
}

// IsInitRequest tests whether the record is a successful
// HTML page view of an article.
func (r *Record) IsInitRequest() bool {
	r.resolve(FieldInitRequest)
	return r.initRequest
}

// IsOldInitRequest is a looser variant of IsInitRequest which
// checks only the article path prefix. Historical counts were
// produced with this predicate.
func (r *Record) IsOldInitRequest() bool {
	r.resolve(FieldOldInitRequest)
	return r.oldInitRequest
}
