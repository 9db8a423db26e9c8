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
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"squidcount/common"
	"squidcount/counter"
	"squidcount/fsop"
	"squidcount/pipeline"

	"github.com/czcorpus/cnc-gokit/mail"
	conomiClient "github.com/czcorpus/conomi/client"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	ActionCount      = "count"
	ActionGaps       = "gaps"
	ActionInvalidate = "invalidate"
	ActionHelp       = "help"
	ActionVersion    = "version"

	DefaultTimeZone   = "UTC"
	DefaultSampleRate = 1
	DefaultLogLevel   = "info"

	envPrefix = "SQUIDCOUNT"
)

// Main describes squidcount's configuration
type Main struct {
	SrcDir     string `json:"srcDir"`
	CacheDir   string `json:"cacheDir" validate:"required"`
	CacheOnly  bool   `json:"cacheOnly"`
	OutputPath string `json:"outputPath"`

	// GeoIPDbPath is a path to a MaxMind country database. If empty,
	// all the countries are reported as unknown.
	GeoIPDbPath string `json:"geoIpDbPath"`

	// SampleRate is an inverse of the sampling ratio of the logs
	// (e.g. 1000 for logs containing every thousandth request)
	SampleRate int64 `json:"sampleRate" validate:"min=1"`

	// FilterRequests enables counting of page views only (see Predicate).
	FilterRequests bool   `json:"filterRequests"`
	Predicate      string `json:"predicate" validate:"oneof=old-init-request init-request all"`
	ExcludeBots    bool   `json:"excludeBots"`
	ProviderPrefix string `json:"providerPrefix"`

	// Project restricts the output to a single project (e.g. wikipedia.org)
	Project string `json:"project"`

	NumWorkers         int                            `json:"numWorkers" validate:"min=1,max=16"`
	CacheColumns       []string                       `json:"cacheColumns"`
	BotDefsPath        string                         `json:"botDefsPath"`
	WorklogPath        string                         `json:"worklogPath"`
	MetricsTextfile    string                         `json:"metricsTextfile"`
	LogPath            string                         `json:"logPath"`
	LogLevel           string                         `json:"logLevel" validate:"oneof=debug info warn error"`
	TimeZone           string                         `json:"timeZone"`
	EmailNotification  *mail.NotificationConf         `json:"emailNotification"`
	ConomiNotification *conomiClient.ConomiClientConf `json:"conomiNotification"`
}

func (c *Main) TimezoneLocation() *time.Location {
	// we can ignore the error here as we always call Validate()
	// first (which also tries to load the location and report possible
	// error)
	loc, _ := time.LoadLocation(c.TimeZone)
	return loc
}

func (c *Main) CountOptions() counter.Options {
	return counter.Options{
		FilterRequests: c.FilterRequests,
		Predicate:      counter.Predicate(c.Predicate),
		ExcludeBots:    c.ExcludeBots,
		ProviderPrefix: c.ProviderPrefix,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("srcDir", "")
	v.SetDefault("cacheDir", "")
	v.SetDefault("cacheOnly", false)
	v.SetDefault("outputPath", "")
	v.SetDefault("geoIpDbPath", "")
	v.SetDefault("sampleRate", DefaultSampleRate)
	v.SetDefault("filterRequests", false)
	v.SetDefault("predicate", string(counter.PredicateOldInitRequest))
	v.SetDefault("excludeBots", false)
	v.SetDefault("providerPrefix", counter.DefaultProviderPrefix)
	v.SetDefault("project", "")
	v.SetDefault("numWorkers", pipeline.DefaultConcurrencyLimit)
	v.SetDefault("botDefsPath", "")
	v.SetDefault("worklogPath", "")
	v.SetDefault("metricsTextfile", "")
	v.SetDefault("logPath", "")
	v.SetDefault("logLevel", DefaultLogLevel)
	v.SetDefault("timeZone", DefaultTimeZone)
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s (required)", e.Field())
	case "min", "max", "oneof":
		return fmt.Sprintf("%s (%s=%s)", e.Field(), e.Tag(), e.Param())
	}
	return fmt.Sprintf("%s (%s)", e.Field(), e.Tag())
}

func validateStruct(conf *Main) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	err := validate.Struct(conf)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return err
	}
	msgs := make([]string, len(vErrs))
	for i, e := range vErrs {
		msgs[i] = formatValidationError(e)
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(msgs, ", "))
}

// Load loads main configuration (either from a local fs or via http(s)).
// JSON and YAML formats are supported (based on the extension, JSON
// is the default). Any value can be overridden by an environment
// variable SQUIDCOUNT_<KEY> (e.g. SQUIDCOUNT_SAMPLERATE).
func Load(path string) (*Main, error) {
	rawData, err := common.LoadSupportedResource(path)
	if err != nil {
		return nil, err
	}
	return Parse(rawData, common.ResourceExt(path))
}

// Parse decodes raw configuration data of the provided
// format (json, yaml)
func Parse(rawData []byte, format string) (*Main, error) {
	v := viper.New()
	switch format {
	case "yaml", "yml":
		v.SetConfigType("yaml")
	default:
		v.SetConfigType("json")
	}
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	if err := v.ReadConfig(bytes.NewReader(rawData)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var conf Main
	if err := v.Unmarshal(&conf, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "json"
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &conf, nil
}

// Check tests whether the configuration is usable for the action
func Check(conf *Main, action string) error {
	if err := validateStruct(conf); err != nil {
		return err
	}
	if action == ActionCount && !conf.CacheOnly && !fsop.IsDir(conf.SrcDir) {
		return fmt.Errorf("invalid srcDir: '%s'", conf.SrcDir)
	}
	if !fsop.IsWritableDir(conf.CacheDir) {
		return fmt.Errorf("cacheDir '%s' is not writable", conf.CacheDir)
	}
	if conf.GeoIPDbPath != "" && !fsop.IsFile(conf.GeoIPDbPath) {
		return fmt.Errorf("invalid geoIpDbPath: '%s'", conf.GeoIPDbPath)
	}
	if len(conf.CacheColumns) > 0 {
		if err := counter.ValidateColumns(conf.CacheColumns); err != nil {
			return fmt.Errorf("invalid cacheColumns: %w", err)
		}
	}
	if conf.TimeZone == "" {
		conf.TimeZone = DefaultTimeZone
	}
	if _, err := time.LoadLocation(conf.TimeZone); err != nil {
		return fmt.Errorf("invalid timeZone: %w", err)
	}
	return nil
}

// Validate checks for some essential config properties
// and terminates the program in case of a problem
func Validate(conf *Main, action string) {
	if err := Check(conf, action); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if conf.GeoIPDbPath == "" {
		log.Warn().Msg("geoIpDbPath not specified, all countries will be reported as unknown")
	}
	if conf.CacheOnly && conf.SrcDir != "" {
		log.Info().Msg("cache-only mode, source directory will not be scanned")
	}
}
