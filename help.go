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

package main

import (
	"fmt"

	"squidcount/config"
)

var helpTexts = map[string]string{
	config.ActionCount: `Count page views of gzipped Squid log files found in srcDir (files named
<source>.log-<YYYYMMDD>.gz, e.g. zero-orange-kenya.log-20130501.gz). Files with
an existing entry in cacheDir are skipped, new files are counted concurrently
and their per-file counts are stored in cacheDir. All the cached counts are then
grouped, multiplied by the sample rate and written as CSV to outputPath (or stdout).
Days without any log file are excluded from the output.

{
    "srcDir": "/var/log/squid/zero",
    "cacheDir": "/var/cache/squidcount",
    "outputPath": "/var/lib/squidcount/counts.csv",
    "geoIpDbPath": "/usr/share/GeoIP/GeoLite2-Country.mmdb",
    "sampleRate": 10,
    "filterRequests": true,
    "predicate": "old-init-request",
    "providerPrefix": "zero-",
    "numWorkers": 4,
    "logLevel": "info"
}
`,
	config.ActionGaps: `Print days without a cache entry (between the first and the last cached day)
and, if worklogPath is configured, source files whose last processing attempt failed.`,
	config.ActionInvalidate: `Remove cache entries of the listed source files (e.g. orange-kenya.log-20130501.gz)
so they are counted again by the next run of the count action. This is the only way
an already counted file is reprocessed.`,
	config.ActionVersion: `Print version information.`,
}

func help(topic string) {
	if topic == "" {
		fmt.Printf("Missing action to help with. Select one of the:\n\t%s, %s, %s, %s\n",
			config.ActionCount, config.ActionGaps, config.ActionInvalidate, config.ActionVersion)
		return
	}
	fmt.Printf("\n[%s]\n\n", topic)
	if text, ok := helpTexts[topic]; ok {
		fmt.Println(text)

	} else {
		fmt.Println("- no information available -")
	}
	fmt.Println()
}
