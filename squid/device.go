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

import "regexp"

// DeviceType is a coarse client device category derived
// from a user agent
type DeviceType string

const (
	DeviceTablet     DeviceType = "tablet"
	DeviceWikiMobile DeviceType = "wiki_mobile"
	DeviceMobile     DeviceType = "mobile"
	DeviceBlank      DeviceType = "-"
	DeviceUnknown    DeviceType = "unknown"
)

type deviceRule struct {
	tag DeviceType
	rg  *regexp.Regexp
}

// deviceRules are ordered by precedence; the first matching
// rule wins. The "mobile" pattern is broad (it matches most
// tablets too) so it must stay behind the more specific ones.
var deviceRules = []deviceRule{
	{
		tag: DeviceTablet,
		rg: regexp.MustCompile(
			`iPad|Android 3|SCH-I800|Kindle Fire|Xoom|GT-P|Transformer|SC-01C|pandigital|SPH-P|` +
				`STM803HC|K080|SGH-T849|CatNova|NookColor|M803HC|A1_|SGH-I987|Ideos S7|SHW-M180|` +
				`HomeManager|HTC_Flyer|PlayBook|Streak|Kobo Touch|LG-V905R|MID7010|CT704|Silk|` +
				`MID7024|ARCHM|Iconia|TT101|CT1002|; A510|MID_Serials|ZiiO10|MID7015|001DL|` +
				`MID Build|PM1152|RBK-490|Tablet|A100 Build|ViewPad|PMP3084|PG41200|; A500|A7EB|A80KSC`),
	},
	{
		tag: DeviceWikiMobile,
		rg: regexp.MustCompile(
			`CFNetwork|Dalvik|WikipediaMobile|Appcelerator|WiktionaryMobile|Wikipedia Mobile`),
	},
	{
		tag: DeviceMobile,
		rg: regexp.MustCompile(
			`Android|BlackBerry|Windows CE|DoCoMo|iPad|iPod|iPhone|HipTop|Kindle|LGE|Linux arm|` +
				`MIDP|NetFront|Nintendo|Nokia|Obigo|Opera Mini|Opera Mobi|Palm|Playstation|Samsung|` +
				`SoftBank|SonyEricsson|Symbian|UP\.Browser|Vodafone|WAP|webOS|HTC[^P]|KDDI|FOMA|` +
				`Polaris|Teleca|Silk|ZuneWP|HUAwei|Sunrise XP|Sunrise/|AUDIOVOX|LG/U|AU-MIC|` +
				`Motorola|portalmmm|Amoi|GINGERBREAD|Spice|lgtelecom|PlayBook|KYOCERA|Opera Tablet|` +
				`Windows Phone|UNTRUSTED|Sensation|UCWEB|Nook|XV6975|EBRD1|Rhodium|UPG|Pantech|` +
				`MeeGo|Tizen`),
	},
	{
		tag: DeviceBlank,
		rg:  regexp.MustCompile(`^-$`),
	},
}

func classifyDevice(userAgent string) DeviceType {
	for _, rule := range deviceRules {
		if rule.rg.MatchString(userAgent) {
			return rule.tag
		}
	}
	return DeviceUnknown
}
