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
	"net/url"
	"strings"
)

const (

	// SiteMain tags requests to the full (desktop) site
	SiteMain = "X"

	// SiteMobile tags requests to the m. site variant
	SiteMobile = "M"

	// SiteZero tags requests to the zero-rated site variant
	SiteZero = "Z"
)

var (
	siteIDs = map[string]string{
		"m":    SiteMobile,
		"zero": SiteZero,
	}

	langIDs = map[string]bool{}
)

func init() {
	for _, lang := range strings.Fields(knownLanguages) {
		langIDs[lang] = true
	}
}

// IsKnownLanguage tests whether a subdomain is one of the known
// language editions.
func IsKnownLanguage(v string) bool {
	return langIDs[v]
}

// Netloc is a decomposed request host
type Netloc struct {

	// Lang is an empty string in case the host has no language subdomain
	Lang    string
	Site    string
	Project string
}

// parseNetloc decomposes a host like de.m.wikipedia.org into
// an optional language, an optional site variant and the project
// (the rest of the host).
func parseNetloc(u *url.URL) (Netloc, error) {
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return Netloc{}, NetlocError{URL: u.String(), Message: "empty host"}
	}
	items := strings.Split(host, ".")
	var ans Netloc
	if len(items) > 1 && IsKnownLanguage(items[0]) {
		ans.Lang = items[0]
		items = items[1:]
	}
	ans.Site = SiteMain
	if len(items) > 1 {
		if site, ok := siteIDs[items[0]]; ok {
			ans.Site = site
			items = items[1:]
		}
	}
	ans.Project = strings.Join(items, ".")
	if ans.Project == "" {
		return Netloc{}, NetlocError{URL: u.String(), Message: "missing project"}
	}
	return ans, nil
}

const knownLanguages = `
en de fr nl it pl es ru ja pt sv zh uk ca no fi cs hu tr ro ko vi da ar eo sr
id lt vo sk he fa bg sl eu war lmo et hr new te nn th gl el ceb simple ms ht bs
bpy lb ka is sq la br hi az bn mk mr sh tl cy io pms lv ta su oc jv nap nds scn
be ast ku wa af be-x-old an ksh szl fy frr yue ur ia ga yi sw als hy am roa-rup
map-bms bh co cv dv nds-nl fo fur glk gu ilo kn pam csb kk km lij li ml gv mi mt
nah ne nrm se nov qu os pi pag ps pdc rm bat-smg sa gd sco sc si tg roa-tara tt
to tk hsb uz vec fiu-vro wuu vls yo diq zh-min-nan zh-classical frp lad bar bcl
kw mn haw ang ln ie wo tpi ty crh jbo ay zea eml ky ig or mg cbk-zam kg arc rmy
gn so kab ks stq ce udm mzn pap cu sah tet sd lo ba pnb iu na got bo dsb chr cdo
hak om my sm ee pcd ug as ti av bm zu pnt nv cr pih ss ve bi rw ch arz xh kl ik
bug dz ts tn kv tum xal st tw bxr ak ab ny fj lbe ki za ff lg sn ha sg ii cho rn
mh chy ng kj ho mus kr hz mwl pa xmf lez
`
