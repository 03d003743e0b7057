package source

import "strings"

// provinceSuffixes are stripped from administrative names, longest first so
// that "新疆维吾尔自治区" becomes "新疆" rather than "新疆维吾尔".
var provinceSuffixes = []string{
	"维吾尔自治区",
	"壮族自治区",
	"回族自治区",
	"特别行政区",
	"自治区",
	"省",
	"市",
}

// NormalizeProvince returns the short form of a province name, e.g.
// "山东省" -> "山东", "广西壮族自治区" -> "广西".
func NormalizeProvince(name string) string {
	name = strings.TrimSpace(name)
	for _, s := range provinceSuffixes {
		if trimmed, ok := strings.CutSuffix(name, s); ok && trimmed != "" {
			return trimmed
		}
	}
	return name
}

// provinceAreas is the land area of each province in square kilometres.
var provinceAreas = map[string]float64{
	"新疆":  1664900,
	"西藏":  1228400,
	"内蒙古": 1183000,
	"青海":  722300,
	"四川":  486000,
	"黑龙江": 473000,
	"甘肃":  425800,
	"云南":  394000,
	"广西":  237600,
	"湖南":  211800,
	"陕西":  205600,
	"河北":  188800,
	"吉林":  187400,
	"湖北":  185900,
	"广东":  179800,
	"贵州":  176200,
	"江西":  166900,
	"河南":  167000,
	"山西":  156300,
	"山东":  155800,
	"辽宁":  145900,
	"安徽":  139600,
	"福建":  121400,
	"江苏":  102600,
	"浙江":  101800,
	"重庆":  82400,
	"宁夏":  66400,
	"台湾":  36000,
	"海南":  35400,
	"北京":  16410,
	"天津":  11760,
	"上海":  6340,
	"香港":  1106,
	"澳门":  32.9,
}

// Area returns the land area for a normalized province name.
func Area(province string) (float64, bool) {
	a, ok := provinceAreas[province]
	return a, ok
}
