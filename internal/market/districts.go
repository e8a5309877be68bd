package market

import (
	"sort"
	"strings"
)

// cityPrefixes are stripped from queries and addresses before matching
var cityPrefixes = []string{"臺中市", "台中市"}

// taichungDistricts maps accepted spellings (with or without the 區 suffix)
// to canonical district names.
var taichungDistricts = map[string]string{
	"中區": "中區", "東區": "東區", "西區": "西區", "南區": "南區", "北區": "北區",
	"西屯": "西屯區", "西屯區": "西屯區",
	"南屯": "南屯區", "南屯區": "南屯區",
	"北屯": "北屯區", "北屯區": "北屯區",
	"豐原": "豐原區", "豐原區": "豐原區",
	"東勢": "東勢區", "東勢區": "東勢區",
	"大甲": "大甲區", "大甲區": "大甲區",
	"清水": "清水區", "清水區": "清水區",
	"沙鹿": "沙鹿區", "沙鹿區": "沙鹿區",
	"梧棲": "梧棲區", "梧棲區": "梧棲區",
	"后里": "后里區", "后里區": "后里區",
	"神岡": "神岡區", "神岡區": "神岡區",
	"潭子": "潭子區", "潭子區": "潭子區",
	"大雅": "大雅區", "大雅區": "大雅區",
	"新社": "新社區", "新社區": "新社區",
	"石岡": "石岡區", "石岡區": "石岡區",
	"外埔": "外埔區", "外埔區": "外埔區",
	"大安": "大安區", "大安區": "大安區",
	"烏日": "烏日區", "烏日區": "烏日區",
	"大肚": "大肚區", "大肚區": "大肚區",
	"龍井": "龍井區", "龍井區": "龍井區",
	"霧峰": "霧峰區", "霧峰區": "霧峰區",
	"太平": "太平區", "太平區": "太平區",
	"大里": "大里區", "大里區": "大里區",
	"和平": "和平區", "和平區": "和平區",
}

// stripCityPrefix removes the city-name prefixes from a query or address
func stripCityPrefix(s string) string {
	for _, prefix := range cityPrefixes {
		s = strings.ReplaceAll(s, prefix, "")
	}
	return strings.TrimSpace(s)
}

// NormalizeArea splits a free-text query into a canonical district and an
// optional road remainder.
//
//	"北屯"           -> ("北屯區", "")
//	"西屯區文心路"    -> ("西屯區", "文心路")
//	"台中市南屯區"    -> ("南屯區", "")
func NormalizeArea(area string) (district, road string) {
	area = stripCityPrefix(area)

	// Prefer the longest matching spelling so "北屯區" is not consumed as "北屯"
	keys := make([]string, 0, len(taichungDistricts))
	for key := range taichungDistricts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	for _, key := range keys {
		if strings.HasPrefix(area, key) {
			district = taichungDistricts[key]
			road = strings.TrimSpace(area[len(key):])
			return district, road
		}
	}
	return "", ""
}

// SuggestDistricts returns up to five known districts that overlap the
// query by prefix or substring, 區 suffix ignored.
func SuggestDistricts(query string) []string {
	query = strings.ToLower(strings.ReplaceAll(stripCityPrefix(query), "區", ""))

	seen := make(map[string]bool)
	var suggestions []string
	for _, district := range sortedDistricts() {
		base := strings.ToLower(strings.ReplaceAll(district, "區", ""))
		if base == "" || seen[district] {
			continue
		}
		if strings.Contains(base, query) || strings.Contains(query, base) {
			seen[district] = true
			suggestions = append(suggestions, district)
		}
		if len(suggestions) == 5 {
			break
		}
	}
	return suggestions
}

func sortedDistricts() []string {
	seen := make(map[string]bool)
	var districts []string
	for _, canonical := range taichungDistricts {
		if !seen[canonical] {
			seen[canonical] = true
			districts = append(districts, canonical)
		}
	}
	sort.Strings(districts)
	return districts
}
