package market

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// first digit run, optionally followed by a house-number suffix marker
	houseNumberPattern = regexp.MustCompile(`(\d+)(?:號|之|樓|-)?`)
	// fallback: a road-ish name ending in a recognized road-type suffix
	roadNamePattern = regexp.MustCompile(`([^區]+?(?:路|街|巷|弄|段))`)
	whitespace      = regexp.MustCompile(`\s+`)
)

// districtPrefixes are trimmed from addresses before parsing
var districtPrefixes = []string{
	"北屯區", "西屯區", "南屯區", "中區", "東區", "西區", "南區", "北區",
}

// ParseAddress splits a free-text address into a road-segment name and a
// house number. This is a best-effort heuristic; either result may be empty
// and callers must tolerate misparses.
//
//	"臺中市北屯區文心路四段100號" -> ("文心路四段", 100)
//	"臺中市西屯區市政路500號"     -> ("市政路", 500)
func ParseAddress(address string) (roadName string, houseNumber int) {
	if address == "" {
		return "", 0
	}

	address = stripCityPrefix(address)
	for _, district := range districtPrefixes {
		address = strings.ReplaceAll(address, district, "")
	}
	address = strings.TrimSpace(address)

	loc := houseNumberPattern.FindStringSubmatchIndex(address)
	if loc != nil {
		digits := address[loc[2]:loc[3]]
		houseNumber, _ = strconv.Atoi(digits)
		roadName = whitespace.ReplaceAllString(strings.TrimSpace(address[:loc[0]]), "")
		return roadName, houseNumber
	}

	if m := roadNamePattern.FindStringSubmatch(address); m != nil {
		return m[1], 0
	}
	return "", 0
}
