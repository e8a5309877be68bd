package market

import (
	"fmt"
	"sort"

	"realprice/server/internal/models"
)

// Analyze computes the aggregate statistics for a non-empty transaction
// list. fullPeriodCodes carries the period codes of the pre-window set so
// the query-period label reflects everything the district holds, not just
// what survived the time window; when empty the windowed set's own codes
// are used.
func Analyze(transactions []models.Transaction, area string, fullPeriodCodes []string, proximityThreshold int) (*models.PriceStatistics, error) {
	if len(transactions) == 0 {
		return nil, &DataAbsentError{Area: area}
	}

	total := len(transactions)
	var priceSum, unitPriceSum float64
	maxPrice, minPrice := transactions[0].Price, transactions[0].Price
	maxUnitPrice, minUnitPrice := transactions[0].UnitPrice, transactions[0].UnitPrice

	for _, t := range transactions {
		priceSum += t.Price
		unitPriceSum += t.UnitPrice
		if t.Price > maxPrice {
			maxPrice = t.Price
		}
		if t.Price < minPrice {
			minPrice = t.Price
		}
		if t.UnitPrice > maxUnitPrice {
			maxUnitPrice = t.UnitPrice
		}
		if t.UnitPrice < minUnitPrice {
			minUnitPrice = t.UnitPrice
		}
	}

	return &models.PriceStatistics{
		Area:              area,
		TotalTransactions: total,
		AvgPrice:          round2(priceSum / float64(total)),
		AvgUnitPrice:      round2(unitPriceSum / float64(total)),
		MaxPrice:          round2(maxPrice),
		MinPrice:          round2(minPrice),
		MaxUnitPrice:      round2(maxUnitPrice),
		MinUnitPrice:      round2(minUnitPrice),
		MedianAge:         medianAge(transactions),
		PriceTrend:        priceTrend(transactions),
		QueryPeriod:       queryPeriod(transactions, fullPeriodCodes),
		ProjectGroups:     GroupByProject(transactions, proximityThreshold),
	}, nil
}

// medianAge picks sorted[len/2] of the known ages. For even counts this
// is the upper middle rather than the true median; the behavior is kept
// as-is pending product confirmation.
func medianAge(transactions []models.Transaction) *float64 {
	var ages []int
	for _, t := range transactions {
		if t.BuildingAge != nil {
			ages = append(ages, *t.BuildingAge)
		}
	}
	if len(ages) == 0 {
		return nil
	}
	sort.Ints(ages)
	median := float64(ages[len(ages)/2])
	return &median
}

// priceTrend buckets unit prices by the 5-character period code and emits
// the mean per bucket.
func priceTrend(transactions []models.Transaction) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, t := range transactions {
		code := t.Date
		if len(code) > 5 {
			code = code[:5]
		}
		sums[code] += t.UnitPrice
		counts[code]++
	}

	trend := make(map[string]float64, len(sums))
	for code, sum := range sums {
		trend[code] = round2(sum / float64(counts[code]))
	}
	return trend
}

func queryPeriod(transactions []models.Transaction, fullPeriodCodes []string) string {
	codes := fullPeriodCodes
	if len(codes) == 0 {
		codes = make([]string, 0, len(transactions))
		for _, t := range transactions {
			codes = append(codes, t.Date)
		}
	}
	if len(codes) == 0 {
		return "N/A"
	}
	sorted := append([]string(nil), codes...)
	sort.Strings(sorted)
	return fmt.Sprintf("%s ~ %s", sorted[0], sorted[len(sorted)-1])
}
