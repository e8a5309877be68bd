package market

import (
	"fmt"
	"sort"

	"realprice/server/internal/models"
)

// parsedTransaction pairs a transaction with its parsed address
type parsedTransaction struct {
	transaction models.Transaction
	roadName    string
	number      int
}

// GroupByProject clusters transactions into project groups: bucket by exact
// road name, sort by house number, then chain-link neighbors whose gap stays
// within the proximity threshold.
//
// The rule is pairwise: each transaction is compared against its immediate
// predecessor, not against the group's bounds, so a chain of close neighbors
// may span more than the threshold overall. That matches how contiguous
// developments are numbered and is intentional.
func GroupByProject(transactions []models.Transaction, proximityThreshold int) []models.ProjectGroup {
	var parsed []parsedTransaction
	for _, t := range transactions {
		roadName, number := ParseAddress(t.Road)
		if roadName == "" {
			continue
		}
		parsed = append(parsed, parsedTransaction{
			transaction: t,
			roadName:    roadName,
			number:      number,
		})
	}

	buckets := make(map[string][]parsedTransaction)
	for _, item := range parsed {
		buckets[item.roadName] = append(buckets[item.roadName], item)
	}

	roads := make([]string, 0, len(buckets))
	for road := range buckets {
		roads = append(roads, road)
	}
	sort.Strings(roads)

	var groups []models.ProjectGroup
	for _, road := range roads {
		items := buckets[road]
		// stable: ties keep their original relative order
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].number < items[j].number
		})

		current := []parsedTransaction{items[0]}
		for i := 1; i < len(items); i++ {
			gap := items[i].number - items[i-1].number
			if gap < 0 {
				gap = -gap
			}
			if gap <= proximityThreshold {
				current = append(current, items[i])
			} else {
				groups = append(groups, buildGroup(road, current))
				current = []parsedTransaction{items[i]}
			}
		}
		groups = append(groups, buildGroup(road, current))
	}
	return groups
}

func buildGroup(roadName string, items []parsedTransaction) models.ProjectGroup {
	transactions := make([]models.Transaction, len(items))
	addresses := make([]string, len(items))
	var numbers []int

	var priceSum, unitPriceSum float64
	for i, item := range items {
		transactions[i] = item.transaction
		priceSum += item.transaction.Price
		unitPriceSum += item.transaction.UnitPrice
		if item.number > 0 {
			numbers = append(numbers, item.number)
			addresses[i] = fmt.Sprintf("#%d", item.number)
		} else {
			addresses[i] = "#未知"
		}
	}

	count := len(items)
	minNumber, maxNumber := 0, 0
	addressRange := "未知門牌"
	if len(numbers) > 0 {
		minNumber, maxNumber = numbers[0], numbers[0]
		for _, n := range numbers[1:] {
			if n < minNumber {
				minNumber = n
			}
			if n > maxNumber {
				maxNumber = n
			}
		}
		if minNumber == maxNumber {
			addressRange = fmt.Sprintf("%d號", minNumber)
		} else {
			addressRange = fmt.Sprintf("%d-%d號", minNumber, maxNumber)
		}
	}

	return models.ProjectGroup{
		RoadName:         roadName,
		AddressRange:     addressRange,
		MinNumber:        minNumber,
		MaxNumber:        maxNumber,
		TransactionCount: count,
		AvgPrice:         round2(priceSum / float64(count)),
		AvgUnitPrice:     round2(unitPriceSum / float64(count)),
		Addresses:        addresses,
		Transactions:     transactions,
	}
}
