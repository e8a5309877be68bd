package market

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"realprice/server/internal/dataset"
	"realprice/server/internal/models"
)

// Fixed conversion constants for the register's raw units
const (
	// sqmToPing converts square meters to 坪
	sqmToPing = 0.3025
	// yuanToWan converts 元 to 萬元
	yuanToWan = 10000.0
	// minguoEraOffset converts a Minguo year to a Gregorian year
	minguoEraOffset = 1911
)

// parseDate handles the register's date spellings. A 7-digit compact form
// is a Minguo date (e.g. 1120101 = 2023-01-01); everything else is tried
// against the common Gregorian layouts.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if len(raw) == 7 {
		year, errY := strconv.Atoi(raw[:3])
		month, errM := strconv.Atoi(raw[3:5])
		day, errD := strconv.Atoi(raw[5:7])
		if errY != nil || errM != nil || errD != nil {
			return time.Time{}, fmt.Errorf("bad minguo date %q", raw)
		}
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, fmt.Errorf("bad minguo date %q", raw)
		}
		return time.Date(year+minguoEraOffset, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
	}

	for _, layout := range []string{"2006-01-02", "2006/01/02", "20060102"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}

// parseAmount strips thousands separators before numeric parsing.
// Empty strings parse as zero, matching the source's blank cells.
func parseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// convertRows turns raw rows into canonical transactions. Row-level parse
// failures are skipped with a warning; a batch that yields nothing at all
// is a structural failure.
func convertRows(logger *logrus.Logger, rows []models.RawRow) ([]models.Transaction, error) {
	transactions := make([]models.Transaction, 0, len(rows))

	for _, row := range rows {
		t, err := convertRow(row)
		if err != nil {
			logger.Warnf("Skipping row: %v", err)
			continue
		}
		transactions = append(transactions, t)
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("%w: no rows survived normalization", dataset.ErrFormat)
	}
	return transactions, nil
}

func convertRow(row models.RawRow) (models.Transaction, error) {
	price, err := parseAmount(row[models.FieldTotalPrice])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("bad total price %q: %v", row[models.FieldTotalPrice], err)
	}
	buildingArea, err := parseAmount(row[models.FieldBuildingArea])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("bad building area %q: %v", row[models.FieldBuildingArea], err)
	}
	unitPrice, err := parseAmount(row[models.FieldUnitPrice])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("bad unit price %q: %v", row[models.FieldUnitPrice], err)
	}
	landArea, err := parseAmount(row[models.FieldLandArea])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("bad land area %q: %v", row[models.FieldLandArea], err)
	}
	if price < 0 || buildingArea < 0 || unitPrice < 0 || landArea < 0 {
		return models.Transaction{}, fmt.Errorf("negative amount in row")
	}

	var age *int
	if raw := strings.TrimSpace(row[models.FieldBuildingAge]); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
			a := int(v)
			age = &a
		}
	}

	date := row[models.FieldDate]
	period := date
	if len(period) > 5 {
		period = period[:5]
	}

	return models.Transaction{
		District: strings.TrimSpace(row[models.FieldDistrict]),
		Road:     strings.TrimSpace(row[models.FieldAddress]),
		// 總價元 -> 萬元
		Price: round2(price / yuanToWan),
		// 單價元/平方公尺 -> 萬/坪
		UnitPrice: round2(unitPrice * sqmToPing / yuanToWan),
		// 平方公尺 -> 坪
		BuildingArea: round2(buildingArea * sqmToPing),
		LandArea:     round2(landArea * sqmToPing),
		BuildingAge:  age,
		Date:         period,
		BuildingType: strings.TrimSpace(row[models.FieldBuildingType]),
		Floor:        strings.TrimSpace(row[models.FieldFloor]),
	}, nil
}

// filterByDateWindow keeps rows whose transaction date falls inside the
// trailing window. The cutoff uses years*365 days, a deliberate
// approximation that ignores leap years. Rows with unparseable dates are
// dropped with a warning.
func filterByDateWindow(logger *logrus.Logger, rows []models.RawRow, years int, now time.Time) []models.RawRow {
	cutoff := now.Add(-time.Duration(years) * 365 * 24 * time.Hour)

	var filtered []models.RawRow
	for _, row := range rows {
		date, err := parseDate(row[models.FieldDate])
		if err != nil {
			logger.Warnf("Date filter skipping row: %v", err)
			continue
		}
		if !date.Before(cutoff) {
			filtered = append(filtered, row)
		}
	}
	return filtered
}

// periodCodes extracts the 5-character period code of every row
func periodCodes(rows []models.RawRow) []string {
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		date := strings.TrimSpace(row[models.FieldDate])
		if date == "" {
			continue
		}
		if len(date) > 5 {
			date = date[:5]
		}
		codes = append(codes, date)
	}
	return codes
}
