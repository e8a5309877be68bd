package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"realprice/server/internal/dataset"
	"realprice/server/internal/models"
)

// rowCache memoizes the parsed artifact so repeated queries within the TTL
// do not re-read the CSV from disk.
type rowCache struct {
	mu       sync.RWMutex
	rows     []models.RawRow
	loadedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

func newRowCache(ttl time.Duration) *rowCache {
	return &rowCache{ttl: ttl, now: time.Now}
}

func (c *rowCache) get() ([]models.RawRow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rows == nil || c.now().Sub(c.loadedAt) >= c.ttl {
		return nil, false
	}
	return c.rows, true
}

func (c *rowCache) set(rows []models.RawRow) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
	c.loadedAt = c.now()
}

func (c *rowCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
}

// readRows loads the filtered artifact, validates the header against the
// required column set and returns untyped rows. The artifact is always
// UTF-8; the refresh pipeline transcodes on write.
func readRows(path string) ([]models.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read header: %v", dataset.ErrFormat, err)
	}
	for i, field := range header {
		header[i] = strings.TrimSpace(strings.ReplaceAll(field, "\uFEFF", ""))
	}

	var missing []string
	for _, required := range models.RequiredFields {
		found := false
		for _, field := range header {
			if field == required {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns: %s", dataset.ErrFormat, strings.Join(missing, ", "))
	}

	var rows []models.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		row := make(models.RawRow, len(header))
		for i, field := range header {
			if i < len(record) {
				row[field] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// filterByDistrictAndRoad keeps rows whose district fuzzily matches the
// query. Both sides are normalized (city prefix and 區 suffix stripped) and
// the match is bidirectional, so both over- and under-specified queries
// land. An optional road narrows by substring inside the address field.
func filterByDistrictAndRoad(rows []models.RawRow, district, road string) []models.RawRow {
	query := stripCityPrefix(district)
	queryBase := strings.ReplaceAll(query, "區", "")

	var filtered []models.RawRow
	for _, row := range rows {
		rowDistrict := strings.TrimSpace(row[models.FieldDistrict])
		if rowDistrict == "" {
			continue
		}
		rowBase := strings.ReplaceAll(rowDistrict, "區", "")

		match := strings.Contains(rowDistrict, query) ||
			strings.Contains(query, rowDistrict) ||
			strings.Contains(rowDistrict, queryBase) ||
			strings.Contains(query, rowBase)
		if !match {
			continue
		}

		if road != "" && !strings.Contains(row[models.FieldAddress], road) {
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}

// availableDistricts returns the sorted distinct districts in the source
func availableDistricts(rows []models.RawRow) []string {
	seen := make(map[string]bool)
	var districts []string
	for _, row := range rows {
		district := strings.TrimSpace(row[models.FieldDistrict])
		if district != "" && !seen[district] {
			seen[district] = true
			districts = append(districts, district)
		}
	}
	sort.Strings(districts)
	return districts
}
