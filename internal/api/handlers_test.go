package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realprice/server/config"
	"realprice/server/internal/database"
	"realprice/server/internal/dataset"
	"realprice/server/internal/market"
	"realprice/server/internal/models"
	"realprice/server/internal/monitor"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

// minguoDate renders t as the register's 7-digit Minguo date
func minguoDate(t time.Time) string {
	return fmt.Sprintf("%03d%02d%02d", t.Year()-1911, int(t.Month()), t.Day())
}

// newTestRouter wires the full API against a pre-seeded data directory so no
// remote download is ever attempted.
func newTestRouter(t *testing.T) (*gin.Engine, *database.Database) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dataDir := t.TempDir()

	recent := minguoDate(time.Now().AddDate(0, -6, 0))
	artifact := "鄉鎮市區,土地位置建物門牌,交易年月日,總價元,建物移轉總面積平方公尺,單價元平方公尺,土地移轉總面積平方公尺,屋齡,建物型態,移轉層次\n" +
		fmt.Sprintf("北屯區,臺中市北屯區文心路四段100號,%s,10000000,100,100000,40,12,住宅大樓,五層\n", recent) +
		fmt.Sprintf("北屯區,臺中市北屯區文心路四段110號,%s,12000000,110,110000,45,8,住宅大樓,七層\n", recent)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "taichung_prices.csv"), []byte(artifact), 0644))

	records := map[string]models.VersionRecord{
		"taichung": {Version: "114年第3季", LastDownload: time.Now(), RowCount: 2},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, ".version_info.json"), data, 0644))

	cfg := &config.Config{
		DataDir:            dataDir,
		ArtifactTTLDays:    7,
		ResultTTLHours:     24,
		QueryWindowYears:   5,
		ProximityThreshold: 100,
	}
	cfg.Download.MaxRetries = 1
	cfg.Download.Timeout = 5
	cfg.Download.RequestsPerSecond = 1

	manager, err := dataset.NewManager(testLogger(), cfg)
	require.NoError(t, err)
	service := market.NewService(testLogger(), cfg, manager, "taichung")

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	router := gin.New()
	SetupRoutes(router, NewHandler(service, db, monitor.NewService(testLogger(), db), testLogger()))
	return router, db
}

func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestQueryPrice_OK(t *testing.T) {
	router, db := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/price?area=北屯區", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats models.PriceStatistics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, "北屯區", stats.Area)
	assert.Equal(t, 2, stats.TotalTransactions)

	// The query lands in the history table
	records, err := db.GetRecentQueries(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "北屯區", records[0].Area)
}

func TestQueryPrice_MissingArea(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/price", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryPrice_UnknownArea(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/price?area=板橋區", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "suggestions")
}

func TestQueryPrice_NoData(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/price?area=和平區", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "available_districts")
}

func TestGetRegions(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/regions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var regions []config.RegionSource
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &regions))
	assert.NotEmpty(t, regions)
}

func TestGetCacheInfo(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/cache/taichung", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info models.CacheInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.True(t, info.IsValid)
	assert.Equal(t, "114年第3季", info.Version)

	w = doRequest(router, http.MethodGet, "/api/cache/taipei", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetCacheTTL(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPut, "/api/cache/ttl", gin.H{"hours": 48})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodPut, "/api/cache/ttl", gin.H{"hours": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, http.MethodPut, "/api/cache/ttl", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMonitorRules_Endpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/monitors", gin.H{
		"area":      "北屯區",
		"threshold": 40.5,
		"direction": "sideways",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created database.MonitorRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	// Unknown directions collapse to the default
	assert.Equal(t, "above", created.Direction)

	w = doRequest(router, http.MethodGet, "/api/monitors", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rules []database.MonitorRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	assert.Len(t, rules, 1)

	w = doRequest(router, http.MethodDelete, fmt.Sprintf("/api/monitors/%d", created.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodDelete, fmt.Sprintf("/api/monitors/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMonitorRule_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/monitors", gin.H{"threshold": 40.5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHistory(t *testing.T) {
	router, db := newTestRouter(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.RecordQuery(&database.QueryRecord{Area: "北屯區", Transactions: i}))
	}

	w := doRequest(router, http.MethodGet, "/api/history?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []database.QueryRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 2)
}
