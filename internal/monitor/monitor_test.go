package monitor

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realprice/server/internal/database"
	"realprice/server/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestDB(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTriggered(t *testing.T) {
	above := database.MonitorRule{Direction: "above", Threshold: 40}
	assert.True(t, triggered(above, 45))
	assert.False(t, triggered(above, 40))
	assert.False(t, triggered(above, 35))

	below := database.MonitorRule{Direction: "below", Threshold: 40}
	assert.True(t, triggered(below, 35))
	assert.False(t, triggered(below, 40))
	assert.False(t, triggered(below, 45))
}

func TestCheck_PostsAlertWhenThresholdCrossed(t *testing.T) {
	var payload alertPayload
	received := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	db := newTestDB(t)
	require.NoError(t, db.CreateMonitorRule(&database.MonitorRule{
		Area:       "北屯區",
		Threshold:  40,
		Direction:  "above",
		WebhookURL: server.URL,
		Enabled:    true,
	}))

	s := NewService(testLogger(), db)
	s.Check("北屯區", &models.PriceStatistics{
		Area:         "北屯區",
		AvgUnitPrice: 45.5,
		QueryPeriod:  "11401 ~ 11503",
	})

	assert.Equal(t, 1, received)
	assert.Equal(t, "北屯區", payload.Area)
	assert.InDelta(t, 45.5, payload.AvgUnitPrice, 0.001)
	assert.Equal(t, "above", payload.Direction)
	assert.NotEmpty(t, payload.Message)
}

func TestCheck_SkipsUntriggeredRules(t *testing.T) {
	received := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
	}))
	defer server.Close()

	db := newTestDB(t)
	require.NoError(t, db.CreateMonitorRule(&database.MonitorRule{
		Area:       "北屯區",
		Threshold:  40,
		Direction:  "above",
		WebhookURL: server.URL,
		Enabled:    true,
	}))

	s := NewService(testLogger(), db)
	s.Check("北屯區", &models.PriceStatistics{Area: "北屯區", AvgUnitPrice: 30})

	assert.Equal(t, 0, received)
}

func TestCheck_WebhookFailureDoesNotPanic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	db := newTestDB(t)
	require.NoError(t, db.CreateMonitorRule(&database.MonitorRule{
		Area:       "北屯區",
		Threshold:  40,
		WebhookURL: server.URL,
		Enabled:    true,
	}))

	s := NewService(testLogger(), db)
	s.Check("北屯區", &models.PriceStatistics{Area: "北屯區", AvgUnitPrice: 50})
}

func TestNotify_StatusHandling(t *testing.T) {
	tests := []struct {
		status  int
		wantErr bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		s := NewService(testLogger(), nil)
		err := s.notify(
			database.MonitorRule{ID: 1, Direction: "above", Threshold: 40, WebhookURL: server.URL},
			&models.PriceStatistics{Area: "北屯區", AvgUnitPrice: 50},
		)
		if tt.wantErr {
			assert.Error(t, err, "status %d", tt.status)
		} else {
			assert.NoError(t, err, "status %d", tt.status)
		}
		server.Close()
	}
}
