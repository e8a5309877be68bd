package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"realprice/server/internal/database"
	"realprice/server/internal/models"
)

// Service checks stored price rules against freshly computed statistics and
// posts an alert to each rule's webhook when a threshold is crossed.
type Service struct {
	logger *logrus.Logger
	client *http.Client
	db     *database.Database
}

type alertPayload struct {
	Area         string  `json:"area"`
	RuleID       uint    `json:"rule_id"`
	Direction    string  `json:"direction"`
	Threshold    float64 `json:"threshold"`
	AvgUnitPrice float64 `json:"avg_unit_price"`
	QueryPeriod  string  `json:"query_period"`
	Message      string  `json:"message"`
}

func NewService(logger *logrus.Logger, db *database.Database) *Service {
	return &Service{
		logger: logger,
		client: &http.Client{Timeout: 10 * time.Second},
		db:     db,
	}
}

// Check evaluates the enabled rules for an area against stats. Failing
// notifications are logged, never propagated; monitoring must not break the
// query path.
func (s *Service) Check(area string, stats *models.PriceStatistics) {
	rules, err := s.db.GetMonitorRules(area)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load monitor rules")
		return
	}

	for _, rule := range rules {
		if !triggered(rule, stats.AvgUnitPrice) {
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"rule_id":        rule.ID,
			"area":           area,
			"threshold":      rule.Threshold,
			"avg_unit_price": stats.AvgUnitPrice,
		}).Info("Monitor rule triggered")

		if rule.WebhookURL == "" {
			continue
		}
		if err := s.notify(rule, stats); err != nil {
			s.logger.WithError(err).WithField("rule_id", rule.ID).Error("Alert notification failed")
		}
	}
}

func triggered(rule database.MonitorRule, avgUnitPrice float64) bool {
	switch rule.Direction {
	case "below":
		return avgUnitPrice < rule.Threshold
	default:
		return avgUnitPrice > rule.Threshold
	}
}

func (s *Service) notify(rule database.MonitorRule, stats *models.PriceStatistics) error {
	payload := alertPayload{
		Area:         stats.Area,
		RuleID:       rule.ID,
		Direction:    rule.Direction,
		Threshold:    rule.Threshold,
		AvgUnitPrice: stats.AvgUnitPrice,
		QueryPeriod:  stats.QueryPeriod,
		Message: fmt.Sprintf("%s 平均單價 %.2f 萬/坪 (threshold %.2f, %s)",
			stats.Area, stats.AvgUnitPrice, rule.Threshold, rule.Direction),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %v", err)
	}

	resp, err := s.client.Post(rule.WebhookURL, "application/json", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to post alert: %v", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.New("webhook rejected the alert, check its credentials")
	case resp.StatusCode == http.StatusNotFound:
		return errors.New("webhook endpoint not found")
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}
