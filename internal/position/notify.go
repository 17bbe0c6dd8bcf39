package position

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/vantage/backend/internal/contracts"
	"github.com/wonny/vantage/backend/pkg/logger"
	"github.com/wonny/vantage/backend/pkg/redis"
)

// LogNotifier writes risk signals to the structured log. Default
// delivery channel when nothing external is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

// NotifyAssessment logs the assessment at warn level
func (n *LogNotifier) NotifyAssessment(ctx context.Context, a *contracts.Assessment) error {
	n.logger.WithFields(map[string]interface{}{
		"ticker":     a.Ticker,
		"action":     a.Action,
		"phase":      a.Phase,
		"stop":       a.Stop,
		"close":      a.Close,
		"r_multiple": a.RMultiple,
		"concern":    a.Concern,
	}).Warn("Position risk signal")
	return nil
}

// RedisNotifier publishes risk signals to a Redis channel so external
// consumers (alert bots, dashboards) can subscribe.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier creates a Redis pub/sub notifier
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "vantage:position:signals"
	}
	return &RedisNotifier{
		client:  client,
		channel: channel,
	}
}

// NotifyAssessment publishes the assessment as JSON. A disabled Redis
// client makes this a no-op.
func (n *RedisNotifier) NotifyAssessment(ctx context.Context, a *contracts.Assessment) error {
	if !n.client.Enabled() {
		return nil
	}

	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}

	if err := n.client.Redis().Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish assessment: %w", err)
	}
	return nil
}
