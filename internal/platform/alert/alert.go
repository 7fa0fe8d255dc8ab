// Package alert fans out notifications about critical lab panels.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/cache"
)

// CriticalPanelChannel is the pub/sub channel critical panel alerts go to.
var CriticalPanelChannel = cache.Key("alerts", "critical-panels")

// CriticalTest is one measurement that made a panel critical.
type CriticalTest struct {
	TestName string  `json:"test_name"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
	Severity string  `json:"severity"`
}

// CriticalPanel is published whenever a submitted or replaced panel
// aggregates to critical.
type CriticalPanel struct {
	PanelID     uuid.UUID      `json:"panel_id"`
	PatientID   uuid.UUID      `json:"patient_id"`
	PanelType   string         `json:"panel_type"`
	TestDate    time.Time      `json:"test_date"`
	Tests       []CriticalTest `json:"tests"`
	PublishedAt time.Time      `json:"published_at"`
}

// Publisher delivers critical panel alerts.
type Publisher interface {
	PublishCriticalPanel(ctx context.Context, a CriticalPanel) error
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes JSON alerts on CriticalPanelChannel.
type RedisPublisher struct {
	client redisPublisher
	now    func() time.Time
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, now: time.Now}
}

func (p *RedisPublisher) PublishCriticalPanel(ctx context.Context, a CriticalPanel) error {
	if a.PublishedAt.IsZero() {
		a.PublishedAt = p.now().UTC()
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := p.client.Publish(ctx, CriticalPanelChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish alert for panel %s: %w", a.PanelID, err)
	}
	return nil
}

// LogPublisher writes alerts to the service log. It is used when no redis
// instance is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishCriticalPanel(_ context.Context, a CriticalPanel) error {
	names := make([]string, 0, len(a.Tests))
	for _, t := range a.Tests {
		names = append(names, t.TestName)
	}
	p.logger.Warn().
		Str("panel_id", a.PanelID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("panel_type", a.PanelType).
		Time("test_date", a.TestDate).
		Strs("critical_tests", names).
		Msg("critical lab panel")
	return nil
}
