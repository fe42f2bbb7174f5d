package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/TheYonk/robomonkey/internal/config"
	"github.com/TheYonk/robomonkey/internal/queue"
	"github.com/TheYonk/robomonkey/pkg/logger"
)

// Publisher pushes job lifecycle events onto a redis channel for the admin
// panel and other live consumers. It is strictly fire-and-forget: publish
// failures are logged and swallowed, and queue state never depends on it.
type Publisher struct {
	client  *redis.Client
	channel string
	logger  logger.Logger
}

// New creates a publisher from the events config. Returns nil when the
// feed is disabled; a nil Publisher is safe to pass around.
func New(cfg config.EventsConfig, log logger.Logger) *Publisher {
	if !cfg.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &Publisher{
		client:  client,
		channel: cfg.Channel,
		logger:  log.Named("notify"),
	}
}

// JobEvent implements queue.EventSink
func (p *Publisher) JobEvent(ctx context.Context, ev queue.Event) {
	if p == nil {
		return
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to encode job event", "error", err)
		return
	}

	if err := p.client.Publish(ctx, p.channel, raw).Err(); err != nil {
		p.logger.Warn("failed to publish job event",
			"kind", ev.Kind, "job_id", ev.JobID, "error", err)
	}
}

// Close releases the redis connection
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}

	return p.client.Close()
}
