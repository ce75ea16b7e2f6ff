package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/platter/internal/model"
	"github.com/Nixie-Tech-LLC/platter/internal/notify"
)

const (
	// EventsChannel carries every scheduler event as JSON.
	EventsChannel = "platter:events"
	// ActiveScheduleKey holds the last activation event while its schedule is active.
	ActiveScheduleKey = "platter:active_schedule"
)

var Rdb *redis.Client

func InitRedis(redisAddress string, redisUsername string, redisPassword string) *redis.Client {
	Rdb = redis.NewClient(&redis.Options{
		Addr:     redisAddress,
		Username: redisUsername,
		Password: redisPassword,
		DB:       0,
	})
	return Rdb
}

// commands is the subset of *redis.Client the publisher uses.
type commands interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Publisher pushes scheduler events to a redis channel and keeps the
// currently active schedule under ActiveScheduleKey for late readers.
type Publisher struct {
	rdb commands
}

var _ notify.Publisher = (*Publisher)(nil)

func NewPublisher(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

func (p *Publisher) Publish(ctx context.Context, ev notify.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	log.Debug().Str("channel", EventsChannel).Str("type", string(ev.Type)).Msg("published event to redis")

	switch {
	case ev.Type == notify.EventActivated:
		if err := p.rdb.Set(ctx, ActiveScheduleKey, payload, 0).Err(); err != nil {
			return fmt.Errorf("redis set %s: %w", ActiveScheduleKey, err)
		}
	case ev.Status != "" && ev.Status != model.StatusActive:
		return p.clearActive(ctx, ev)
	}
	return nil
}

// clearActive drops ActiveScheduleKey if it still points at ev's schedule.
func (p *Publisher) clearActive(ctx context.Context, ev notify.Event) error {
	raw, err := p.rdb.Get(ctx, ActiveScheduleKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", ActiveScheduleKey, err)
	}
	var current notify.Event
	if err := json.Unmarshal(raw, &current); err != nil || current.ScheduleID != ev.ScheduleID {
		return nil
	}
	if err := p.rdb.Del(ctx, ActiveScheduleKey).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", ActiveScheduleKey, err)
	}
	return nil
}
