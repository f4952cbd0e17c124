package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"studyblocks-backend/internal/models"
)

// RedisReminderPublisher fans delivered reminders out to the websocket hub.
type RedisReminderPublisher struct {
	redis *redis.Client
}

func NewRedisReminderPublisher(redisClient *redis.Client) *RedisReminderPublisher {
	return &RedisReminderPublisher{redis: redisClient}
}

// PublishReminder sends a WebSocket update via Redis pub/sub
func (p *RedisReminderPublisher) PublishReminder(ctx context.Context, event models.ReminderEvent) error {
	data, err := json.Marshal(models.WSMessage{Type: models.WSTypeStudyReminder, Payload: event})
	if err != nil {
		return fmt.Errorf("failed to encode reminder event: %w", err)
	}
	return p.redis.Publish(ctx, models.ReminderChannel(event.UserID), data).Err()
}
