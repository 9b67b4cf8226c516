package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatehouse/internal/domain/security"
)

var _ security.EventLog = (*EventLog)(nil)

const (
	keyEvents = "sec:events:"

	eventCap = 100
	eventTTL = time.Hour
)

// EventLog keeps a newest-first list of security events per user, capped at
// 100 entries with a sliding one-hour expiry on the whole list.
type EventLog struct {
	client *redis.Client
}

func NewEventLog(client *redis.Client) *EventLog { return &EventLog{client: client} }

func (l *EventLog) Append(ctx context.Context, ev security.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := keyEvents + strconv.FormatInt(ev.UserID, 10)
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, eventCap-1)
	pipe.Expire(ctx, key, eventTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (l *EventLog) Recent(ctx context.Context, userID int64) ([]security.Event, error) {
	key := keyEvents + strconv.FormatInt(userID, 10)
	raw, err := l.client.LRange(ctx, key, 0, eventCap-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	events := make([]security.Event, 0, len(raw))
	for _, item := range raw {
		var ev security.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			// Skip entries written by an incompatible version.
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
