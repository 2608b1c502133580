package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/totegamma/escrow-ledger"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, channel string, event escrow.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, channel, jsonstr).Err()
	if err != nil {
		return err

	}

	return nil
}

// Realtime relays events of the channels received on input to output until
// ctx is done. Each value on input replaces the current subscription set.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []string, output chan<- escrow.Event) {
	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()

	var current []string
	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return
		case channels, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.WarnContext(ctx, "failed to unsubscribe", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
			current = channels
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.WarnContext(ctx, "failed to subscribe", slog.String("error", err.Error()), slog.String("module", "signal"))
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event escrow.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.DebugContext(ctx, "malformed event", slog.String("channel", msg.Channel), slog.String("module", "signal"))
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}
