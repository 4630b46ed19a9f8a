package cache

import (
	"context"
	"encoding/json"

	"github.com/amplifihq/coinswap/internal/constants"
	"github.com/amplifihq/coinswap/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Subscriber consumes the live swap feed. Subscription needs a concrete
// client (not Cmdable) because pub/sub holds a dedicated connection.
type Subscriber struct {
	client *redis.Client
	logger *logrus.Entry
}

func NewSubscriber(client *redis.Client, logger *logrus.Logger) *Subscriber {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Subscriber{
		client: client,
		logger: logger.WithField("component", "pubsub"),
	}
}

// SubscribeSwaps invokes handler for every published execution record until
// ctx is cancelled.
func (s *Subscriber) SubscribeSwaps(ctx context.Context, handler func(*models.SwapExecutionRecord)) error {
	pubsub := s.client.Subscribe(ctx, constants.PubSubChannelSwaps)
	defer pubsub.Close()

	s.logger.WithField("channel", constants.PubSubChannelSwaps).Info("subscribed to swap feed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var record models.SwapExecutionRecord
			if err := json.Unmarshal([]byte(msg.Payload), &record); err != nil {
				s.logger.WithError(err).Warn("skipping malformed swap message")
				continue
			}
			handler(&record)
		}
	}
}
