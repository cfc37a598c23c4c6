package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RefreshSubscriber listens for refresh notices published by RedisPublisher.
type RefreshSubscriber struct {
	client  *redis.Client
	channel string
	logger  *logrus.Logger
}

func NewRefreshSubscriber(client *redis.Client, logger *logrus.Logger) (*RefreshSubscriber, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &RefreshSubscriber{
		client:  client,
		channel: constants.PubSubChannelRefreshed,
		logger:  logger,
	}, nil
}

// Subscribe calls handler for every notice until ctx is done. Undecodable
// messages are logged and skipped.
func (s *RefreshSubscriber) Subscribe(ctx context.Context, handler func(RefreshNotice)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.WithField("channel", s.channel).Info("subscribed to refresh notices")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n RefreshNotice
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				s.logger.WithError(err).Warn("failed to decode refresh notice")
				continue
			}
			handler(n)
		}
	}
}
