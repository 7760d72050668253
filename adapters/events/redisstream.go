package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
)

// NewRedisStreamPublisher publishes events onto redis streams, one stream per topic
func NewRedisStreamPublisher(client redis.UniversalClient, logger watermill.LoggerAdapter) (*WatermillPublisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: client,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}

	return NewWatermillPublisher(publisher), nil
}
