package startup

import (
	"context"
	"time"

	redisstorage "github.com/smsgate/internal/storage/redis"
)

// ConnectRedisWithRetry connects to Redis, retrying with backoff until maxWait elapses.
func ConnectRedisWithRetry(ctx context.Context, redisURL string, maxWait time.Duration) (*redisstorage.Client, error) {
	var client *redisstorage.Client
	err := retry(ctx, maxWait, "redis", func(ctx context.Context) error {
		var err error
		client, err = redisstorage.New(ctx, redisURL)
		return err
	})
	return client, err
}
