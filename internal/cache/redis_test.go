package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/constants"
	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use different DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func TestNewRedisPublisher_NilClient(t *testing.T) {
	_, err := NewRedisPublisher(nil, 0, nil)
	assert.Error(t, err)
}

func TestRedisPublisher_PublishAndLatest(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	pub, err := NewRedisPublisher(client, time.Minute, nil)
	require.NoError(t, err)

	_, err = pub.Latest(ctx)
	assert.ErrorIs(t, err, redis.Nil)

	sub := client.Subscribe(ctx, constants.PubSubChannelRefreshed)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	snap := &models.Snapshot{
		Records: []models.TokenRecord{
			{Address: "0xaa", Symbol: "AA", CurrentPrice: models.Float64Ptr(1.5)},
		},
		BuiltAt:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Success:      true,
		SourceCounts: models.SourceCounts{models.AttributionBoth: 1},
		RefreshID:    "r-1",
	}
	require.NoError(t, pub.Publish(ctx, snap))

	got, err := pub.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r-1", got.RefreshID)
	require.Len(t, got.Records, 1)
	assert.Equal(t, 1.5, *got.Records[0].CurrentPrice)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var notice RefreshNotice
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &notice))
	assert.Equal(t, "r-1", notice.RefreshID)
	assert.Equal(t, 1, notice.Records)

	ttl, err := client.TTL(ctx, constants.RedisKeySnapshot).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

func TestRefreshSubscriber(t *testing.T) {
	client := setupTestRedis(t)

	_, err := NewRefreshSubscriber(nil, nil)
	assert.Error(t, err)

	sub, err := NewRefreshSubscriber(client, nil)
	require.NoError(t, err)
	pub, err := NewRedisPublisher(client, time.Minute, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan RefreshNotice, 1)
	done := make(chan error, 1)
	go func() {
		done <- sub.Subscribe(ctx, func(n RefreshNotice) {
			select {
			case got <- n:
			default:
			}
		})
	}()

	// publish until the subscription is live
	require.Eventually(t, func() bool {
		_ = client.Publish(ctx, constants.PubSubChannelRefreshed, "not json").Err()
		if err := pub.Publish(ctx, &models.Snapshot{RefreshID: "r-2", Success: true}); err != nil {
			return false
		}
		select {
		case n := <-got:
			return n.RefreshID == "r-2"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	snap, err := ReadSnapshot(context.Background(), client)
	require.NoError(t, err)
	assert.Equal(t, "r-2", snap.RefreshID)
}
