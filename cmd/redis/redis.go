package redis

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/AkZcH/metro-flow-control-system/common/logger"
)

func RedisConnect(REDIS_DB_URL, REDIS_PASSWORD string) *redis.Client {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     REDIS_DB_URL,
		Username: "default",
		Password: REDIS_PASSWORD,
		DB:       0,
	})

	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		logger.Error("failed to connect to Redis: %v", err)
		return nil
	}

	logger.Info("Redis database started at %s", REDIS_DB_URL)

	return rdb
}
