package config

// Redis backs the admission queue, seat locks and the rate limiter, so the
// engine cannot run without it. The connection parameters are loaded from
// environment variables and the constructor fails instead of degrading.

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisAddr returns the configured redis address. REDIS_HOST/REDIS_PORT
// take precedence over REDIS_ADDR; localhost:6379 is the fallback.
func RedisAddr() string {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	addr := os.Getenv("REDIS_ADDR")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	if addr == "" {
		addr = "localhost:6379"
	}
	return addr
}

// RedisPassword returns the configured redis password, if any.
func RedisPassword() string { return os.Getenv("REDIS_PASSWORD") }

// NewRedisClient instantiates a redis client from the environment.
// Supported variables:
//
//	REDIS_HOST and REDIS_PORT - hostname and port of the redis server
//	REDIS_ADDR - host:port shorthand
//	REDIS_PASSWORD - optional password
//	REDIS_DB - database number (default 0)
//	REDIS_TLS - enable TLS when "true" or "1"
func NewRedisClient() (*redis.Client, error) {
	dbNum := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if n, err := strconv.Atoi(dbStr); err == nil {
			dbNum = n
		}
	}
	var tlsConf *tls.Config
	if tlsEnv := os.Getenv("REDIS_TLS"); strings.EqualFold(tlsEnv, "true") || tlsEnv == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      RedisAddr(),
		Password:  RedisPassword(),
		DB:        dbNum,
		TLSConfig: tlsConf,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
