package redis

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("TEST_REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if password := os.Getenv("TEST_REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Host != "localhost" {
		t.Errorf("expected host localhost, got %s", cfg.Host)
	}
	if cfg.Port != 6379 {
		t.Errorf("expected port 6379, got %d", cfg.Port)
	}
	if cfg.PoolSize != 100 {
		t.Errorf("expected pool size 100, got %d", cfg.PoolSize)
	}
	if cfg.ConnectRetries != 3 {
		t.Errorf("expected 3 connect retries, got %d", cfg.ConnectRetries)
	}
}

func TestConfig_Addr(t *testing.T) {
	cfg := &Config{Host: "redis.internal", Port: 6380}
	if got := cfg.Addr(); got != "redis.internal:6380" {
		t.Errorf("expected redis.internal:6380, got %s", got)
	}
}

func TestNewClient_UnreachableBroker(t *testing.T) {
	cfg := &Config{
		Host:           "localhost",
		Port:           1, // nothing listens here
		DialTimeout:    100 * time.Millisecond,
		ConnectRetries: 1,
		RetryInterval:  10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	client, err := NewClient(ctx, cfg)
	if err == nil {
		client.Close()
		t.Fatal("expected connection error for unreachable broker")
	}
}

func TestNewClient_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestClient_HealthCheck_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestClient_RawClient_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, testConfig())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	defer client.Close()

	rdb := client.Client()
	key := "courtbook:test:raw"

	if err := rdb.Set(ctx, key, "value", time.Minute).Err(); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	defer rdb.Del(ctx, key)

	got, err := rdb.Get(ctx, key).Result()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "value" {
		t.Errorf("expected value, got %s", got)
	}
}
