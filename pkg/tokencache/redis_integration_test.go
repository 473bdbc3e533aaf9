//go:build integration

package tokencache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisC.Terminate(ctx)

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	defer client.Close()

	store := NewRedisStore(client)
	key := Key{Source: "matching-materials", ClientID: "client", Scopes: []string{"User.Read"}}

	entry := &Entry{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Expires:      time.Now().Add(-time.Minute),
		CachedAt:     time.Now(),
	}
	if err := store.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RefreshToken != "refresh" {
		t.Errorf("RefreshToken = %q, want refresh", got.RefreshToken)
	}

	ttl, err := client.TTL(ctx, key.String()).Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl < RefreshTokenLifetime-time.Hour {
		t.Errorf("redis TTL = %v, want ~%v", ttl, RefreshTokenLifetime)
	}
}
