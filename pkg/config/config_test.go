package config

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "MONGODB_URI", "MONGODB_DATABASE", "CORS_ALLOWED_ORIGIN", "APP_ENV", "REDIS_URL", "ADMIN_JWT_SECRET"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, "5001", cfg.Server.Port)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Database.URI)
	assert.Equal(t, "chatapp", cfg.Database.Name)
	assert.Equal(t, "transcripts", cfg.Database.Transcripts)
	assert.Equal(t, "feedback", cfg.Database.Feedback)
	assert.Equal(t, "http://localhost:3000", cfg.Security.AllowedOrigin)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
	assert.Empty(t, cfg.Cache.RedisURL)
	assert.Empty(t, cfg.JWT.Secret)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("APP_ENV", "production")
	t.Setenv("RATE_LIMIT", "2.5")
	t.Setenv("CACHE_TTL", "1m")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2 ,")

	cfg := FromEnv()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Security.TrustedProxies)
}

func TestFromEnvDevelopmentIsExplicit(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	assert.True(t, FromEnv().IsDevelopment())

	t.Setenv("APP_ENV", "staging")
	cfg := FromEnv()
	assert.False(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "lots")
	t.Setenv("CACHE_ENABLED", "maybe")

	cfg := FromEnv()

	assert.Equal(t, 10, cfg.Security.RateLimitBurst)
	assert.True(t, cfg.Cache.Enabled)
}

func TestMongoProviderClosed(t *testing.T) {
	p := NewMongoProvider(FromEnv(), "mongodb://localhost:1", nil)
	require.NoError(t, p.Close(context.Background()))

	_, err := p.Database(context.Background())
	assert.ErrorIs(t, err, ErrProviderClosed)
	assert.Error(t, p.Ping(context.Background()))
}

func TestMongoProviderConnectsLazily(t *testing.T) {
	cfg := FromEnv()
	cfg.Database.ConnectTimeout = 50 * time.Millisecond
	cfg.Database.MaxRetryTime = 100 * time.Millisecond
	p := NewMongoProvider(cfg, "mongodb://127.0.0.1:1", nil)
	defer p.Close(context.Background())

	assert.Error(t, p.Ping(context.Background()), "nothing is opened before Database")

	_, err := p.Database(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to MongoDB")
	assert.Nil(t, p.db)
}

// connected returns a provider holding an unconnected client handle, so
// hooks can run without a server
func connected(t *testing.T) *MongoProvider {
	t.Helper()
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI("mongodb://127.0.0.1:1"))
	require.NoError(t, err)

	p := NewMongoProvider(FromEnv(), "", nil)
	p.client = client
	p.db = client.Database("chatapp")
	t.Cleanup(func() { _ = p.Close(context.Background()) })
	return p
}

func TestMongoProviderHooksRunOnceInOrder(t *testing.T) {
	p := connected(t)
	var calls []string
	p.OnConnect(func(context.Context, *mongo.Database) error {
		calls = append(calls, "indexes")
		return errors.New("E11000 duplicate key error building index")
	})
	p.OnConnect(func(context.Context, *mongo.Database) error {
		calls = append(calls, "second")
		return nil
	})

	for i := 0; i < 3; i++ {
		db, err := p.Database(context.Background())
		require.NoError(t, err, "a failed hook must not block the database")
		assert.Equal(t, "chatapp", db.Name())
	}
	assert.Equal(t, []string{"indexes", "second"}, calls)
}

func TestMongoProviderRetriesHookAfterCancel(t *testing.T) {
	p := connected(t)
	runs := 0
	p.OnConnect(func(ctx context.Context, _ *mongo.Database) error {
		runs++
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Database(ctx)
	require.NoError(t, err)

	_, err = p.Database(context.Background())
	require.NoError(t, err)
	_, err = p.Database(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
}
