package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dpchat/backend/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ErrProviderClosed is returned by Database after Close
var ErrProviderClosed = errors.New("mongo provider closed")

// DatabaseProvider hands out the application database
type DatabaseProvider interface {
	Database(ctx context.Context) (*mongo.Database, error)
}

// ConnectHook runs once right after the first successful connect. A failing
// hook is logged and not retried, except when ctx ended before it finished.
type ConnectHook func(ctx context.Context, db *mongo.Database) error

// MongoProvider owns the process-wide MongoDB client. The connection is
// opened on first use and released by Close.
type MongoProvider struct {
	uri  string
	name string
	cfg  *Config
	log  *logger.Logger

	mu     sync.Mutex
	client *mongo.Client
	db     *mongo.Database
	hooks  []ConnectHook
	closed bool
}

// NewMongoProvider creates a provider; no connection is made until Database is called
func NewMongoProvider(cfg *Config, uri string, log *logger.Logger) *MongoProvider {
	if uri == "" {
		uri = cfg.Database.URI
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &MongoProvider{
		uri:  uri,
		name: cfg.Database.Name,
		cfg:  cfg,
		log:  log,
	}
}

// OnConnect registers a hook. Hooks registered after the connection exists
// run on the next call to Database.
func (p *MongoProvider) OnConnect(hook ConnectHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hook)
}

// Database returns the application database, connecting first if needed
func (p *MongoProvider) Database(ctx context.Context) (*mongo.Database, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProviderClosed
	}

	if p.db == nil {
		client, err := p.connect(ctx)
		if err != nil {
			return nil, err
		}
		p.client = client
		p.db = client.Database(p.name)
		p.log.Info("Connected to MongoDB", "database", p.name)
	}

	p.runHooks(ctx)
	return p.db, nil
}

// runHooks must be called with the mutex held
func (p *MongoProvider) runHooks(ctx context.Context) {
	pending := p.hooks
	p.hooks = nil
	for _, hook := range pending {
		err := hook(ctx, p.db)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			p.hooks = append(p.hooks, hook)
		default:
			p.log.LogError(err, "MongoDB connect hook failed")
		}
	}
}

func (p *MongoProvider) connect(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(p.uri).
		SetConnectTimeout(p.cfg.Database.ConnectTimeout).
		SetServerSelectionTimeout(p.cfg.Database.ConnectTimeout).
		SetMaxPoolSize(p.cfg.Database.MaxPoolSize)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = p.cfg.Database.MaxRetryTime

	var client *mongo.Client
	attempt := 0
	operation := func() error {
		attempt++
		c, err := mongo.Connect(ctx, opts)
		if err != nil {
			return err
		}
		pingCtx, cancel := context.WithTimeout(ctx, p.cfg.Database.ConnectTimeout)
		defer cancel()
		if err := c.Ping(pingCtx, readpref.Primary()); err != nil {
			_ = c.Disconnect(context.Background())
			return err
		}
		client = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		p.log.Warn("Failed to connect to MongoDB, retrying",
			"attempt", attempt,
			"retry_in", wait.String(),
			"error", err.Error(),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", attempt, err)
	}
	return client, nil
}

// Ping checks that the database answers. It does not open a connection.
func (p *MongoProvider) Ping(ctx context.Context) error {
	p.mu.Lock()
	db := p.db
	p.mu.Unlock()

	if db == nil {
		return errors.New("mongo client not connected")
	}
	return db.RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err()
}

// Close disconnects the client; later calls to Database fail
func (p *MongoProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Disconnect(ctx)
	p.client = nil
	p.db = nil
	if err != nil {
		return fmt.Errorf("failed to disconnect from MongoDB: %w", err)
	}
	p.log.Info("Disconnected from MongoDB")
	return nil
}

// StaticProvider wraps an existing database handle
type StaticProvider struct {
	DB *mongo.Database
}

// Database returns the wrapped handle
func (s StaticProvider) Database(context.Context) (*mongo.Database, error) {
	return s.DB, nil
}
