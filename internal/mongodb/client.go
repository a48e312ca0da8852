// Package mongodb is the MongoDB store the original deployment runs on: the users
// collection backs the handshake lookup and the messages collection receives relayed
// chat messages.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMaxPoolSize     = 100
	serverSelectionTimeout = 10 * time.Second

	usersCollection    = "users"
	messagesCollection = "messages"
)

// Config represents the MongoDB configuration.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize int
}

// Client wraps a connected mongo client and its database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("mongo database is required")
	}
	if cfg.MaxPoolSize <= 0 {
		cfg.MaxPoolSize = defaultMaxPoolSize
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(uint64(cfg.MaxPoolSize)).
		SetServerSelectionTimeout(serverSelectionTimeout).
		SetAppName("tripunite-gateway")

	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{client: cli, db: cli.Database(cfg.Database)}, nil
}

// DB returns the configured database.
func (c *Client) DB() *mongo.Database {
	return c.db
}

// Ping checks the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
