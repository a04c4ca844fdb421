package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/singleflight"
)

// ErrConnection is returned when the document store cannot be reached.
var ErrConnection = errors.New("document store unavailable")

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// ConnectFunc establishes a client. ConnectMongo is the production implementation.
type ConnectFunc func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error)

// Gateway owns the single pooled Mongo client of the process. The client is
// established on first use and reused afterwards; concurrent first callers
// wait on one connect instead of dialing in parallel. A failed connect is not
// remembered, so a later call attempts it again.
type Gateway struct {
	uri      string
	database string
	timeout  time.Duration
	connect  ConnectFunc

	mu     sync.RWMutex
	client *mongo.Client
	group  singleflight.Group
}

// NewGateway returns a gateway for the given connection string and database name.
func NewGateway(uri, database string, timeout time.Duration) *Gateway {
	return NewGatewayWithConnect(uri, database, timeout, ConnectMongo)
}

// NewGatewayWithConnect is NewGateway with a custom connect function.
func NewGatewayWithConnect(uri, database string, timeout time.Duration, connect ConnectFunc) *Gateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if connect == nil {
		connect = ConnectMongo
	}
	return &Gateway{uri: uri, database: database, timeout: timeout, connect: connect}
}

// Client returns the shared client, connecting on first use.
func (g *Gateway) Client(ctx context.Context) (*mongo.Client, error) {
	g.mu.RLock()
	c := g.client
	g.mu.RUnlock()
	if c != nil {
		return c, nil
	}

	// the shared dial outlives any single caller; ConnectMongo bounds it by g.timeout
	dialCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan("connect", func() (interface{}, error) {
		g.mu.RLock()
		if g.client != nil {
			defer g.mu.RUnlock()
			return g.client, nil
		}
		g.mu.RUnlock()

		client, err := g.connect(dialCtx, g.uri, g.timeout)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.client = client
		g.mu.Unlock()
		return client, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConnection, ctx.Err())
	}
	if res.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, res.Err)
	}
	return res.Val.(*mongo.Client), nil
}

// Database returns a handle to the configured database.
func (g *Gateway) Database(ctx context.Context) (*mongo.Database, error) {
	c, err := g.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Database(g.database), nil
}

// Connected reports whether a client has been established.
func (g *Gateway) Connected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client != nil
}

// Ping checks the store is reachable, connecting first if needed.
func (g *Gateway) Ping(ctx context.Context) error {
	c, err := g.Client(ctx)
	if err != nil {
		return err
	}
	if err := c.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close disconnects the client if one was established.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	c := g.client
	g.client = nil
	g.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Disconnect(ctx)
}
