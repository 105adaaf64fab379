package tenant

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/troikatech/agent-console/pkg/env"
	"github.com/troikatech/agent-console/pkg/mongo"
)

// Backend is an opened store plus the connection behind it.
type Backend struct {
	Store Store
	// Mongo is nil for the memory driver.
	Mongo *mongo.Client
}

// Open connects the store named by cfg.StoreDriver.
func Open(ctx context.Context, cfg *env.Config, logger *zap.Logger) (*Backend, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "memory":
		logger.Warn("Using in-memory tenant store, data is lost on restart")
		return &Backend{Store: NewMemoryStore()}, nil

	case "mongo", "":
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.DBName, logger)
		if err != nil {
			return nil, err
		}
		store := NewMongoStore(client)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.WithoutCancel(ctx))
			return nil, err
		}
		return &Backend{Store: store, Mongo: client}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (b *Backend) Close(ctx context.Context) error {
	if b == nil || b.Mongo == nil {
		return nil
	}
	return b.Mongo.Disconnect(ctx)
}
