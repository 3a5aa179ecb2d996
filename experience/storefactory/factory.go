// Package storefactory selects and constructs an experience.Store from
// config, wiring the in-memory default and the Mongo-backed alternative.
// Lives apart from package experience so experience itself stays free of
// the mongo-driver dependency for callers that only need the in-memory
// store.
package storefactory

import (
	"context"
	"fmt"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/agentruntime/core/config"
	"github.com/agentruntime/core/experience"
	"github.com/agentruntime/core/experience/mongostore"
)

// New selects and constructs the experience.Store named by cfg
// (SPEC_FULL.md §6 `experience.store.backend`).
func New(ctx context.Context, cfg config.Experience) (experience.Store, error) {
	switch cfg.StoreBackend {
	case "", "memory":
		return experience.NewMemoryStore(), nil
	case "mongo":
		client, err := mongodriver.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, fmt.Errorf("storefactory: connect to mongo: %w", err)
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, fmt.Errorf("storefactory: ping mongo: %w", err)
		}
		return mongostore.NewStore(mongostore.Options{
			Client:     client,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
	default:
		return nil, fmt.Errorf("storefactory: unknown store backend %q", cfg.StoreBackend)
	}
}
