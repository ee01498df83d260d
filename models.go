package polymind

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultModelTTL is how long a fetched model listing stays fresh.
const DefaultModelTTL = 5 * time.Minute

// ============================================================================
// ModelCatalog
// ============================================================================

// ModelCatalog is a TTL cache over the backend's model listing. Each catalog
// owns its cache state; construct one per client rather than sharing a
// process-wide instance.
type ModelCatalog struct {
	client *Client
	ttl    time.Duration
	log    logrus.FieldLogger
	now    func() time.Time

	mu        sync.Mutex
	models    []ModelConfig
	fetchedAt time.Time
}

// ModelCatalogOptions tunes a ModelCatalog. Nil uses defaults.
type ModelCatalogOptions struct {
	// TTL is the freshness window of a fetched listing. Zero means
	// DefaultModelTTL.
	TTL    time.Duration
	Logger logrus.FieldLogger
	Now    func() time.Time
}

// NewModelCatalog creates a model catalog over the given client.
func NewModelCatalog(client *Client, opts *ModelCatalogOptions) *ModelCatalog {
	c := &ModelCatalog{
		client: client,
		ttl:    DefaultModelTTL,
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	if opts != nil {
		if opts.TTL > 0 {
			c.ttl = opts.TTL
		}
		if opts.Logger != nil {
			c.log = opts.Logger
		}
		if opts.Now != nil {
			c.now = opts.Now
		}
	}
	return c
}

// Models returns the model listing, from cache while fresh. When the cache is
// stale or empty the backend is consulted; if that fetch fails but a stale
// listing exists, the stale listing is returned rather than an error.
func (c *ModelCatalog) Models(ctx context.Context) ([]ModelConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return c.models, nil
	}

	models, err := c.client.GetModels(ctx)
	if err != nil {
		if c.models != nil {
			c.log.Warnf("model fetch failed, serving stale listing: %v", err)
			return c.models, nil
		}
		return nil, fmt.Errorf("fetch models: %w", err)
	}

	c.models = models
	c.fetchedAt = c.now()
	return c.models, nil
}

// Invalidate drops the cached listing so the next Models call refetches.
func (c *ModelCatalog) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
	c.fetchedAt = time.Time{}
}

// ModelInfo returns the cached entry for one model id without triggering a
// fetch, or nil when unknown.
func (c *ModelCatalog) ModelInfo(id string) *ModelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.models {
		if c.models[i].ID == id {
			m := c.models[i]
			return &m
		}
	}
	return nil
}

// ModelsWithAccess partitions the listing into models the user can use now
// and models gated behind an upgrade.
func (c *ModelCatalog) ModelsWithAccess(ctx context.Context) (accessible, locked []ModelConfig, err error) {
	models, err := c.Models(ctx)
	if err != nil {
		return nil, nil, err
	}
	for _, m := range models {
		if m.Accessible {
			accessible = append(accessible, m)
		} else {
			locked = append(locked, m)
		}
	}
	return accessible, locked, nil
}
