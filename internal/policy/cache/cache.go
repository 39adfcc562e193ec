// Package cache provides a Redis read-through cache for the active-policy
// listing, the hottest read path in the service.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"covera/internal/policy/models"
)

const activeListingKey = "covera:policies:active"

// DefaultTTL bounds staleness if an invalidation is ever missed.
const DefaultTTL = 30 * time.Second

// Listing caches the active-policy list. A nil *Listing is a valid no-op
// cache so callers need no nil checks.
type Listing struct {
	client *redis.Client
	ttl    time.Duration
}

func NewListing(client *redis.Client, ttl time.Duration) *Listing {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Listing{client: client, ttl: ttl}
}

// Get returns the cached listing and whether it was present. Any Redis or
// decode failure is treated as a miss; the store remains the source of truth.
func (l *Listing) Get(ctx context.Context) ([]*models.Policy, bool) {
	if l == nil {
		return nil, false
	}
	raw, err := l.client.Get(ctx, activeListingKey).Bytes()
	if err != nil {
		return nil, false
	}
	var policies []*models.Policy
	if err := json.Unmarshal(raw, &policies); err != nil {
		return nil, false
	}
	return policies, true
}

// Set stores the listing with the configured TTL. Failures are ignored.
func (l *Listing) Set(ctx context.Context, policies []*models.Policy) {
	if l == nil {
		return
	}
	raw, err := json.Marshal(policies)
	if err != nil {
		return
	}
	_ = l.client.Set(ctx, activeListingKey, raw, l.ttl).Err()
}

// Invalidate drops the cached listing. Call after any policy mutation.
func (l *Listing) Invalidate(ctx context.Context) error {
	if l == nil {
		return nil
	}
	err := l.client.Del(ctx, activeListingKey).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
