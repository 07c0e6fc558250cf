// Package drafts keeps in-progress invoices in Redis so an editing session
// survives restarts and is visible to every API instance.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/cache"
)

// ErrNotFound is returned for unknown or expired drafts.
var ErrNotFound = errors.New("drafts: not found")

const submitLockTTL = time.Minute

// Store persists drafts as JSON with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore constructs a store. A non-positive ttl keeps drafts for 12h.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

func draftKey(id string) string {
	return "invoice:draft:" + id
}

func lockKey(id string) string {
	return "invoice:draft:" + id + ":submit"
}

// Save writes the draft and refreshes its TTL.
func (s *Store) Save(ctx context.Context, d invoice.Draft) error {
	if d.ID == "" {
		return errors.New("drafts: draft id required")
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("drafts: encode: %w", err)
	}
	if err := s.client.Set(ctx, draftKey(d.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("drafts: save %s: %w", d.ID, err)
	}
	return nil
}

// Get loads a draft and slides its expiry.
func (s *Store) Get(ctx context.Context, id string) (invoice.Draft, error) {
	raw, err := s.client.GetEx(ctx, draftKey(id), s.ttl).Bytes()
	if errors.Is(err, redis.Nil) {
		return invoice.Draft{}, ErrNotFound
	}
	if err != nil {
		return invoice.Draft{}, fmt.Errorf("drafts: get %s: %w", id, err)
	}
	var d invoice.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return invoice.Draft{}, fmt.Errorf("drafts: decode %s: %w", id, err)
	}
	return d, nil
}

// Delete discards a draft.
func (s *Store) Delete(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, draftKey(id)).Result()
	if err != nil {
		return fmt.Errorf("drafts: delete %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LockSubmit takes the cross-instance submit lock for a draft. A held lock
// maps to invoice.ErrSubmitInFlight.
func (s *Store) LockSubmit(ctx context.Context, id string) (*cache.Lock, error) {
	lock, err := cache.Acquire(ctx, s.client, lockKey(id), uuid.NewString(), submitLockTTL)
	if errors.Is(err, cache.ErrLocked) {
		return nil, invoice.ErrSubmitInFlight
	}
	return lock, err
}
