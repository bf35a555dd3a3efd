// Package reflector caches reflected database schemas per connection URL.
package reflector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/tordrt/schemamodeler/internal/db"
	"github.com/tordrt/schemamodeler/internal/logger"
	"github.com/tordrt/schemamodeler/internal/schema"
)

// DefaultTimeout bounds one shared reflection, connect included
const DefaultTimeout = 2 * time.Minute

// OpenFunc connects to a database URL
type OpenFunc func(ctx context.Context, databaseURL string) (db.Extractor, error)

// Reflector returns the physical schema behind a database URL. The first
// call per URL reflects the database; later calls are served from the store
// until the entry is invalidated or expires, even if the database changed.
type Reflector struct {
	store Store
	ttl   time.Duration
	open  OpenFunc
	log   logrus.FieldLogger
	group singleflight.Group

	// Timeout bounds a reflection once it no longer follows the caller's
	// context. Zero or less means unbounded.
	Timeout time.Duration
}

// New creates a Reflector. A nil store means a fresh MemoryStore.
func New(store Store, ttl time.Duration, log logrus.FieldLogger) *Reflector {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Reflector{
		store:   store,
		ttl:     ttl,
		open:    db.Open,
		log:     logger.OrDiscard(log),
		Timeout: DefaultTimeout,
	}
}

// Reflect returns every table of the database with its columns, keys and
// indexes. Concurrent first calls for one URL share a single reflection.
// Failures are returned unchanged and never cached.
func (r *Reflector) Reflect(ctx context.Context, databaseURL string) (*schema.Schema, error) {
	key := cacheKey(databaseURL)
	log := r.log.WithField("url", db.RedactURL(databaseURL))

	s, ok, err := r.store.Get(ctx, key)
	if err != nil {
		log.WithError(err).Warn("schema cache lookup failed")
	} else if ok {
		log.Debug("schema served from cache")
		return s, nil
	}

	// the extraction outlives a cancelled caller so other waiters still get a result
	ch := r.group.DoChan(key, func() (any, error) {
		rctx, cancel := r.detach(ctx)
		defer cancel()

		// a reflection that finished after our lookup already filled the store
		if s, ok, err := r.store.Get(rctx, key); err == nil && ok {
			return s, nil
		}
		return r.reflect(rctx, key, databaseURL, log)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*schema.Schema), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// detach drops the caller's cancellation and deadline, bounded by Timeout
func (r *Reflector) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithoutCancel(ctx)
	if r.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.Timeout)
}

func (r *Reflector) reflect(ctx context.Context, key, databaseURL string, log logrus.FieldLogger) (*schema.Schema, error) {
	log.Debug("reflecting database schema")

	extractor, err := r.open(ctx, databaseURL)
	if err != nil {
		log.WithError(err).Error("failed to connect for schema reflection")
		return nil, err
	}
	defer func() {
		if err := extractor.Close(); err != nil {
			log.WithError(err).Warn("failed to close database connection")
		}
	}()

	s, err := extractor.ExtractSchema(ctx, nil)
	if err != nil {
		log.WithError(err).WithField("dialect", extractor.Dialect()).Error("schema reflection failed")
		return nil, fmt.Errorf("failed to extract schema: %w", err)
	}

	if err := r.store.Set(ctx, key, s, r.ttl); err != nil {
		log.WithError(err).Warn("failed to cache reflected schema")
	}
	log.WithFields(logrus.Fields{
		"dialect": extractor.Dialect(),
		"tables":  len(s.Tables),
	}).Info("schema reflected")
	return s, nil
}

// Invalidate drops the cached schema for databaseURL
func (r *Reflector) Invalidate(ctx context.Context, databaseURL string) error {
	key := cacheKey(databaseURL)
	r.group.Forget(key)
	return r.store.Delete(ctx, key)
}

// Purge drops every cached schema
func (r *Reflector) Purge(ctx context.Context) error {
	return r.store.Purge(ctx)
}

// cacheKey hashes the URL so credentials never appear in store keys
func cacheKey(databaseURL string) string {
	sum := sha256.Sum256([]byte(databaseURL))
	return hex.EncodeToString(sum[:])
}
