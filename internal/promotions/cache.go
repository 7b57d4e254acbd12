package promotions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	redisclient "github.com/angelmondragon/smilequote-backend/pkg/redis"
)

const (
	cacheScope       = "promotion"
	defaultCacheTTL  = 5 * time.Minute
	identifierPrefix = "ident"
	idPrefix         = "id"
)

// Store is the read surface the resolver and quote flows depend on.
type Store interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.Promotion, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
}

// CachedStore is a read-through Redis cache in front of the repository.
// Cache failures degrade to the database.
type CachedStore struct {
	repo  Store
	cache redisclient.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedStore wraps repo with a Redis cache. A nil cache disables caching.
func NewCachedStore(repo Store, cache redisclient.CacheStore, ttl time.Duration, logg *logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{repo: repo, cache: cache, ttl: ttl, logg: logg}
}

func (s *CachedStore) FindByIdentifier(ctx context.Context, identifier string) (*models.Promotion, error) {
	load := func() (*models.Promotion, error) {
		return s.repo.FindByIdentifier(ctx, identifier)
	}
	if s.cache == nil {
		return load()
	}
	return s.readThrough(ctx, s.identifierKey(identifier), load)
}

func (s *CachedStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	load := func() (*models.Promotion, error) {
		return s.repo.FindByID(ctx, id)
	}
	if s.cache == nil {
		return load()
	}
	return s.readThrough(ctx, s.idKey(id), load)
}

// Invalidate drops every cached entry for the promotion.
func (s *CachedStore) Invalidate(ctx context.Context, promo *models.Promotion) {
	if s.cache == nil || promo == nil {
		return
	}
	keys := []string{
		s.idKey(promo.ID),
		s.identifierKey(promo.Code),
		s.identifierKey(promo.Slug),
	}
	if err := s.cache.Del(ctx, keys...); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "promotion_id", promo.ID.String()), "promotion cache invalidation failed")
	}
}

func (s *CachedStore) readThrough(ctx context.Context, key string, load func() (*models.Promotion, error)) (*models.Promotion, error) {
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var promo models.Promotion
		if jsonErr := json.Unmarshal([]byte(raw), &promo); jsonErr == nil {
			return &promo, nil
		}
	} else if !redisclient.IsMiss(err) && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "promotion cache read failed")
	}

	promo, err := load()
	if err != nil {
		return nil, err
	}
	if payload, jsonErr := json.Marshal(promo); jsonErr == nil {
		if setErr := s.cache.Set(ctx, key, payload, s.ttl); setErr != nil && s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "promotion cache write failed")
		}
	}
	return promo, nil
}

func (s *CachedStore) identifierKey(identifier string) string {
	return s.cache.CacheKey(cacheScope, identifierPrefix, strings.ToLower(strings.TrimSpace(identifier)))
}

func (s *CachedStore) idKey(id uuid.UUID) string {
	return s.cache.CacheKey(cacheScope, idPrefix, id.String())
}

// IsNotFound reports whether err is a missing-row error from the store.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
