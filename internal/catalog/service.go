package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	redisclient "github.com/angelmondragon/smilequote-backend/pkg/redis"
)

const (
	cacheScope      = "catalog"
	defaultCacheTTL = 10 * time.Minute
)

// Service exposes the package and special-offer catalog.
type Service interface {
	List(ctx context.Context, kind enums.PackageKind, clinicID *uuid.UUID) ([]models.CatalogPackage, error)
	Get(ctx context.Context, id uuid.UUID) (*models.CatalogPackage, error)
}

type catalogRepository interface {
	ListActive(ctx context.Context, kind enums.PackageKind) ([]models.CatalogPackage, error)
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.CatalogPackage, error)
}

type service struct {
	repo  catalogRepository
	cache redisclient.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewService builds the catalog service. cache may be nil.
func NewService(repo catalogRepository, cache redisclient.CacheStore, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &service{repo: repo, cache: cache, ttl: ttl, logg: logg}, nil
}

// List returns active bundles of kind. When clinicID is set, bundles pinned
// to other clinics are filtered out; unpinned bundles are always included.
func (s *service) List(ctx context.Context, kind enums.PackageKind, clinicID *uuid.UUID) ([]models.CatalogPackage, error) {
	if !kind.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown catalog kind")
	}
	rows, err := s.listCached(ctx, kind)
	if err != nil {
		return nil, err
	}
	if clinicID == nil {
		return rows, nil
	}
	filtered := make([]models.CatalogPackage, 0, len(rows))
	for _, row := range rows {
		if row.ClinicID == nil || *row.ClinicID == *clinicID {
			filtered = append(filtered, row)
		}
	}
	return filtered, nil
}

// Get returns an active bundle; unknown or inactive ids are NOT_FOUND with
// reason package_not_found.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.CatalogPackage, error) {
	pkg, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "package not found").
				WithDetails(map[string]any{"reason": enums.WarningPackageNotFound})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load package")
	}
	return pkg, nil
}

func (s *service) listCached(ctx context.Context, kind enums.PackageKind) ([]models.CatalogPackage, error) {
	var key string
	if s.cache != nil {
		key = s.cache.CacheKey(cacheScope, kind.String())
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var rows []models.CatalogPackage
			if jsonErr := json.Unmarshal([]byte(raw), &rows); jsonErr == nil {
				return rows, nil
			}
		} else if !redisclient.IsMiss(err) {
			s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "catalog cache read failed")
		}
	}

	rows, err := s.repo.ListActive(ctx, kind)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list catalog")
	}

	if s.cache != nil {
		if payload, jsonErr := json.Marshal(rows); jsonErr == nil {
			if setErr := s.cache.Set(ctx, key, payload, s.ttl); setErr != nil {
				s.logg.Warn(s.logg.WithField(ctx, "cache_key", key), "catalog cache write failed")
			}
		}
	}
	return rows, nil
}
