package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/internal/repo"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// Repository reads catalog packages and their fixed items.
type Repository struct {
	repo.Base
}

// NewRepository constructs a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ListActive returns active bundles of the given kind, ordered by title.
func (r *Repository) ListActive(ctx context.Context, kind enums.PackageKind) ([]models.CatalogPackage, error) {
	var rows []models.CatalogPackage
	err := repo.PreloadOrdered(r.DB(ctx), "Items").
		Where("kind = ? AND is_active = ?", kind, true).
		Order("title ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindActiveByID loads an active bundle with its items.
func (r *Repository) FindActiveByID(ctx context.Context, id uuid.UUID) (*models.CatalogPackage, error) {
	var pkg models.CatalogPackage
	err := repo.PreloadOrdered(r.DB(ctx), "Items").
		Where("id = ? AND is_active = ?", id, true).
		First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}
