package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// CatalogPackage is a bundle of treatments offered as a package or special offer.
// A nil ClinicID means the bundle is offered by every clinic.
type CatalogPackage struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug          string               `gorm:"column:slug;not null;uniqueIndex"`
	Kind          enums.PackageKind    `gorm:"column:kind;type:package_kind;not null"`
	Title         string               `gorm:"column:title;not null"`
	Description   string               `gorm:"column:description;not null;default:''"`
	ClinicID      *uuid.UUID           `gorm:"column:clinic_id;type:uuid"`
	PromotionCode *string              `gorm:"column:promotion_code"`
	IsActive      bool                 `gorm:"column:is_active;not null"`
	Items         []CatalogPackageItem `gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// CatalogPackageItem is one treatment inside a package.
type CatalogPackageItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PackageID      uuid.UUID `gorm:"column:package_id;type:uuid;not null"`
	TreatmentCode  string    `gorm:"column:treatment_code;not null"`
	Name           string    `gorm:"column:name;not null"`
	Category       string    `gorm:"column:category;not null;default:''"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null;default:1"`
	Position       int       `gorm:"column:position;not null;default:0"`
}
