package models

import (
	"time"

	"github.com/google/uuid"
)

// QuoteLine is one treatment on a quote. Package and special-offer lines are
// locked and tagged with the package that injected them.
type QuoteLine struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID            uuid.UUID  `gorm:"column:quote_id;type:uuid;not null"`
	TreatmentCode      string     `gorm:"column:treatment_code;not null"`
	Name               string     `gorm:"column:name;not null"`
	Category           string     `gorm:"column:category;not null;default:''"`
	UnitPriceCents     int64      `gorm:"column:unit_price_cents;not null"`
	Quantity           int        `gorm:"column:quantity;not null"`
	IsPackageItem      bool       `gorm:"column:is_package_item;not null;default:false"`
	IsSpecialOfferItem bool       `gorm:"column:is_special_offer_item;not null;default:false"`
	IsLocked           bool       `gorm:"column:is_locked;not null;default:false"`
	SourcePackageID    *uuid.UUID `gorm:"column:source_package_id;type:uuid"`
	Position           int        `gorm:"column:position;not null;default:0"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// LineSubtotalCents returns unit price × quantity.
func (l QuoteLine) LineSubtotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}
