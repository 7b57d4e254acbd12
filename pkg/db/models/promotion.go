package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/smilequote-backend/pkg/db/types"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// Promotion is an admin-managed discount addressable by code or slug.
// Empty ApplicableTreatmentCodes means every treatment qualifies; empty
// EligibleClinicIDs means every clinic qualifies.
type Promotion struct {
	ID                       uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug                     string             `gorm:"column:slug;not null;uniqueIndex"`
	Code                     string             `gorm:"column:code;not null;uniqueIndex"`
	Title                    string             `gorm:"column:title;not null"`
	Description              string             `gorm:"column:description;not null;default:''"`
	PromoType                enums.PromoType    `gorm:"column:promo_type;type:promo_type;not null"`
	DiscountType             enums.DiscountType `gorm:"column:discount_type;type:discount_type;not null"`
	DiscountValue            decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	ApplicableTreatmentCodes pq.StringArray     `gorm:"column:applicable_treatment_codes;type:text[];not null;default:'{}'"`
	EligibleClinicIDs        dbtypes.UUIDArray  `gorm:"column:eligible_clinic_ids;type:uuid[];not null;default:'{}'"`
	StartDate                time.Time          `gorm:"column:start_date;not null"`
	EndDate                  time.Time          `gorm:"column:end_date;not null"`
	IsActive                 bool               `gorm:"column:is_active;not null"`
	CreatedAt                time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
