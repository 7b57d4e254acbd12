package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// Quote is a patient's priced treatment plan addressed to a single clinic.
// Revision increments on every persisted change and guards concurrent edits.
type Quote struct {
	ID                 uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PatientID          uuid.UUID         `gorm:"column:patient_id;type:uuid;not null"`
	ClinicID           uuid.UUID         `gorm:"column:clinic_id;type:uuid;not null"`
	Status             enums.QuoteStatus `gorm:"column:status;type:quote_status;not null;default:'draft'"`
	Currency           enums.Currency    `gorm:"column:currency;not null;default:'GBP'"`
	AppliedPromotionID *uuid.UUID        `gorm:"column:applied_promotion_id;type:uuid"`
	PromoCode          *string           `gorm:"column:promo_code"`
	SubtotalCents      int64             `gorm:"column:subtotal_cents;not null;default:0"`
	DiscountCents      int64             `gorm:"column:discount_cents;not null;default:0"`
	TotalCents         int64             `gorm:"column:total_cents;not null;default:0"`
	Revision           int64             `gorm:"column:revision;not null;default:0"`
	SubmittedAt        *time.Time        `gorm:"column:submitted_at"`
	Lines              []QuoteLine       `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// HasPromotion reports whether a promotion is currently attached.
func (q *Quote) HasPromotion() bool {
	return q != nil && q.AppliedPromotionID != nil && *q.AppliedPromotionID != uuid.Nil
}
