package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// QuotePromotion is the append-only audit trail of promotion changes on a quote.
type QuotePromotion struct {
	ID            uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuoteID       uuid.UUID                  `gorm:"column:quote_id;type:uuid;not null"`
	PromotionID   uuid.UUID                  `gorm:"column:promotion_id;type:uuid;not null"`
	Code          string                     `gorm:"column:code;not null"`
	Action        enums.QuotePromotionAction `gorm:"column:action;type:quote_promotion_action;not null"`
	SubtotalCents int64                      `gorm:"column:subtotal_cents;not null"`
	DiscountCents int64                      `gorm:"column:discount_cents;not null"`
	ActorUserID   *uuid.UUID                 `gorm:"column:actor_user_id;type:uuid"`
	CreatedAt     time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
