package payloads

import (
	"time"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/google/uuid"
)

// QuoteSubmittedEvent is emitted once a quote passes the totals gate.
type QuoteSubmittedEvent struct {
	QuoteID       uuid.UUID      `json:"quote_id"`
	PatientID     uuid.UUID      `json:"patient_id"`
	ClinicID      uuid.UUID      `json:"clinic_id"`
	Currency      enums.Currency `json:"currency"`
	SubtotalCents int64          `json:"subtotal_cents"`
	DiscountCents int64          `json:"discount_cents"`
	TotalCents    int64          `json:"total_cents"`
	PromotionID   *uuid.UUID     `json:"promotion_id,omitempty"`
	PromoCode     *string        `json:"promo_code,omitempty"`
	Revision      int64          `json:"revision"`
	SubmittedAt   time.Time      `json:"submitted_at"`
}

// QuoteStatusChangedEvent covers every lifecycle move after submission.
type QuoteStatusChangedEvent struct {
	QuoteID   uuid.UUID         `json:"quote_id"`
	PatientID uuid.UUID         `json:"patient_id"`
	ClinicID  uuid.UUID         `json:"clinic_id"`
	From      enums.QuoteStatus `json:"from"`
	To        enums.QuoteStatus `json:"to"`
	ChangedAt time.Time         `json:"changed_at"`
}

// PromotionAppliedEvent records a promotion landing on a quote.
type PromotionAppliedEvent struct {
	QuoteID             uuid.UUID  `json:"quote_id"`
	PromotionID         uuid.UUID  `json:"promotion_id"`
	Code                string     `json:"code"`
	SubtotalCents       int64      `json:"subtotal_cents"`
	DiscountCents       int64      `json:"discount_cents"`
	TotalCents          int64      `json:"total_cents"`
	PreviousPromotionID *uuid.UUID `json:"previous_promotion_id,omitempty"`
}

// PromotionRemovedEvent is emitted when a patient removes a promotion or the
// system revokes one that stopped resolving.
type PromotionRemovedEvent struct {
	QuoteID     uuid.UUID                  `json:"quote_id"`
	PromotionID uuid.UUID                  `json:"promotion_id"`
	Code        string                     `json:"code"`
	Action      enums.QuotePromotionAction `json:"action"`
	Reason      string                     `json:"reason,omitempty"`
	TotalCents  int64                      `json:"total_cents"`
}

// PromotionExpiredEvent is emitted by the expiry job per deactivated promotion.
type PromotionExpiredEvent struct {
	PromotionID   uuid.UUID `json:"promotion_id"`
	Code          string    `json:"code"`
	Slug          string    `json:"slug"`
	EndDate       time.Time `json:"end_date"`
	RevokedQuotes int       `json:"revoked_quotes"`
}
