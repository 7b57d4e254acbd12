package quotes

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// Totals is the money triple a client displays and the server re-derives.
type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	TotalCents    int64 `json:"total_cents"`
}

// TotalsOf returns the totals stored on quote.
func TotalsOf(quote *models.Quote) Totals {
	return Totals{
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
		TotalCents:    quote.TotalCents,
	}
}

// LineInput describes a treatment the patient adds by hand.
type LineInput struct {
	TreatmentCode  string
	Name           string
	Category       string
	UnitPriceCents int64
	Quantity       int
}

// LinePatch changes an unlocked line. Nil fields are left as they are.
type LinePatch struct {
	Quantity       *int
	UnitPriceCents *int64
}

// CreateInput opens a draft quote. PatientID is only honoured for admins.
type CreateInput struct {
	ClinicID   uuid.UUID
	PatientID  *uuid.UUID
	Currency   enums.Currency
	Lines      []LineInput
	PackageIDs []uuid.UUID
	PromoCode  string
}

// Result is returned by every quote mutation.
type Result struct {
	Quote     *models.Quote
	Promotion *models.Promotion
	Warnings  []string
}

func (r *Result) warn(code string) {
	for _, existing := range r.Warnings {
		if existing == code {
			return
		}
	}
	r.Warnings = append(r.Warnings, code)
}

// GuardResult is the outcome of re-deriving a quote's totals from trusted data.
type GuardResult struct {
	Valid     bool
	Claimed   Totals
	Server    Totals
	Corrected *models.Quote
	// RevokedPromotionID is set when the applied promotion no longer resolves.
	RevokedPromotionID *uuid.UUID
}

// TotalsMismatch is the payload of a QUOTE_TOTALS_MISMATCH error.
type TotalsMismatch struct {
	Claimed Totals
	Server  Totals
	Quote   *models.Quote
}
