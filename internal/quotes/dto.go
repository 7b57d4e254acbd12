package quotes

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

type LineDTO struct {
	ID                 uuid.UUID  `json:"id"`
	TreatmentCode      string     `json:"treatment_code"`
	Name               string     `json:"name"`
	Category           string     `json:"category"`
	UnitPriceCents     int64      `json:"unit_price_cents"`
	Quantity           int        `json:"quantity"`
	LineTotalCents     int64      `json:"line_total_cents"`
	IsPackageItem      bool       `json:"is_package_item"`
	IsSpecialOfferItem bool       `json:"is_special_offer_item"`
	IsLocked           bool       `json:"is_locked"`
	SourcePackageID    *uuid.UUID `json:"source_package_id,omitempty"`
}

// QuoteDTO is the wire shape of a quote. Revision is echoed back by clients as expected_revision.
type QuoteDTO struct {
	ID                 uuid.UUID         `json:"id"`
	PatientID          uuid.UUID         `json:"patient_id"`
	ClinicID           uuid.UUID         `json:"clinic_id"`
	Status             enums.QuoteStatus `json:"status"`
	Currency           enums.Currency    `json:"currency"`
	AppliedPromotionID *uuid.UUID        `json:"applied_promotion_id"`
	PromoCode          *string           `json:"promo_code"`
	SubtotalCents      int64             `json:"subtotal_cents"`
	DiscountCents      int64             `json:"discount_cents"`
	TotalCents         int64             `json:"total_cents"`
	Revision           int64             `json:"revision"`
	Lines              []LineDTO         `json:"lines"`
	SubmittedAt        *time.Time        `json:"submitted_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func FromModel(q *models.Quote) *QuoteDTO {
	if q == nil {
		return nil
	}
	dto := &QuoteDTO{
		ID:                 q.ID,
		PatientID:          q.PatientID,
		ClinicID:           q.ClinicID,
		Status:             q.Status,
		Currency:           q.Currency,
		AppliedPromotionID: q.AppliedPromotionID,
		PromoCode:          q.PromoCode,
		SubtotalCents:      q.SubtotalCents,
		DiscountCents:      q.DiscountCents,
		TotalCents:         q.TotalCents,
		Revision:           q.Revision,
		Lines:              make([]LineDTO, 0, len(q.Lines)),
		SubmittedAt:        q.SubmittedAt,
		CreatedAt:          q.CreatedAt,
		UpdatedAt:          q.UpdatedAt,
	}
	for _, line := range q.Lines {
		dto.Lines = append(dto.Lines, LineDTO{
			ID:                 line.ID,
			TreatmentCode:      line.TreatmentCode,
			Name:               line.Name,
			Category:           line.Category,
			UnitPriceCents:     line.UnitPriceCents,
			Quantity:           line.Quantity,
			LineTotalCents:     line.LineSubtotalCents(),
			IsPackageItem:      line.IsPackageItem,
			IsSpecialOfferItem: line.IsSpecialOfferItem,
			IsLocked:           line.IsLocked,
			SourcePackageID:    line.SourcePackageID,
		})
	}
	return dto
}

func FromModels(list []models.Quote) []*QuoteDTO {
	out := make([]*QuoteDTO, 0, len(list))
	for i := range list {
		out = append(out, FromModel(&list[i]))
	}
	return out
}

// ResultDTO carries a mutated quote plus any non-fatal warnings.
type ResultDTO struct {
	Success  bool                     `json:"success"`
	Quote    *QuoteDTO                `json:"quote"`
	Promo    *promotions.PromotionDTO `json:"promo,omitempty"`
	Warnings []string                 `json:"warnings"`
}

func (r *Result) DTO() ResultDTO {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ResultDTO{
		Success:  true,
		Quote:    FromModel(r.Quote),
		Promo:    promotions.FromModel(r.Promotion),
		Warnings: warnings,
	}
}

// GuardDTO is the read-only revalidation answer.
type GuardDTO struct {
	Valid              bool       `json:"valid"`
	Claimed            Totals     `json:"claimed"`
	Server             Totals     `json:"server"`
	Corrected          *QuoteDTO  `json:"corrected_quote,omitempty"`
	RevokedPromotionID *uuid.UUID `json:"revoked_promotion_id,omitempty"`
}

func (g *GuardResult) DTO() GuardDTO {
	out := GuardDTO{
		Valid:              g.Valid,
		Claimed:            g.Claimed,
		Server:             g.Server,
		RevokedPromotionID: g.RevokedPromotionID,
	}
	if !g.Valid {
		out.Corrected = FromModel(g.Corrected)
	}
	return out
}

// MarshalJSON renders the mismatch as error details carrying the corrected quote.
func (m TotalsMismatch) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Reason  string    `json:"reason"`
		Claimed Totals    `json:"claimed"`
		Server  Totals    `json:"server"`
		Quote   *QuoteDTO `json:"quote"`
	}{
		Reason:  enums.ReasonTotalsMismatch,
		Claimed: m.Claimed,
		Server:  m.Server,
		Quote:   FromModel(m.Quote),
	})
}
