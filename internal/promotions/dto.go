package promotions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

// PromotionDTO is the admin and patient facing shape of a promotion.
type PromotionDTO struct {
	ID                       uuid.UUID          `json:"id"`
	Slug                     string             `json:"slug"`
	Code                     string             `json:"code"`
	Title                    string             `json:"title"`
	Description              string             `json:"description"`
	PromoType                enums.PromoType    `json:"promo_type"`
	DiscountType             enums.DiscountType `json:"discount_type"`
	DiscountValue            decimal.Decimal    `json:"discount_value"`
	ApplicableTreatmentCodes []string           `json:"applicable_treatment_codes"`
	EligibleClinicIDs        []uuid.UUID        `json:"eligible_clinic_ids"`
	StartDate                time.Time          `json:"start_date"`
	EndDate                  time.Time          `json:"end_date"`
	IsActive                 bool               `json:"is_active"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

func FromModel(p *models.Promotion) *PromotionDTO {
	if p == nil {
		return nil
	}
	codes := []string(p.ApplicableTreatmentCodes)
	if codes == nil {
		codes = []string{}
	}
	clinics := []uuid.UUID(p.EligibleClinicIDs)
	if clinics == nil {
		clinics = []uuid.UUID{}
	}
	return &PromotionDTO{
		ID:                       p.ID,
		Slug:                     p.Slug,
		Code:                     p.Code,
		Title:                    p.Title,
		Description:              p.Description,
		PromoType:                p.PromoType,
		DiscountType:             p.DiscountType,
		DiscountValue:            p.DiscountValue,
		ApplicableTreatmentCodes: codes,
		EligibleClinicIDs:        clinics,
		StartDate:                p.StartDate,
		EndDate:                  p.EndDate,
		IsActive:                 p.IsActive,
		CreatedAt:                p.CreatedAt,
		UpdatedAt:                p.UpdatedAt,
	}
}

// PreviewDTO answers the unsaved-basket validation endpoint.
type PreviewDTO struct {
	IsValid          bool          `json:"is_valid"`
	ValidationErrors []string      `json:"validation_errors"`
	DiscountAmount   int64         `json:"discount_amount"`
	Subtotal         int64         `json:"subtotal"`
	Total            int64         `json:"total"`
	Promotion        *PromotionDTO `json:"promotion,omitempty"`
}

func (r *PreviewResult) DTO() PreviewDTO {
	errs := r.ValidationErrors
	if errs == nil {
		errs = []string{}
	}
	out := PreviewDTO{
		IsValid:          r.IsValid,
		ValidationErrors: errs,
		DiscountAmount:   r.Summary.DiscountCents,
		Subtotal:         r.Summary.SubtotalCents,
		Total:            r.Summary.TotalCents,
	}
	if r.IsValid {
		out.Promotion = FromModel(r.Promotion)
	}
	return out
}
