package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smilequote-backend/api/responses"
	"github.com/angelmondragon/smilequote-backend/api/validators"
	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

type previewTreatment struct {
	TreatmentCode  string `json:"treatment_code" validate:"required,max=32"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=32"`
}

type previewRequest struct {
	PromoSlug  string             `json:"promo_slug" validate:"required,max=64"`
	ClinicID   uuid.UUID          `json:"clinic_id" validate:"required"`
	Treatments []previewTreatment `json:"treatments" validate:"dive"`
}

// PromoValidate prices an unsaved basket against a promotion. Nothing is persisted.
func PromoValidate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body previewRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]pricing.Line, 0, len(body.Treatments))
		for _, t := range body.Treatments {
			lines = append(lines, pricing.Line{
				TreatmentCode:  t.TreatmentCode,
				UnitPriceCents: t.UnitPriceCents,
				Quantity:       t.Quantity,
			})
		}

		result, err := svc.Preview(r.Context(), promotions.PreviewInput{
			Identifier: validators.SanitizeString(body.PromoSlug, maxPromoCodeLength),
			ClinicID:   body.ClinicID,
			Lines:      lines,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result.DTO())
	}
}

type createPromotionRequest struct {
	Slug                     string          `json:"slug" validate:"required,max=64"`
	Code                     string          `json:"code" validate:"required,max=64"`
	Title                    string          `json:"title" validate:"required,max=200"`
	Description              string          `json:"description" validate:"max=2000"`
	PromoType                string          `json:"promo_type" validate:"required,oneof=OFFER PACKAGE"`
	DiscountType             string          `json:"discount_type" validate:"required,oneof=PERCENT FIXED_AMOUNT"`
	DiscountValue            decimal.Decimal `json:"discount_value"`
	ApplicableTreatmentCodes []string        `json:"applicable_treatment_codes"`
	EligibleClinicIDs        []uuid.UUID     `json:"eligible_clinic_ids"`
	StartDate                time.Time       `json:"start_date" validate:"required"`
	EndDate                  time.Time       `json:"end_date" validate:"required"`
	IsActive                 *bool           `json:"is_active"`
}

type updatePromotionRequest struct {
	Title                    *string          `json:"title" validate:"omitempty,max=200"`
	Description              *string          `json:"description" validate:"omitempty,max=2000"`
	DiscountType             *string          `json:"discount_type" validate:"omitempty,oneof=PERCENT FIXED_AMOUNT"`
	DiscountValue            *decimal.Decimal `json:"discount_value"`
	ApplicableTreatmentCodes *[]string        `json:"applicable_treatment_codes"`
	EligibleClinicIDs        *[]uuid.UUID     `json:"eligible_clinic_ids"`
	StartDate                *time.Time       `json:"start_date"`
	EndDate                  *time.Time       `json:"end_date"`
	IsActive                 *bool            `json:"is_active"`
}

type promotionListResponse struct {
	Items      []*promotions.PromotionDTO `json:"items"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

func AdminPromotionList(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := promotions.ListFilter{
			ActiveOnly: strings.EqualFold(r.URL.Query().Get("active"), "true"),
			PromoType:  strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("promo_type"))),
		}
		rows, next, err := svc.List(r.Context(), filter, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]*promotions.PromotionDTO, 0, len(rows))
		for i := range rows {
			items = append(items, promotions.FromModel(&rows[i]))
		}
		responses.WriteSuccess(w, promotionListResponse{Items: items, NextCursor: next})
	}
}

func AdminPromotionGet(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "promotionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promo, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promotions.FromModel(promo))
	}
}

func AdminPromotionCreate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createPromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promoType, err := enums.ParsePromoType(body.PromoType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid promo_type"))
			return
		}
		discountType, err := enums.ParseDiscountType(body.DiscountType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount_type"))
			return
		}
		active := true
		if body.IsActive != nil {
			active = *body.IsActive
		}

		promo, err := svc.Create(r.Context(), promotions.CreateInput{
			Slug:                     body.Slug,
			Code:                     body.Code,
			Title:                    body.Title,
			Description:              body.Description,
			PromoType:                promoType,
			DiscountType:             discountType,
			DiscountValue:            body.DiscountValue,
			ApplicableTreatmentCodes: body.ApplicableTreatmentCodes,
			EligibleClinicIDs:        body.EligibleClinicIDs,
			StartDate:                body.StartDate,
			EndDate:                  body.EndDate,
			IsActive:                 active,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promotions.FromModel(promo))
	}
}

// AdminPromotionUpdate patches a promotion. Code and slug are immutable once issued.
func AdminPromotionUpdate(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "promotionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updatePromotionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promotions.UpdateInput{
			Title:                    body.Title,
			Description:              body.Description,
			DiscountValue:            body.DiscountValue,
			ApplicableTreatmentCodes: body.ApplicableTreatmentCodes,
			EligibleClinicIDs:        body.EligibleClinicIDs,
			StartDate:                body.StartDate,
			EndDate:                  body.EndDate,
			IsActive:                 body.IsActive,
		}
		if body.DiscountType != nil {
			dt, err := enums.ParseDiscountType(*body.DiscountType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount_type"))
				return
			}
			input.DiscountType = &dt
		}

		promo, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promotions.FromModel(promo))
	}
}

// AdminPromotionDelete deactivates rather than deletes so audit rows keep their promotion.
func AdminPromotionDelete(svc promotions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathUUID(r, "promotionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"id": id, "is_active": false})
	}
}
