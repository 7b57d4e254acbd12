package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/api/middleware"
	"github.com/angelmondragon/smilequote-backend/api/responses"
	"github.com/angelmondragon/smilequote-backend/api/validators"
	"github.com/angelmondragon/smilequote-backend/internal/quotes"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

const maxPromoCodeLength = 64

type lineRequest struct {
	TreatmentCode  string `json:"treatment_code" validate:"required,max=32"`
	Name           string `json:"name" validate:"required,max=200"`
	Category       string `json:"category" validate:"max=64"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int    `json:"quantity" validate:"required,min=1,max=32"`
}

func (l lineRequest) toInput() quotes.LineInput {
	return quotes.LineInput{
		TreatmentCode:  l.TreatmentCode,
		Name:           validators.SanitizeString(l.Name, 200),
		Category:       validators.SanitizeString(l.Category, 64),
		UnitPriceCents: l.UnitPriceCents,
		Quantity:       l.Quantity,
	}
}

type createQuoteRequest struct {
	ClinicID   uuid.UUID     `json:"clinic_id" validate:"required"`
	PatientID  *uuid.UUID    `json:"patient_id"`
	Currency   string        `json:"currency" validate:"omitempty,len=3"`
	Lines      []lineRequest `json:"lines" validate:"dive"`
	PackageIDs []uuid.UUID   `json:"package_ids"`
	PromoCode  string        `json:"promo_code" validate:"max=64"`
}

type updateLineRequest struct {
	Quantity       *int   `json:"quantity" validate:"omitempty,min=1,max=32"`
	UnitPriceCents *int64 `json:"unit_price_cents" validate:"omitempty,gte=0"`
}

type applyCodeRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type totalsRequest struct {
	SubtotalCents *int64 `json:"subtotal_cents" validate:"required,gte=0"`
	DiscountCents *int64 `json:"discount_cents" validate:"required,gte=0"`
	TotalCents    *int64 `json:"total_cents" validate:"required,gte=0"`
}

func (t totalsRequest) toTotals() quotes.Totals {
	return quotes.Totals{
		SubtotalCents: *t.SubtotalCents,
		DiscountCents: *t.DiscountCents,
		TotalCents:    *t.TotalCents,
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted completed cancelled"`
}

type quoteListResponse struct {
	Items      []*quotes.QuoteDTO `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// QuoteCreate opens a draft, optionally seeding lines, packages and a promo code.
func QuoteCreate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var body createQuoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := quotes.CreateInput{
			ClinicID:   body.ClinicID,
			PatientID:  body.PatientID,
			Currency:   enums.Currency(strings.ToUpper(body.Currency)),
			PackageIDs: body.PackageIDs,
			PromoCode:  validators.SanitizeString(body.PromoCode, maxPromoCodeLength),
		}
		for _, line := range body.Lines {
			input.Lines = append(input.Lines, line.toInput())
		}

		result, err := svc.CreateDraft(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result.DTO())
	}
}

// QuoteList returns the caller's quotes: a patient's own, a clinic's inbox, or everything for admins.
func QuoteList(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var status *enums.QuoteStatus
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			parsed, err := enums.ParseQuoteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter"))
				return
			}
			status = &parsed
		}

		rows, next, err := svc.List(r.Context(), actor, status, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quoteListResponse{Items: quotes.FromModels(rows), NextCursor: next})
	}
}

func QuoteGet(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		quote, err := svc.Get(r.Context(), actor, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes.FromModel(quote))
	}
}

func QuoteAddLine(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		var body lineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AddLine(r.Context(), actor, quoteID, body.toInput(), revision)
		writeResult(w, r, logg, result, err)
	}
}

func QuoteUpdateLine(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		lineID, err := validators.ParsePathUUID(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		var body updateLineRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.Quantity == nil && body.UnitPriceCents == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}
		result, err := svc.UpdateLine(r.Context(), actor, quoteID, lineID, quotes.LinePatch{
			Quantity:       body.Quantity,
			UnitPriceCents: body.UnitPriceCents,
		}, revision)
		writeResult(w, r, logg, result, err)
	}
}

func QuoteRemoveLine(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		lineID, err := validators.ParsePathUUID(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.RemoveLine(r.Context(), actor, quoteID, lineID, revision)
		writeResult(w, r, logg, result, err)
	}
}

// QuoteApplyCode applies a promotion code or slug to the quote in the path.
func QuoteApplyCode(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		var body applyCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ApplyPromotion(r.Context(), actor, quoteID, validators.SanitizeString(body.Code, maxPromoCodeLength), revision)
		writeResult(w, r, logg, result, err)
	}
}

func QuoteRemoveCode(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.RemovePromotion(r.Context(), actor, quoteID, revision)
		writeResult(w, r, logg, result, err)
	}
}

type legacyApplyCodeRequest struct {
	Code    string    `json:"code" validate:"required,max=64"`
	QuoteID uuid.UUID `json:"quote_id" validate:"required"`
}

type legacyRemoveCodeRequest struct {
	QuoteID uuid.UUID `json:"quote_id" validate:"required"`
}

// ApplyCode serves POST /api/apply-code for clients that send the quote id in the body.
func ApplyCode(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body legacyApplyCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ApplyPromotion(r.Context(), actor, body.QuoteID, validators.SanitizeString(body.Code, maxPromoCodeLength), nil)
		writeResult(w, r, logg, result, err)
	}
}

// RemoveCode serves POST /api/remove-code.
func RemoveCode(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body legacyRemoveCodeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RemovePromotion(r.Context(), actor, body.QuoteID, nil)
		writeResult(w, r, logg, result, err)
	}
}

func QuoteInjectPackage(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		packageID, err := validators.ParsePathUUID(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.InjectPackage(r.Context(), actor, quoteID, packageID, revision)
		writeResult(w, r, logg, result, err)
	}
}

func QuoteRemovePackage(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		packageID, err := validators.ParsePathUUID(r, "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.RemovePackage(r.Context(), actor, quoteID, packageID, revision)
		writeResult(w, r, logg, result, err)
	}
}

// QuoteCheckTotals re-derives the stored totals without changing anything.
func QuoteCheckTotals(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		res, err := svc.RevalidateTotals(r.Context(), actor, quoteID, nil)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res.DTO())
	}
}

// QuoteRevalidate compares the totals a client displays against server pricing.
func QuoteRevalidate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		var body totalsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		claimed := body.toTotals()
		res, err := svc.RevalidateTotals(r.Context(), actor, quoteID, &claimed)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, res.DTO())
	}
}

// QuoteSubmit hands a draft to its clinic once the claimed totals match server pricing.
func QuoteSubmit(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		var body totalsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Submit(r.Context(), actor, quoteID, body.toTotals(), revision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes.FromModel(quote))
	}
}

func QuoteTransitionStatus(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, quoteID, ok := actorAndQuote(w, r, logg)
		if !ok {
			return
		}
		revision, ok := expectedRevision(w, r, logg)
		if !ok {
			return
		}
		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.TransitionStatus(r.Context(), actor, quoteID, enums.QuoteStatus(body.Status), revision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes.FromModel(quote))
	}
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (pkgAuth.AuthContext, bool) {
	actor, ok := middleware.AuthContextFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
		return pkgAuth.AuthContext{}, false
	}
	return actor, true
}

func actorAndQuote(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (pkgAuth.AuthContext, uuid.UUID, bool) {
	actor, ok := requireActor(w, r, logg)
	if !ok {
		return actor, uuid.Nil, false
	}
	quoteID, err := validators.ParsePathUUID(r, "quoteId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return actor, uuid.Nil, false
	}
	return actor, quoteID, true
}

func expectedRevision(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (*int64, bool) {
	revision, err := validators.ParseExpectedRevision(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return revision, true
}

func writeResult(w http.ResponseWriter, r *http.Request, logg *logger.Logger, result *quotes.Result, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, result.DTO())
}
