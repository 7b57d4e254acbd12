package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	dbpkg "github.com/angelmondragon/smilequote-backend/pkg/db"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/smilequote-backend/pkg/db/types"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/metrics"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

var maxPercent = decimal.NewFromInt(100)

// PreviewInput describes an unsaved basket to price against a promotion.
type PreviewInput struct {
	Identifier string
	ClinicID   uuid.UUID
	Lines      []pricing.Line
}

// PreviewResult mirrors the authoritative pricing without persisting anything.
type PreviewResult struct {
	IsValid          bool
	ValidationErrors []string
	Promotion        *models.Promotion
	Summary          pricing.Summary
}

// CreateInput carries the fields an admin supplies for a new promotion.
type CreateInput struct {
	Slug                     string
	Code                     string
	Title                    string
	Description              string
	PromoType                enums.PromoType
	DiscountType             enums.DiscountType
	DiscountValue            decimal.Decimal
	ApplicableTreatmentCodes []string
	EligibleClinicIDs        []uuid.UUID
	StartDate                time.Time
	EndDate                  time.Time
	IsActive                 bool
}

// UpdateInput applies only the non-nil fields.
type UpdateInput struct {
	Title                    *string
	Description              *string
	DiscountType             *enums.DiscountType
	DiscountValue            *decimal.Decimal
	ApplicableTreatmentCodes *[]string
	EligibleClinicIDs        *[]uuid.UUID
	StartDate                *time.Time
	EndDate                  *time.Time
	IsActive                 *bool
}

// Service covers promotion previews and admin management.
type Service interface {
	Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Promotion, string, error)
	Create(ctx context.Context, input CreateInput) (*models.Promotion, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Promotion, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type promotionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Promotion, string, error)
	Create(ctx context.Context, promo *models.Promotion) error
	Update(ctx context.Context, promo *models.Promotion) error
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, promo *models.Promotion)
}

type service struct {
	repo     promotionRepository
	resolver *Resolver
	cache    cacheInvalidator
	metrics  *metrics.PricingMetrics
	logg     *logger.Logger
	clock    func() time.Time
}

// ServiceParams wires the promotion service dependencies.
type ServiceParams struct {
	Repo     promotionRepository
	Resolver *Resolver
	Cache    cacheInvalidator
	Metrics  *metrics.PricingMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

// NewService builds the promotion service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("promotion repository required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("promotion resolver required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:     params.Repo,
		resolver: params.Resolver,
		cache:    params.Cache,
		metrics:  params.Metrics,
		logg:     params.Logger,
		clock:    clock,
	}, nil
}

func (s *service) Preview(ctx context.Context, input PreviewInput) (*PreviewResult, error) {
	codes := make([]string, 0, len(input.Lines))
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "treatment quantity must be positive")
		}
		if line.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "treatment price must not be negative")
		}
		codes = append(codes, line.TreatmentCode)
	}

	res, err := s.resolver.Resolve(ctx, input.Identifier, input.ClinicID, codes, s.clock().UTC())
	if err != nil {
		return nil, err
	}

	result := &PreviewResult{
		IsValid:          res.IsValid,
		ValidationErrors: res.ValidationErrors,
		Promotion:        res.Promotion,
	}
	if res.IsValid {
		result.Summary = pricing.Summarize(input.Lines, RuleFor(res.Promotion))
		s.metrics.IncPromotionOutcome("preview", "valid")
	} else {
		result.Summary = pricing.Summarize(input.Lines, nil)
		s.metrics.IncPromotionOutcome("preview", res.Reason().String())
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "promotion not found")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Promotion, string, error) {
	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid listing parameters")
	}
	return rows, next, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Promotion, error) {
	promo := &models.Promotion{
		Slug:                     strings.ToLower(strings.TrimSpace(input.Slug)),
		Code:                     strings.ToUpper(strings.TrimSpace(input.Code)),
		Title:                    strings.TrimSpace(input.Title),
		Description:              strings.TrimSpace(input.Description),
		PromoType:                input.PromoType,
		DiscountType:             input.DiscountType,
		DiscountValue:            input.DiscountValue,
		ApplicableTreatmentCodes: normalizeCodes(input.ApplicableTreatmentCodes),
		EligibleClinicIDs:        dbtypes.UUIDArray(input.EligibleClinicIDs),
		StartDate:                input.StartDate.UTC(),
		EndDate:                  input.EndDate.UTC(),
		IsActive:                 input.IsActive,
	}
	if promo.EligibleClinicIDs == nil {
		promo.EligibleClinicIDs = dbtypes.UUIDArray{}
	}
	if err := validatePromotion(promo); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "promotion code or slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"promotion_id": promo.ID.String(), "code": promo.Code})
	s.logg.Info(logCtx, "promotion created")
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Promotion, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, translateRepoError(err, "promotion not found")
	}

	if input.Title != nil {
		promo.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		promo.Description = strings.TrimSpace(*input.Description)
	}
	if input.DiscountType != nil {
		promo.DiscountType = *input.DiscountType
	}
	if input.DiscountValue != nil {
		promo.DiscountValue = *input.DiscountValue
	}
	if input.ApplicableTreatmentCodes != nil {
		promo.ApplicableTreatmentCodes = normalizeCodes(*input.ApplicableTreatmentCodes)
	}
	if input.EligibleClinicIDs != nil {
		promo.EligibleClinicIDs = dbtypes.UUIDArray(append([]uuid.UUID{}, (*input.EligibleClinicIDs)...))
	}
	if input.StartDate != nil {
		promo.StartDate = input.StartDate.UTC()
	}
	if input.EndDate != nil {
		promo.EndDate = input.EndDate.UTC()
	}
	if input.IsActive != nil {
		promo.IsActive = *input.IsActive
	}
	if err := validatePromotion(promo); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promotion")
	}
	s.invalidate(ctx, promo)

	s.logg.Info(s.logg.WithField(ctx, "promotion_id", promo.ID.String()), "promotion updated")
	return promo, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return translateRepoError(err, "promotion not found")
	}
	if _, err := s.repo.Deactivate(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate promotion")
	}
	s.invalidate(ctx, promo)
	s.logg.Info(s.logg.WithField(ctx, "promotion_id", id.String()), "promotion deactivated")
	return nil
}

func (s *service) invalidate(ctx context.Context, promo *models.Promotion) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, promo)
	}
}

func validatePromotion(promo *models.Promotion) error {
	var problems []string
	if promo.Slug == "" {
		problems = append(problems, "slug is required")
	}
	if promo.Code == "" {
		problems = append(problems, "code is required")
	}
	if promo.Title == "" {
		problems = append(problems, "title is required")
	}
	if !promo.PromoType.IsValid() {
		problems = append(problems, "promo_type must be OFFER or PACKAGE")
	}
	switch promo.DiscountType {
	case enums.DiscountTypePercent:
		if promo.DiscountValue.IsNegative() || promo.DiscountValue.GreaterThan(maxPercent) {
			problems = append(problems, "percent discount_value must be between 0 and 100")
		}
	case enums.DiscountTypeFixedAmount:
		if promo.DiscountValue.IsNegative() {
			problems = append(problems, "fixed discount_value must not be negative")
		}
	default:
		problems = append(problems, "discount_type must be PERCENT or FIXED_AMOUNT")
	}
	if promo.StartDate.IsZero() || promo.EndDate.IsZero() {
		problems = append(problems, "start_date and end_date are required")
	} else if !promo.EndDate.After(promo.StartDate) {
		problems = append(problems, "end_date must be after start_date")
	}

	if len(problems) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid promotion").
			WithDetails(map[string]any{"validation_errors": problems})
	}
	return nil
}

func normalizeCodes(codes []string) pq.StringArray {
	out := pq.StringArray{}
	seen := map[string]struct{}{}
	for _, code := range codes {
		normalized := pricing.NormalizeCode(code)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func translateRepoError(err error, notFoundMsg string) error {
	if IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "promotion lookup failed")
}
