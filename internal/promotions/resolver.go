package promotions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
)

// Validation messages returned to clients in validation_errors.
const (
	MsgNotFound             = "not found"
	MsgExpired              = "expired"
	MsgNotYetActive         = "not yet active"
	MsgInactive             = "inactive"
	MsgIneligibleClinic     = "not available at this clinic"
	MsgNoEligibleTreatments = "no eligible treatments selected"
)

// reasonByMessage maps validation messages onto the client-facing rejection
// reasons. A promotion whose window has not opened yet is reported as
// inactive, since the reason set has no separate not-yet-active entry.
var reasonByMessage = map[string]enums.PromotionRejection{
	MsgNotFound:             enums.PromotionRejectInvalidCode,
	MsgExpired:              enums.PromotionRejectExpired,
	MsgNotYetActive:         enums.PromotionRejectInactive,
	MsgInactive:             enums.PromotionRejectInactive,
	MsgIneligibleClinic:     enums.PromotionRejectIneligibleClinic,
	MsgNoEligibleTreatments: enums.PromotionRejectNoEligibleTreatments,
}

// Resolution is the outcome of resolving a promotion identifier for a quote context.
type Resolution struct {
	Promotion        *models.Promotion
	IsValid          bool
	ValidationErrors []string
}

// Reason returns the typed rejection for the first validation error.
func (r *Resolution) Reason() enums.PromotionRejection {
	if r == nil || r.IsValid || len(r.ValidationErrors) == 0 {
		return ""
	}
	return reasonByMessage[r.ValidationErrors[0]]
}

// Err converts an invalid resolution into a PROMOTION_REJECTED error.
func (r *Resolution) Err() error {
	if r == nil || r.IsValid {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodePromotionRejected, fmt.Sprintf("promotion %s", r.ValidationErrors[0])).
		WithDetails(map[string]any{
			"reason":            r.Reason(),
			"validation_errors": r.ValidationErrors,
		})
}

// Resolver looks up promotions and checks them against a quote context.
type Resolver struct {
	store Store
}

// NewResolver builds a resolver over the provided store.
func NewResolver(store Store) (*Resolver, error) {
	if store == nil {
		return nil, fmt.Errorf("promotion store required")
	}
	return &Resolver{store: store}, nil
}

// Resolve finds the promotion named by identifier and validates it. Lookup
// misses are reported as invalid resolutions; only infrastructure failures
// are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, identifier string, clinicID uuid.UUID, treatmentCodes []string, now time.Time) (*Resolution, error) {
	if strings.TrimSpace(identifier) == "" {
		return &Resolution{ValidationErrors: []string{MsgNotFound}}, nil
	}
	promo, err := r.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if IsNotFound(err) {
			return &Resolution{ValidationErrors: []string{MsgNotFound}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup promotion")
	}
	return Evaluate(promo, clinicID, treatmentCodes, now), nil
}

// ResolveByID re-validates an already applied promotion from trusted data.
func (r *Resolver) ResolveByID(ctx context.Context, id uuid.UUID, clinicID uuid.UUID, treatmentCodes []string, now time.Time) (*Resolution, error) {
	promo, err := r.store.FindByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return &Resolution{ValidationErrors: []string{MsgNotFound}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup promotion")
	}
	return Evaluate(promo, clinicID, treatmentCodes, now), nil
}

// Evaluate checks a loaded promotion without touching storage. Every failed
// rule is collected in order: window, active flag, clinic, treatments.
func Evaluate(promo *models.Promotion, clinicID uuid.UUID, treatmentCodes []string, now time.Time) *Resolution {
	if promo == nil {
		return &Resolution{ValidationErrors: []string{MsgNotFound}}
	}

	var problems []string
	switch {
	case now.Before(promo.StartDate):
		problems = append(problems, MsgNotYetActive)
	case now.After(promo.EndDate):
		problems = append(problems, MsgExpired)
	}
	if !promo.IsActive {
		problems = append(problems, MsgInactive)
	}
	if len(promo.EligibleClinicIDs) > 0 && !promo.EligibleClinicIDs.Contains(clinicID) {
		problems = append(problems, MsgIneligibleClinic)
	}
	if !pricing.HasEligibleLine(treatmentCodes, promo.ApplicableTreatmentCodes) {
		problems = append(problems, MsgNoEligibleTreatments)
	}

	return &Resolution{
		Promotion:        promo,
		IsValid:          len(problems) == 0,
		ValidationErrors: problems,
	}
}

// RuleFor projects a promotion onto the pricing rule it implies.
func RuleFor(promo *models.Promotion) *pricing.Rule {
	if promo == nil {
		return nil
	}
	return &pricing.Rule{
		DiscountType:    promo.DiscountType,
		Value:           promo.DiscountValue,
		ApplicableCodes: []string(promo.ApplicableTreatmentCodes),
	}
}
