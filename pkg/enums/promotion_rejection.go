package enums

// PromotionRejection is the machine-readable reason a promotion was refused.
type PromotionRejection string

const (
	PromotionRejectInvalidCode          PromotionRejection = "invalid_code"
	PromotionRejectExpired              PromotionRejection = "expired"
	PromotionRejectInactive             PromotionRejection = "inactive"
	PromotionRejectIneligibleClinic     PromotionRejection = "ineligible_clinic"
	PromotionRejectNoEligibleTreatments PromotionRejection = "no_eligible_treatments"
)

// ReasonTotalsMismatch tags a submit whose claimed totals disagree with server pricing.
const ReasonTotalsMismatch = "quote_totals_mismatch"

// Warnings surfaced alongside a successful response.
const (
	WarningPackageNotFound  = "package_not_found"
	WarningPromotionRevoked = "promotion_revoked"
	WarningPromotionSkipped = "package_promotion_not_applied"
)

// String implements fmt.Stringer.
func (r PromotionRejection) String() string {
	return string(r)
}
