// Package pricing holds the pure money math shared by the quote preview and
// the authoritative quote paths. All amounts are integer minor units.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

// Line is the pricing view of a quote line.
type Line struct {
	TreatmentCode  string
	UnitPriceCents int64
	Quantity       int
}

// SubtotalCents returns unit price × quantity, ignoring non-positive quantities.
func (l Line) SubtotalCents() int64 {
	if l.Quantity <= 0 || l.UnitPriceCents <= 0 {
		return 0
	}
	return l.UnitPriceCents * int64(l.Quantity)
}

// Rule is the pricing view of a promotion. An empty ApplicableCodes set
// means every line is eligible.
type Rule struct {
	DiscountType    enums.DiscountType
	Value           decimal.Decimal
	ApplicableCodes []string
}

// Summary is the priced outcome for a set of lines.
type Summary struct {
	SubtotalCents         int64 `json:"subtotal_cents"`
	EligibleSubtotalCents int64 `json:"eligible_subtotal_cents"`
	DiscountCents         int64 `json:"discount_cents"`
	TotalCents            int64 `json:"total_cents"`
}

// ComputeDiscount returns the discount a rule grants against base.
// PERCENT rounds half-up to the nearest minor unit; FIXED_AMOUNT is capped
// at base. The result is always within [0, base].
func ComputeDiscount(baseCents int64, rule *Rule) int64 {
	if rule == nil || baseCents <= 0 {
		return 0
	}

	var discount int64
	switch rule.DiscountType {
	case enums.DiscountTypePercent:
		pct := clamp(rule.Value, decimal.Zero, hundred)
		discount = decimal.NewFromInt(baseCents).
			Mul(pct).
			Div(hundred).
			Round(0).
			IntPart()
	case enums.DiscountTypeFixedAmount:
		if rule.Value.IsNegative() {
			return 0
		}
		discount = rule.Value.Round(0).IntPart()
	default:
		return 0
	}

	if discount < 0 {
		return 0
	}
	if discount > baseCents {
		return baseCents
	}
	return discount
}

// Summarize prices lines against an optional rule. PERCENT discounts apply to
// the eligible-line subtotal, FIXED_AMOUNT discounts to the full subtotal.
func Summarize(lines []Line, rule *Rule) Summary {
	subtotal := Subtotal(lines)
	summary := Summary{SubtotalCents: subtotal, TotalCents: subtotal}
	if rule == nil {
		return summary
	}

	summary.EligibleSubtotalCents = EligibleSubtotal(lines, rule.ApplicableCodes)
	switch rule.DiscountType {
	case enums.DiscountTypePercent:
		summary.DiscountCents = ComputeDiscount(summary.EligibleSubtotalCents, rule)
	default:
		summary.DiscountCents = ComputeDiscount(subtotal, rule)
	}
	if summary.DiscountCents > subtotal {
		summary.DiscountCents = subtotal
	}
	summary.TotalCents = subtotal - summary.DiscountCents
	return summary
}

// Subtotal sums every line.
func Subtotal(lines []Line) int64 {
	var total int64
	for _, line := range lines {
		total += line.SubtotalCents()
	}
	return total
}

// EligibleSubtotal sums the lines whose treatment code is in codes. An empty
// codes set makes every line eligible.
func EligibleSubtotal(lines []Line, codes []string) int64 {
	if len(codes) == 0 {
		return Subtotal(lines)
	}
	allowed := CodeSet(codes)
	var total int64
	for _, line := range lines {
		if _, ok := allowed[NormalizeCode(line.TreatmentCode)]; ok {
			total += line.SubtotalCents()
		}
	}
	return total
}

// HasEligibleLine reports whether any of the selected codes is applicable.
func HasEligibleLine(selected, applicable []string) bool {
	if len(applicable) == 0 {
		return true
	}
	allowed := CodeSet(applicable)
	for _, code := range selected {
		if _, ok := allowed[NormalizeCode(code)]; ok {
			return true
		}
	}
	return false
}

// CodeSet builds a normalized lookup set of treatment codes.
func CodeSet(codes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := NormalizeCode(code)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}

// NormalizeCode canonicalizes treatment and promotion codes for comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// WithinTolerance reports whether two amounts differ by at most tolerance minor units.
func WithinTolerance(a, b, tolerance int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
