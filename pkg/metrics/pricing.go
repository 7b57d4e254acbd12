package metrics

import "github.com/prometheus/client_golang/prometheus"

// PricingMetrics tracks promotion and totals-guard outcomes on the quote paths.
type PricingMetrics struct {
	promotionOutcomes *prometheus.CounterVec
	totalsMismatches  *prometheus.CounterVec
	packageInjections *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smilequote_promotion_outcomes_total",
		Help: "Promotion resolutions by operation and outcome.",
	}, []string{"operation", "outcome"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smilequote_quote_totals_mismatch_total",
		Help: "Quotes whose client-claimed totals disagreed with server pricing.",
	}, []string{"stage"})
	injections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "smilequote_package_injections_total",
		Help: "Package and special offer injections by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, mismatches, injections)
	return &PricingMetrics{
		promotionOutcomes: outcomes,
		totalsMismatches:  mismatches,
		packageInjections: injections,
	}
}

// IncPromotionOutcome counts one promotion resolution. outcome is "applied",
// "valid" or a rejection reason.
func (p *PricingMetrics) IncPromotionOutcome(operation, outcome string) {
	if p == nil || p.promotionOutcomes == nil {
		return
	}
	p.promotionOutcomes.WithLabelValues(normalizeLabel(operation), normalizeLabel(outcome)).Inc()
}

// IncTotalsMismatch counts a guard rejection or a silent server-side correction.
func (p *PricingMetrics) IncTotalsMismatch(stage string) {
	if p == nil || p.totalsMismatches == nil {
		return
	}
	p.totalsMismatches.WithLabelValues(normalizeLabel(stage)).Inc()
}

// IncPackageInjection counts an inject attempt.
func (p *PricingMetrics) IncPackageInjection(result string) {
	if p == nil || p.packageInjections == nil {
		return
	}
	p.packageInjections.WithLabelValues(normalizeLabel(result)).Inc()
}
