package enums

// QuotePromotionAction records what happened to a quote's promotion.
type QuotePromotionAction string

const (
	QuotePromotionApplied QuotePromotionAction = "applied"
	QuotePromotionRemoved QuotePromotionAction = "removed"
	// QuotePromotionRevoked marks a promotion dropped by the server after it stopped resolving.
	QuotePromotionRevoked QuotePromotionAction = "revoked"
)

var validQuotePromotionActions = []QuotePromotionAction{
	QuotePromotionApplied,
	QuotePromotionRemoved,
	QuotePromotionRevoked,
}

func (a QuotePromotionAction) IsValid() bool {
	for _, candidate := range validQuotePromotionActions {
		if candidate == a {
			return true
		}
	}
	return false
}
