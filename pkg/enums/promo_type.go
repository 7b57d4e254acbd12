package enums

import "fmt"

// PromoType distinguishes plain offers from bundled treatment packages.
type PromoType string

const (
	PromoTypeOffer   PromoType = "OFFER"
	PromoTypePackage PromoType = "PACKAGE"
)

var validPromoTypes = []PromoType{
	PromoTypeOffer,
	PromoTypePackage,
}

// String implements fmt.Stringer.
func (p PromoType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PromoType.
func (p PromoType) IsValid() bool {
	for _, candidate := range validPromoTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePromoType converts raw input into a PromoType.
func ParsePromoType(value string) (PromoType, error) {
	for _, candidate := range validPromoTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid promo type %q", value)
}
