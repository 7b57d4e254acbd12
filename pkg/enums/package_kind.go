package enums

import "fmt"

// PackageKind separates curated treatment packages from time-boxed special offers.
type PackageKind string

const (
	PackageKindPackage      PackageKind = "package"
	PackageKindSpecialOffer PackageKind = "special_offer"
)

var validPackageKinds = []PackageKind{
	PackageKindPackage,
	PackageKindSpecialOffer,
}

func (k PackageKind) String() string {
	return string(k)
}

func (k PackageKind) IsValid() bool {
	for _, candidate := range validPackageKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParsePackageKind converts raw input into a PackageKind.
func ParsePackageKind(value string) (PackageKind, error) {
	for _, candidate := range validPackageKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid package kind %q", value)
}
