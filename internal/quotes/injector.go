package quotes

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
)

const (
	injectResultInjected  = "injected"
	injectResultUnchanged = "unchanged"
	injectResultNotFound  = "not_found"
)

// InjectPackage adds a package or special offer to a draft as locked lines.
// Injecting the same package again leaves the line set unchanged.
func (s *service) InjectPackage(ctx context.Context, actor pkgAuth.AuthContext, quoteID, packageID uuid.UUID, expectedRevision *int64) (*Result, error) {
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	result := &Result{Quote: quote}

	pkg, err := s.catalog.Get(ctx, packageID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.packageMissing(ctx, actor, quote, packageID, result)
			return result, nil
		}
		return nil, err
	}
	if pkg.ClinicID != nil && *pkg.ClinicID != quote.ClinicID {
		s.packageMissing(ctx, actor, quote, packageID, result)
		return result, nil
	}

	lines, changed := mergePackageLines(quote.Lines, pkg)
	if changed {
		expected := quote.Revision
		quote.Lines = lines
		ch := change{linesChanged: true}
		if err := s.reprice(ctx, &actor, quote, &ch, result); err != nil {
			return nil, err
		}
		if err := s.commit(ctx, quote, expected, ch); err != nil {
			return nil, err
		}
		s.metrics.IncPackageInjection(injectResultInjected)
		s.logg.Info(s.logg.WithField(s.logCtx(ctx, actor, quote), "package_id", pkg.ID.String()), "package injected")
	} else {
		s.metrics.IncPackageInjection(injectResultUnchanged)
	}

	code := strings.TrimSpace(derefString(pkg.PromotionCode))
	if code == "" {
		return result, nil
	}
	applied, err := s.ApplyPromotion(ctx, actor, quote.ID, code, nil)
	switch {
	case err == nil:
		result.Quote = applied.Quote
		result.Promotion = applied.Promotion
	case pkgerrors.IsCode(err, pkgerrors.CodePromotionRejected):
		result.warn(enums.WarningPromotionSkipped)
		logCtx := s.logg.WithFields(s.logCtx(ctx, actor, quote), map[string]any{
			"package_id": pkg.ID.String(),
			"promo_code": code,
		})
		s.logg.Warn(logCtx, "package promotion not applied")
	default:
		return nil, err
	}
	return result, nil
}

// RemovePackage drops every line the package injected. Removing a package
// that is not on the quote is a no-op.
func (s *service) RemovePackage(ctx context.Context, actor pkgAuth.AuthContext, quoteID, packageID uuid.UUID, expectedRevision *int64) (*Result, error) {
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	kept := make([]models.QuoteLine, 0, len(quote.Lines))
	for _, line := range quote.Lines {
		if isFromPackage(line, packageID) {
			continue
		}
		kept = append(kept, line)
	}
	if len(kept) == len(quote.Lines) {
		return &Result{Quote: quote}, nil
	}
	quote.Lines = kept
	return s.saveLines(ctx, actor, quote)
}

func (s *service) packageMissing(ctx context.Context, actor pkgAuth.AuthContext, quote *models.Quote, packageID uuid.UUID, result *Result) {
	s.metrics.IncPackageInjection(injectResultNotFound)
	result.warn(enums.WarningPackageNotFound)
	s.logg.Warn(s.logg.WithField(s.logCtx(ctx, actor, quote), "package_id", packageID.String()), "package not found for injection")
}

// mergePackageLines swaps the package's existing lines for fresh ones built
// from the catalog. It reports false when the existing lines already match.
func mergePackageLines(existing []models.QuoteLine, pkg *models.CatalogPackage) ([]models.QuoteLine, bool) {
	kept := make([]models.QuoteLine, 0, len(existing)+len(pkg.Items))
	var current []models.QuoteLine
	for _, line := range existing {
		if isFromPackage(line, pkg.ID) {
			current = append(current, line)
			continue
		}
		kept = append(kept, line)
	}
	fresh := packageLines(pkg)
	if sameLines(current, fresh) {
		return existing, false
	}
	return append(kept, fresh...), true
}

func packageLines(pkg *models.CatalogPackage) []models.QuoteLine {
	lines := make([]models.QuoteLine, 0, len(pkg.Items))
	for _, item := range pkg.Items {
		source := pkg.ID
		lines = append(lines, models.QuoteLine{
			TreatmentCode:      pricing.NormalizeCode(item.TreatmentCode),
			Name:               item.Name,
			Category:           item.Category,
			UnitPriceCents:     item.UnitPriceCents,
			Quantity:           item.Quantity,
			IsPackageItem:      pkg.Kind == enums.PackageKindPackage,
			IsSpecialOfferItem: pkg.Kind == enums.PackageKindSpecialOffer,
			IsLocked:           true,
			SourcePackageID:    &source,
		})
	}
	return lines
}

func sameLines(a, b []models.QuoteLine) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].TreatmentCode != b[i].TreatmentCode ||
			a[i].Name != b[i].Name ||
			a[i].Category != b[i].Category ||
			a[i].UnitPriceCents != b[i].UnitPriceCents ||
			a[i].Quantity != b[i].Quantity ||
			a[i].IsPackageItem != b[i].IsPackageItem ||
			a[i].IsSpecialOfferItem != b[i].IsSpecialOfferItem ||
			a[i].IsLocked != b[i].IsLocked {
			return false
		}
	}
	return true
}

func isFromPackage(line models.QuoteLine, packageID uuid.UUID) bool {
	return line.SourcePackageID != nil && *line.SourcePackageID == packageID
}
