package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
)

type PackageItemDTO struct {
	TreatmentCode  string `json:"treatment_code"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Quantity       int    `json:"quantity"`
}

// PackageDTO is a package or special offer as shown to patients.
type PackageDTO struct {
	ID            uuid.UUID         `json:"id"`
	Slug          string            `json:"slug"`
	Kind          enums.PackageKind `json:"kind"`
	Title         string            `json:"title"`
	Description   string            `json:"description"`
	ClinicID      *uuid.UUID        `json:"clinic_id,omitempty"`
	PromotionCode *string           `json:"promotion_code,omitempty"`
	Items         []PackageItemDTO  `json:"items"`
	PriceCents    int64             `json:"price_cents"`
}

func FromModel(p *models.CatalogPackage) *PackageDTO {
	if p == nil {
		return nil
	}
	dto := &PackageDTO{
		ID:            p.ID,
		Slug:          p.Slug,
		Kind:          p.Kind,
		Title:         p.Title,
		Description:   p.Description,
		ClinicID:      p.ClinicID,
		PromotionCode: p.PromotionCode,
		Items:         make([]PackageItemDTO, 0, len(p.Items)),
	}
	for _, item := range p.Items {
		dto.Items = append(dto.Items, PackageItemDTO{
			TreatmentCode:  item.TreatmentCode,
			Name:           item.Name,
			Category:       item.Category,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
		dto.PriceCents += item.UnitPriceCents * int64(item.Quantity)
	}
	return dto
}

func FromModels(pkgs []models.CatalogPackage) []*PackageDTO {
	out := make([]*PackageDTO, 0, len(pkgs))
	for i := range pkgs {
		out = append(out, FromModel(&pkgs[i]))
	}
	return out
}
