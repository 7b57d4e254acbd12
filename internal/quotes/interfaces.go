package quotes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

// Repository defines persistence operations for quotes, their lines and the
// promotion audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, quote *models.Quote) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, string, error)
	UpdateWithRevision(ctx context.Context, quote *models.Quote, expectedRevision int64) error
	ReplaceLines(ctx context.Context, quoteID uuid.UUID, lines []models.QuoteLine) error
	InsertAudit(ctx context.Context, entry *models.QuotePromotion) error
	ListAudit(ctx context.Context, quoteID uuid.UUID) ([]models.QuotePromotion, error)
	ListDraftIDsWithPromotion(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error)
}

// ListFilter scopes quote listings to a patient, a clinic inbox or everything.
type ListFilter struct {
	PatientID     *uuid.UUID
	ClinicID      *uuid.UUID
	Status        *enums.QuoteStatus
	ExcludeDrafts bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type promotionResolver interface {
	Resolve(ctx context.Context, identifier string, clinicID uuid.UUID, treatmentCodes []string, now time.Time) (*promotions.Resolution, error)
	ResolveByID(ctx context.Context, id uuid.UUID, clinicID uuid.UUID, treatmentCodes []string, now time.Time) (*promotions.Resolution, error)
}

type packageCatalog interface {
	Get(ctx context.Context, id uuid.UUID) (*models.CatalogPackage, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}
