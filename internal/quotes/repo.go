package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/internal/repo"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

// ErrRevisionConflict is returned when a compare-and-swap update finds the
// quote at a different revision than the caller read.
var ErrRevisionConflict = errors.New("quote revision conflict")

type repository struct {
	repo.Base
}

// NewRepository builds a quotes repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	prepareLines(quote.ID, quote.Lines)
	return r.DB(ctx).Create(quote).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var quote models.Quote
	err := repo.PreloadOrdered(r.DB(ctx), "Lines").
		Where("id = ?", id).
		First(&quote).Error
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]models.Quote, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.DB(ctx).Model(&models.Quote{})
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.ClinicID != nil {
		query = query.Where("clinic_id = ?", *filter.ClinicID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ExcludeDrafts {
		query = query.Where("status <> ?", enums.QuoteStatusDraft)
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Quote
	err = repo.PreloadOrdered(query, "Lines").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		last := rows[limit-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	return rows, next, nil
}

// UpdateWithRevision writes the quote header only if the stored revision
// still equals expectedRevision, then bumps the revision by one.
func (r *repository) UpdateWithRevision(ctx context.Context, quote *models.Quote, expectedRevision int64) error {
	now := time.Now().UTC()
	next := expectedRevision + 1
	res := r.DB(ctx).
		Model(&models.Quote{}).
		Where("id = ? AND revision = ?", quote.ID, expectedRevision).
		Updates(map[string]any{
			"status":               quote.Status,
			"applied_promotion_id": quote.AppliedPromotionID,
			"promo_code":           quote.PromoCode,
			"subtotal_cents":       quote.SubtotalCents,
			"discount_cents":       quote.DiscountCents,
			"total_cents":          quote.TotalCents,
			"submitted_at":         quote.SubmittedAt,
			"revision":             next,
			"updated_at":           now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRevisionConflict
	}
	quote.Revision = next
	quote.UpdatedAt = now
	return nil
}

func (r *repository) ReplaceLines(ctx context.Context, quoteID uuid.UUID, lines []models.QuoteLine) error {
	if err := r.DB(ctx).Where("quote_id = ?", quoteID).Delete(&models.QuoteLine{}).Error; err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	prepareLines(quoteID, lines)
	return r.DB(ctx).Create(&lines).Error
}

func (r *repository) InsertAudit(ctx context.Context, entry *models.QuotePromotion) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.DB(ctx).Create(entry).Error
}

func (r *repository) ListAudit(ctx context.Context, quoteID uuid.UUID) ([]models.QuotePromotion, error) {
	var rows []models.QuotePromotion
	err := r.DB(ctx).
		Where("quote_id = ?", quoteID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListDraftIDsWithPromotion(ctx context.Context, promotionID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.DB(ctx).
		Model(&models.Quote{}).
		Where("applied_promotion_id = ? AND status = ?", promotionID, enums.QuoteStatusDraft).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func prepareLines(quoteID uuid.UUID, lines []models.QuoteLine) {
	for i := range lines {
		if lines[i].ID == uuid.Nil {
			lines[i].ID = uuid.New()
		}
		lines[i].QuoteID = quoteID
		lines[i].Position = i
	}
}
