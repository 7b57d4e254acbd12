package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox/payloads"
)

const defaultExpiryBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiringPromotionStore interface {
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Promotion, error)
	Deactivate(ctx context.Context, id uuid.UUID) (bool, error)
}

type draftRevoker interface {
	RevokePromotionFromDrafts(ctx context.Context, promotionID uuid.UUID) (int, error)
}

type eventEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type promotionCache interface {
	Invalidate(ctx context.Context, promo *models.Promotion)
}

type PromotionExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Promotions expiringPromotionStore
	Quotes     draftRevoker
	Outbox     eventEmitter
	Cache      promotionCache
	BatchSize  int
}

// NewPromotionExpiryJob builds the job that deactivates promotions past their
// end date and detaches them from open drafts.
func NewPromotionExpiryJob(params PromotionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Promotions == nil {
		return nil, fmt.Errorf("promotion store required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote revoker required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &promotionExpiryJob{
		logg:   params.Logger,
		db:     params.DB,
		promos: params.Promotions,
		quotes: params.Quotes,
		outbox: params.Outbox,
		cache:  params.Cache,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type promotionExpiryJob struct {
	logg   *logger.Logger
	db     txRunner
	promos expiringPromotionStore
	quotes draftRevoker
	outbox eventEmitter
	cache  promotionCache
	batch  int
	now    func() time.Time
}

func (j *promotionExpiryJob) Name() string { return "promotion-expiry" }

func (j *promotionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.promos.ListExpiredActive(ctx, now, j.batch)
	if err != nil {
		return fmt.Errorf("list expired promotions: %w", err)
	}

	var (
		errs    error
		revoked int
	)
	for i := range expired {
		count, err := j.expire(ctx, &expired[i])
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("promotion %s: %w", expired[i].ID, err))
			continue
		}
		revoked += count
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"promotions_expired": len(expired),
		"quotes_revoked":     revoked,
		"failures":           len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "promotion expiry sweep complete")
	return errs
}

func (j *promotionExpiryJob) expire(ctx context.Context, promo *models.Promotion) (int, error) {
	if _, err := j.promos.Deactivate(ctx, promo.ID); err != nil {
		return 0, fmt.Errorf("deactivate: %w", err)
	}
	promo.IsActive = false
	if j.cache != nil {
		j.cache.Invalidate(ctx, promo)
	}

	revoked, revokeErr := j.quotes.RevokePromotionFromDrafts(ctx, promo.ID)

	event := outbox.DomainEvent{
		EventType:     enums.EventPromotionExpired,
		AggregateType: enums.AggregatePromotion,
		AggregateID:   promo.ID,
		OccurredAt:    j.now().UTC(),
		Data: payloads.PromotionExpiredEvent{
			PromotionID:   promo.ID,
			Code:          promo.Code,
			Slug:          promo.Slug,
			EndDate:       promo.EndDate,
			RevokedQuotes: revoked,
		},
	}
	emitErr := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if emitErr != nil {
		emitErr = fmt.Errorf("emit expiry event: %w", emitErr)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"promotion_id":   promo.ID.String(),
		"promo_code":     promo.Code,
		"quotes_revoked": revoked,
	})
	j.logg.Info(logCtx, "promotion expired")
	return revoked, multierr.Combine(revokeErr, emitErr)
}
