package quotes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	"github.com/angelmondragon/smilequote-backend/internal/promotions"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox/payloads"
)

const (
	opApply      = "apply"
	opRevalidate = "revalidate"
)

// priced is the server-side pricing of a quote's current lines.
type priced struct {
	summary   pricing.Summary
	promotion *models.Promotion
	// revokeReason is set when the applied promotion no longer resolves.
	revokeReason string
}

func (s *service) ApplyPromotion(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, identifier string, expectedRevision *int64) (*Result, error) {
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}

	resolution, err := s.resolver.Resolve(ctx, identifier, quote.ClinicID, treatmentCodes(quote.Lines), s.clock())
	if err != nil {
		return nil, err
	}
	if !resolution.IsValid {
		s.metrics.IncPromotionOutcome(opApply, string(resolution.Reason()))
		logCtx := s.logg.WithFields(s.logCtx(ctx, actor, quote), map[string]any{
			"promo_identifier": identifier,
			"reason":           resolution.Reason(),
		})
		s.logg.Info(logCtx, "promotion rejected")
		return nil, resolution.Err()
	}

	promo := resolution.Promotion
	summary := pricing.Summarize(toPricingLines(quote.Lines), promotions.RuleFor(promo))
	if quote.HasPromotion() && *quote.AppliedPromotionID == promo.ID && TotalsOf(quote) == totalsOfSummary(summary) {
		s.metrics.IncPromotionOutcome(opApply, "unchanged")
		return &Result{Quote: quote, Promotion: promo}, nil
	}

	expected := quote.Revision
	ch := change{}
	var previousID *uuid.UUID
	if quote.HasPromotion() && *quote.AppliedPromotionID != promo.ID {
		prev := *quote.AppliedPromotionID
		previousID = &prev
		ch.audits = append(ch.audits, auditEntry(&actor, quote, prev, derefString(quote.PromoCode), enums.QuotePromotionRemoved))
	}

	promoID := promo.ID
	code := promo.Code
	quote.AppliedPromotionID = &promoID
	quote.PromoCode = &code
	setTotals(quote, summary)

	ch.audits = append(ch.audits, auditEntry(&actor, quote, promo.ID, promo.Code, enums.QuotePromotionApplied))
	ch.events = append(ch.events, outbox.DomainEvent{
		EventType:     enums.EventPromotionApplied,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Actor:         actorRef(&actor),
		OccurredAt:    s.clock().UTC(),
		Data: payloads.PromotionAppliedEvent{
			QuoteID:             quote.ID,
			PromotionID:         promo.ID,
			Code:                promo.Code,
			SubtotalCents:       quote.SubtotalCents,
			DiscountCents:       quote.DiscountCents,
			TotalCents:          quote.TotalCents,
			PreviousPromotionID: previousID,
		},
	})
	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return nil, err
	}

	s.metrics.IncPromotionOutcome(opApply, "applied")
	s.logg.Info(s.logg.WithField(s.logCtx(ctx, actor, quote), "promotion_id", promo.ID.String()), "promotion applied")
	return &Result{Quote: quote, Promotion: promo}, nil
}

func (s *service) RemovePromotion(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, expectedRevision *int64) (*Result, error) {
	quote, err := s.loadForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	if !quote.HasPromotion() {
		return &Result{Quote: quote}, nil
	}
	if err := requireDraft(quote); err != nil {
		return nil, err
	}

	expected := quote.Revision
	promoID := *quote.AppliedPromotionID
	code := derefString(quote.PromoCode)
	ch := change{
		audits: []models.QuotePromotion{auditEntry(&actor, quote, promoID, code, enums.QuotePromotionRemoved)},
	}
	quote.AppliedPromotionID = nil
	quote.PromoCode = nil
	setTotals(quote, pricing.Summarize(toPricingLines(quote.Lines), nil))
	ch.events = append(ch.events, s.promotionRemovedEvent(&actor, quote, promoID, code, enums.QuotePromotionRemoved, ""))

	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logCtx(ctx, actor, quote), "promotion_id", promoID.String()), "promotion removed")
	return &Result{Quote: quote}, nil
}

// RevokePromotionFromDrafts detaches promotionID from every draft that still
// carries it and no longer resolves. It returns how many drafts changed.
func (s *service) RevokePromotionFromDrafts(ctx context.Context, promotionID uuid.UUID) (int, error) {
	ids, err := s.repo.ListDraftIDsWithPromotion(ctx, promotionID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drafts with promotion")
	}
	var (
		revoked int
		errs    error
	)
	for _, id := range ids {
		changed, err := s.revokeFromDraft(ctx, id, promotionID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("quote %s: %w", id, err))
			continue
		}
		if changed {
			revoked++
		}
	}
	return revoked, errs
}

func (s *service) revokeFromDraft(ctx context.Context, quoteID, promotionID uuid.UUID) (bool, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if quote.Status != enums.QuoteStatusDraft || !quote.HasPromotion() || *quote.AppliedPromotionID != promotionID {
		return false, nil
	}
	expected := quote.Revision
	result := &Result{Quote: quote}
	ch := change{}
	if err := s.reprice(ctx, nil, quote, &ch, result); err != nil {
		return false, err
	}
	if quote.HasPromotion() {
		return false, nil
	}
	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return false, err
	}
	return true, nil
}

// price derives totals from the lines and re-resolves the applied promotion
// from trusted storage. It never mutates quote.
func (s *service) price(ctx context.Context, quote *models.Quote) (*priced, error) {
	lines := toPricingLines(quote.Lines)
	if !quote.HasPromotion() {
		return &priced{summary: pricing.Summarize(lines, nil)}, nil
	}
	resolution, err := s.resolver.ResolveByID(ctx, *quote.AppliedPromotionID, quote.ClinicID, treatmentCodes(quote.Lines), s.clock())
	if err != nil {
		return nil, err
	}
	if !resolution.IsValid {
		s.metrics.IncPromotionOutcome(opRevalidate, string(resolution.Reason()))
		return &priced{
			summary:      pricing.Summarize(lines, nil),
			revokeReason: string(resolution.Reason()),
		}, nil
	}
	return &priced{
		summary:   pricing.Summarize(lines, promotions.RuleFor(resolution.Promotion)),
		promotion: resolution.Promotion,
	}, nil
}

// reprice prices quote and writes the outcome onto it. A promotion that
// stopped resolving is detached, audited as revoked and reported as a warning.
func (s *service) reprice(ctx context.Context, actor *pkgAuth.AuthContext, quote *models.Quote, ch *change, result *Result) error {
	p, err := s.price(ctx, quote)
	if err != nil {
		return err
	}
	s.applyPriced(actor, quote, p, ch, result)
	return nil
}

func (s *service) applyPriced(actor *pkgAuth.AuthContext, quote *models.Quote, p *priced, ch *change, result *Result) {
	if p.revokeReason != "" && quote.HasPromotion() {
		promoID := *quote.AppliedPromotionID
		code := derefString(quote.PromoCode)
		ch.audits = append(ch.audits, auditEntry(actor, quote, promoID, code, enums.QuotePromotionRevoked))
		quote.AppliedPromotionID = nil
		quote.PromoCode = nil
		setTotals(quote, p.summary)
		ch.events = append(ch.events, s.promotionRemovedEvent(actor, quote, promoID, code, enums.QuotePromotionRevoked, p.revokeReason))
		result.warn(enums.WarningPromotionRevoked)
		return
	}
	setTotals(quote, p.summary)
	if p.promotion != nil {
		result.Promotion = p.promotion
	}
}

func (s *service) promotionRemovedEvent(actor *pkgAuth.AuthContext, quote *models.Quote, promoID uuid.UUID, code string, action enums.QuotePromotionAction, reason string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventPromotionRemoved,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Actor:         actorRef(actor),
		OccurredAt:    s.clock().UTC(),
		Data: payloads.PromotionRemovedEvent{
			QuoteID:     quote.ID,
			PromotionID: promoID,
			Code:        code,
			Action:      action,
			Reason:      reason,
			TotalCents:  quote.TotalCents,
		},
	}
}

func (s *service) statusChangedEvent(actor *pkgAuth.AuthContext, quote *models.Quote, from enums.QuoteStatus) outbox.DomainEvent {
	now := s.clock().UTC()
	return outbox.DomainEvent{
		EventType:     enums.EventQuoteStatusChanged,
		AggregateType: enums.AggregateQuote,
		AggregateID:   quote.ID,
		Actor:         actorRef(actor),
		OccurredAt:    now,
		Data: payloads.QuoteStatusChangedEvent{
			QuoteID:   quote.ID,
			PatientID: quote.PatientID,
			ClinicID:  quote.ClinicID,
			From:      from,
			To:        quote.Status,
			ChangedAt: now,
		},
	}
}

// auditEntry snapshots the quote totals at the time of the promotion change.
func auditEntry(actor *pkgAuth.AuthContext, quote *models.Quote, promoID uuid.UUID, code string, action enums.QuotePromotionAction) models.QuotePromotion {
	entry := models.QuotePromotion{
		QuoteID:       quote.ID,
		PromotionID:   promoID,
		Code:          code,
		Action:        action,
		SubtotalCents: quote.SubtotalCents,
		DiscountCents: quote.DiscountCents,
	}
	if actor != nil && actor.UserID != uuid.Nil {
		id := actor.UserID
		entry.ActorUserID = &id
	}
	return entry
}

func actorRef(actor *pkgAuth.AuthContext) *outbox.ActorRef {
	if actor == nil || actor.UserID == uuid.Nil {
		return nil
	}
	return &outbox.ActorRef{
		UserID:   actor.UserID,
		ClinicID: actor.ClinicID,
		Role:     string(actor.Role),
	}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
