package quotes

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox/payloads"
)

const (
	stageRevalidate = "revalidate"
	stageSubmit     = "submit"
)

// RevalidateTotals re-derives the quote totals from its lines and the stored
// promotion and compares them with claimed. A nil claim checks the stored
// totals. Nothing is persisted.
func (s *service) RevalidateTotals(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, claimed *Totals) (*GuardResult, error) {
	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	claim := TotalsOf(quote)
	if claimed != nil {
		claim = *claimed
	}
	res, _, err := s.revalidate(ctx, quote, claim)
	if err != nil {
		return nil, err
	}
	if !res.Valid {
		s.metrics.IncTotalsMismatch(stageRevalidate)
		s.logMismatch(ctx, actor, quote, res, stageRevalidate)
	}
	return res, nil
}

// Submit moves a draft to submitted once the client's totals agree with the
// server. On disagreement the corrected quote is returned in the error
// details and the stored totals are refreshed if they had drifted.
func (s *service) Submit(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, claimed Totals, expectedRevision *int64) (*models.Quote, error) {
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	if len(quote.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quote has no treatments")
	}

	res, p, err := s.revalidate(ctx, quote, claimed)
	if err != nil {
		return nil, err
	}
	expected := quote.Revision

	if !res.Valid {
		s.metrics.IncTotalsMismatch(stageSubmit)
		s.logMismatch(ctx, actor, quote, res, stageSubmit)
		corrected := res.Corrected
		if TotalsOf(quote) != res.Server || res.RevokedPromotionID != nil {
			ch := change{}
			s.applyPriced(&actor, quote, p, &ch, &Result{Quote: quote})
			if err := s.commit(ctx, quote, expected, ch); err != nil {
				return nil, err
			}
			corrected = quote
		}
		return nil, pkgerrors.New(pkgerrors.CodeTotalsMismatch, "quote totals do not match server pricing").
			WithDetails(TotalsMismatch{Claimed: res.Claimed, Server: res.Server, Quote: corrected})
	}

	ch := change{}
	s.applyPriced(&actor, quote, p, &ch, &Result{Quote: quote})
	from := quote.Status
	now := s.clock().UTC()
	quote.Status = enums.QuoteStatusSubmitted
	quote.SubmittedAt = &now
	ch.events = append(ch.events,
		outbox.DomainEvent{
			EventType:     enums.EventQuoteSubmitted,
			AggregateType: enums.AggregateQuote,
			AggregateID:   quote.ID,
			Actor:         actorRef(&actor),
			OccurredAt:    now,
			Data: payloads.QuoteSubmittedEvent{
				QuoteID:       quote.ID,
				PatientID:     quote.PatientID,
				ClinicID:      quote.ClinicID,
				Currency:      quote.Currency,
				SubtotalCents: quote.SubtotalCents,
				DiscountCents: quote.DiscountCents,
				TotalCents:    quote.TotalCents,
				PromotionID:   quote.AppliedPromotionID,
				PromoCode:     quote.PromoCode,
				Revision:      expected + 1,
				SubmittedAt:   now,
			},
		},
		s.statusChangedEvent(&actor, quote, from),
	)
	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return nil, err
	}
	s.logg.Info(s.logCtx(ctx, actor, quote), "quote submitted")
	return quote, nil
}

// revalidate prices quote from trusted data and compares each component of
// the totals within the configured tolerance.
func (s *service) revalidate(ctx context.Context, quote *models.Quote, claimed Totals) (*GuardResult, *priced, error) {
	p, err := s.price(ctx, quote)
	if err != nil {
		return nil, nil, err
	}
	server := totalsOfSummary(p.summary)
	res := &GuardResult{
		Valid: pricing.WithinTolerance(claimed.SubtotalCents, server.SubtotalCents, s.tolerance) &&
			pricing.WithinTolerance(claimed.DiscountCents, server.DiscountCents, s.tolerance) &&
			pricing.WithinTolerance(claimed.TotalCents, server.TotalCents, s.tolerance),
		Claimed: claimed,
		Server:  server,
	}
	if p.revokeReason != "" {
		id := *quote.AppliedPromotionID
		res.RevokedPromotionID = &id
		res.Valid = false
	}

	corrected := *quote
	corrected.Lines = append([]models.QuoteLine(nil), quote.Lines...)
	setTotals(&corrected, p.summary)
	if p.revokeReason != "" {
		corrected.AppliedPromotionID = nil
		corrected.PromoCode = nil
	}
	res.Corrected = &corrected
	return res, p, nil
}

func (s *service) logMismatch(ctx context.Context, actor pkgAuth.AuthContext, quote *models.Quote, res *GuardResult, stage string) {
	logCtx := s.logg.WithFields(s.logCtx(ctx, actor, quote), map[string]any{
		"stage":            stage,
		"claimed_total":    res.Claimed.TotalCents,
		"server_total":     res.Server.TotalCents,
		"claimed_discount": res.Claimed.DiscountCents,
		"server_discount":  res.Server.DiscountCents,
	})
	s.logg.Warn(logCtx, "quote totals mismatch")
}
