package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/smilequote-backend/internal/pricing"
	pkgAuth "github.com/angelmondragon/smilequote-backend/pkg/auth"
	"github.com/angelmondragon/smilequote-backend/pkg/db/models"
	"github.com/angelmondragon/smilequote-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/smilequote-backend/pkg/errors"
	"github.com/angelmondragon/smilequote-backend/pkg/logger"
	"github.com/angelmondragon/smilequote-backend/pkg/metrics"
	"github.com/angelmondragon/smilequote-backend/pkg/outbox"
	"github.com/angelmondragon/smilequote-backend/pkg/pagination"
)

const maxLineQuantity = 32

// Service is the quote assembler: it owns every write to a quote and keeps
// the stored totals consistent with the lines and the applied promotion.
type Service interface {
	CreateDraft(ctx context.Context, actor pkgAuth.AuthContext, input CreateInput) (*Result, error)
	Get(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID) (*models.Quote, error)
	List(ctx context.Context, actor pkgAuth.AuthContext, status *enums.QuoteStatus, params pagination.Params) ([]models.Quote, string, error)

	AddLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, input LineInput, expectedRevision *int64) (*Result, error)
	UpdateLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID, lineID uuid.UUID, patch LinePatch, expectedRevision *int64) (*Result, error)
	RemoveLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID, lineID uuid.UUID, expectedRevision *int64) (*Result, error)

	ApplyPromotion(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, identifier string, expectedRevision *int64) (*Result, error)
	RemovePromotion(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, expectedRevision *int64) (*Result, error)

	InjectPackage(ctx context.Context, actor pkgAuth.AuthContext, quoteID, packageID uuid.UUID, expectedRevision *int64) (*Result, error)
	RemovePackage(ctx context.Context, actor pkgAuth.AuthContext, quoteID, packageID uuid.UUID, expectedRevision *int64) (*Result, error)

	RevalidateTotals(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, claimed *Totals) (*GuardResult, error)
	Submit(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, claimed Totals, expectedRevision *int64) (*models.Quote, error)
	TransitionStatus(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, next enums.QuoteStatus, expectedRevision *int64) (*models.Quote, error)

	RevokePromotionFromDrafts(ctx context.Context, promotionID uuid.UUID) (int, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	resolver  promotionResolver
	catalog   packageCatalog
	outbox    outboxPublisher
	metrics   *metrics.PricingMetrics
	logg      *logger.Logger
	currency  enums.Currency
	tolerance int64
	clock     func() time.Time
}

// ServiceParams wires the quote service dependencies.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Resolver  promotionResolver
	Catalog   packageCatalog
	Outbox    outboxPublisher
	Metrics   *metrics.PricingMetrics
	Logger    *logger.Logger
	Currency  enums.Currency
	Tolerance int64
	Clock     func() time.Time
}

// NewService builds the quote service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("quote repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("promotion resolver required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("package catalog required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tolerance < 0 {
		return nil, fmt.Errorf("totals tolerance must not be negative")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyGBP
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		resolver:  params.Resolver,
		catalog:   params.Catalog,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		currency:  currency,
		tolerance: params.Tolerance,
		clock:     clock,
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, actor pkgAuth.AuthContext, input CreateInput) (*Result, error) {
	var patientID uuid.UUID
	switch {
	case actor.Role == enums.RolePatient && actor.PatientID != nil:
		patientID = *actor.PatientID
	case actor.IsAdmin():
		if input.PatientID == nil || *input.PatientID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "patient_id is required")
		}
		patientID = *input.PatientID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only patients can start a quote")
	}
	if input.ClinicID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "clinic_id is required")
	}
	currency := input.Currency
	if currency == "" {
		currency = s.currency
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	lines := make([]models.QuoteLine, 0, len(input.Lines))
	for _, in := range input.Lines {
		line, err := newLine(in)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	quote := &models.Quote{
		ID:        uuid.New(),
		PatientID: patientID,
		ClinicID:  input.ClinicID,
		Status:    enums.QuoteStatusDraft,
		Currency:  currency,
		Lines:     lines,
	}
	setTotals(quote, pricing.Summarize(toPricingLines(quote.Lines), nil))

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Create(ctx, quote)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create quote")
	}

	result := &Result{Quote: quote}
	for _, packageID := range input.PackageIDs {
		injected, err := s.InjectPackage(ctx, actor, quote.ID, packageID, nil)
		if err != nil {
			return nil, err
		}
		result.Quote = injected.Quote
		if injected.Promotion != nil {
			result.Promotion = injected.Promotion
		}
		for _, w := range injected.Warnings {
			result.warn(w)
		}
	}

	if code := strings.TrimSpace(input.PromoCode); code != "" {
		applied, err := s.ApplyPromotion(ctx, actor, quote.ID, code, nil)
		if err != nil {
			return nil, err
		}
		result.Quote = applied.Quote
		result.Promotion = applied.Promotion
	}

	s.logg.Info(s.logCtx(ctx, actor, result.Quote), "quote draft created")
	return result, nil
}

func (s *service) Get(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID) (*models.Quote, error) {
	return s.load(ctx, actor, quoteID)
}

func (s *service) List(ctx context.Context, actor pkgAuth.AuthContext, status *enums.QuoteStatus, params pagination.Params) ([]models.Quote, string, error) {
	filter := ListFilter{Status: status}
	switch {
	case actor.IsAdmin():
	case actor.Role == enums.RolePatient && actor.PatientID != nil:
		filter.PatientID = actor.PatientID
	case actor.Role == enums.RoleClinic && actor.ClinicID != nil:
		filter.ClinicID = actor.ClinicID
		filter.ExcludeDrafts = true
	default:
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "quote access denied")
	}
	if status != nil && !status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}

	rows, next, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list quotes")
	}
	return rows, next, nil
}

func (s *service) AddLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, input LineInput, expectedRevision *int64) (*Result, error) {
	line, err := newLine(input)
	if err != nil {
		return nil, err
	}
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	quote.Lines = append(quote.Lines, line)
	return s.saveLines(ctx, actor, quote)
}

func (s *service) UpdateLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID, lineID uuid.UUID, patch LinePatch, expectedRevision *int64) (*Result, error) {
	if patch.Quantity == nil && patch.UnitPriceCents == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	idx, err := findLine(quote, lineID)
	if err != nil {
		return nil, err
	}
	line := &quote.Lines[idx]
	if line.IsLocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "package lines cannot be edited")
	}
	if patch.Quantity != nil {
		if err := validateQuantity(*patch.Quantity); err != nil {
			return nil, err
		}
		line.Quantity = *patch.Quantity
	}
	if patch.UnitPriceCents != nil {
		if *patch.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
		}
		line.UnitPriceCents = *patch.UnitPriceCents
	}
	return s.saveLines(ctx, actor, quote)
}

func (s *service) RemoveLine(ctx context.Context, actor pkgAuth.AuthContext, quoteID, lineID uuid.UUID, expectedRevision *int64) (*Result, error) {
	quote, err := s.loadDraftForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	idx, err := findLine(quote, lineID)
	if err != nil {
		return nil, err
	}
	if quote.Lines[idx].IsLocked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "package lines are removed with their package")
	}
	quote.Lines = append(quote.Lines[:idx:idx], quote.Lines[idx+1:]...)
	return s.saveLines(ctx, actor, quote)
}

func (s *service) TransitionStatus(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, next enums.QuoteStatus, expectedRevision *int64) (*models.Quote, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status")
	}
	if next == enums.QuoteStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "quotes are submitted through the submit endpoint")
	}
	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if err := checkRevision(quote, expectedRevision); err != nil {
		return nil, err
	}
	if !quote.Status.CanTransitionTo(next) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move quote from %s to %s", quote.Status, next))
	}
	if !canTransition(actor, quote, next) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to change this quote")
	}

	from := quote.Status
	expected := quote.Revision
	quote.Status = next
	ch := change{events: []outbox.DomainEvent{s.statusChangedEvent(&actor, quote, from)}}
	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(s.logCtx(ctx, actor, quote), "status", string(next)), "quote status changed")
	return quote, nil
}

// saveLines re-prices after a line mutation and persists lines and header.
func (s *service) saveLines(ctx context.Context, actor pkgAuth.AuthContext, quote *models.Quote) (*Result, error) {
	expected := quote.Revision
	result := &Result{Quote: quote}
	ch := change{linesChanged: true}
	if err := s.reprice(ctx, &actor, quote, &ch, result); err != nil {
		return nil, err
	}
	if err := s.commit(ctx, quote, expected, ch); err != nil {
		return nil, err
	}
	return result, nil
}

// change collects what a mutation writes besides the quote header.
type change struct {
	linesChanged bool
	audits       []models.QuotePromotion
	events       []outbox.DomainEvent
}

// commit persists the quote with a revision compare-and-swap, plus any line
// rewrite, audit rows and outbox events, in one transaction.
func (s *service) commit(ctx context.Context, quote *models.Quote, expectedRevision int64, ch change) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if ch.linesChanged {
			if err := repo.ReplaceLines(ctx, quote.ID, quote.Lines); err != nil {
				return err
			}
		}
		if err := repo.UpdateWithRevision(ctx, quote, expectedRevision); err != nil {
			return err
		}
		for i := range ch.audits {
			if err := repo.InsertAudit(ctx, &ch.audits[i]); err != nil {
				return err
			}
		}
		for _, event := range ch.events {
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRevisionConflict):
		return conflictError(expectedRevision)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist quote")
	}
}

func (s *service) load(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID) (*models.Quote, error) {
	quote, err := s.repo.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote")
	}
	if !canView(actor, quote) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "quote not found")
	}
	return quote, nil
}

func (s *service) loadForEdit(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, expectedRevision *int64) (*models.Quote, error) {
	quote, err := s.load(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, quote) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the patient can edit this quote")
	}
	if err := checkRevision(quote, expectedRevision); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *service) loadDraftForEdit(ctx context.Context, actor pkgAuth.AuthContext, quoteID uuid.UUID, expectedRevision *int64) (*models.Quote, error) {
	quote, err := s.loadForEdit(ctx, actor, quoteID, expectedRevision)
	if err != nil {
		return nil, err
	}
	if err := requireDraft(quote); err != nil {
		return nil, err
	}
	return quote, nil
}

func (s *service) logCtx(ctx context.Context, actor pkgAuth.AuthContext, quote *models.Quote) context.Context {
	ctx = s.logg.WithQuoteID(ctx, quote.ID.String())
	ctx = s.logg.WithClinicID(ctx, quote.ClinicID.String())
	if actor.UserID != uuid.Nil {
		ctx = s.logg.WithUserID(ctx, actor.UserID.String())
	}
	return ctx
}

func canView(actor pkgAuth.AuthContext, quote *models.Quote) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsPatientOf(quote.PatientID):
		return true
	case actor.IsClinicOf(quote.ClinicID):
		return quote.Status != enums.QuoteStatusDraft
	default:
		return false
	}
}

func canEdit(actor pkgAuth.AuthContext, quote *models.Quote) bool {
	return actor.IsAdmin() || actor.IsPatientOf(quote.PatientID)
}

func canTransition(actor pkgAuth.AuthContext, quote *models.Quote, next enums.QuoteStatus) bool {
	if actor.IsAdmin() {
		return true
	}
	switch next {
	case enums.QuoteStatusAccepted, enums.QuoteStatusCompleted:
		return actor.IsClinicOf(quote.ClinicID)
	case enums.QuoteStatusCancelled:
		return actor.IsPatientOf(quote.PatientID) || actor.IsClinicOf(quote.ClinicID)
	default:
		return false
	}
}

func requireDraft(quote *models.Quote) error {
	if quote.Status != enums.QuoteStatusDraft {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("quote is %s and can no longer be edited", quote.Status))
	}
	return nil
}

func checkRevision(quote *models.Quote, expected *int64) error {
	if expected == nil || *expected == quote.Revision {
		return nil
	}
	return conflictError(*expected).WithDetails(map[string]any{
		"expected_revision": *expected,
		"current_revision":  quote.Revision,
	})
}

func conflictError(expected int64) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeConflict, "quote was modified concurrently").
		WithDetails(map[string]any{"expected_revision": expected})
}

func newLine(input LineInput) (models.QuoteLine, error) {
	code := pricing.NormalizeCode(input.TreatmentCode)
	if code == "" {
		return models.QuoteLine{}, pkgerrors.New(pkgerrors.CodeValidation, "treatment code is required")
	}
	if err := validateQuantity(input.Quantity); err != nil {
		return models.QuoteLine{}, err
	}
	if input.UnitPriceCents < 0 {
		return models.QuoteLine{}, pkgerrors.New(pkgerrors.CodeValidation, "unit price must not be negative")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = code
	}
	return models.QuoteLine{
		TreatmentCode:  code,
		Name:           name,
		Category:       strings.TrimSpace(input.Category),
		UnitPriceCents: input.UnitPriceCents,
		Quantity:       input.Quantity,
	}, nil
}

func validateQuantity(qty int) error {
	if qty < 1 || qty > maxLineQuantity {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity must be between 1 and %d", maxLineQuantity))
	}
	return nil
}

func findLine(quote *models.Quote, lineID uuid.UUID) (int, error) {
	for i := range quote.Lines {
		if quote.Lines[i].ID == lineID {
			return i, nil
		}
	}
	return -1, pkgerrors.New(pkgerrors.CodeNotFound, "quote line not found")
}

func toPricingLines(lines []models.QuoteLine) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{
			TreatmentCode:  line.TreatmentCode,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
		})
	}
	return out
}

func treatmentCodes(lines []models.QuoteLine) []string {
	codes := make([]string, 0, len(lines))
	for _, line := range lines {
		codes = append(codes, line.TreatmentCode)
	}
	return codes
}

func setTotals(quote *models.Quote, summary pricing.Summary) {
	quote.SubtotalCents = summary.SubtotalCents
	quote.DiscountCents = summary.DiscountCents
	quote.TotalCents = summary.TotalCents
}

func totalsOfSummary(summary pricing.Summary) Totals {
	return Totals{
		SubtotalCents: summary.SubtotalCents,
		DiscountCents: summary.DiscountCents,
		TotalCents:    summary.TotalCents,
	}
}
