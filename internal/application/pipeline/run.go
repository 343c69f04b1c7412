// Package pipeline drives one bidder document through parsing, column
// mapping, BOQ matching, normalization, validation and commit.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
	"github.com/garyjia/bid-reconciler/internal/reconcile"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

// Config tunes a run
type Config struct {
	BaseCurrency string
	StageTimeout time.Duration
	Matcher      reconcile.MatcherConfig
	SampleRows   int // rows handed to the column mapper
}

// DefaultConfig returns the standard run settings
func DefaultConfig() Config {
	return Config{
		BaseCurrency: "SAR",
		StageTimeout: 30 * time.Second,
		Matcher:      reconcile.DefaultMatcherConfig(),
		SampleRows:   5,
	}
}

// Params identifies a run and the reference data it reconciles against
type Params struct {
	ID       string
	TenderID string
	BidderID string
	Master   []entity.MasterBoqItem
	Tables   *reference.Tables
	Config   Config
}

// Correction is one manual matching correction, in application order
type Correction struct {
	Kind      CorrectionKind `json:"kind"`
	ItemID    string         `json:"itemId"`
	BoqItemID string         `json:"boqItemId,omitempty"`
	AppliedAt time.Time      `json:"appliedAt"`
}

// MappingOutcome is the result of the mapping stage
type MappingOutcome struct {
	Mappings   []entity.ColumnMapping   `json:"mappings"`
	Validation entity.MappingValidation `json:"validation"`
}

// CommitOptions are the user's choices at commit time
type CommitOptions struct {
	ForceImport bool `json:"forceImport"`
}

// CommitRecord is what a successful commit hands to persistence
type CommitRecord struct {
	RunID         string
	TenderID      string
	BidderID      string
	Currency      entity.CurrencyNormalization
	TablesVersion string
	Result        entity.ImportResult
}

// PersistFunc stores a commit and returns the submission id. The run only
// becomes IMPORTED when it returns nil.
type PersistFunc func(ctx context.Context, record CommitRecord) (string, error)

// Run is a single in-memory import. All methods are safe for concurrent use;
// operations on one run are serialized.
type Run struct {
	mu sync.Mutex

	id       string
	tenderID string
	bidderID string
	cfg      Config
	tables   *reference.Tables
	master   []entity.MasterBoqItem

	mapper     *reconcile.ColumnMapper
	matcher    *reconcile.Matcher
	normalizer *reconcile.Normalizer
	machine    domainwf.StateMachine

	data      stageData
	createdAt time.Time
	updatedAt time.Time

	logger *zap.Logger
}

// NewRun creates a run in IDLE
func NewRun(p Params, logger *zap.Logger) *Run {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Tables == nil {
		p.Tables = reference.Default()
	}
	defaults := DefaultConfig()
	if p.Config.BaseCurrency == "" {
		p.Config.BaseCurrency = defaults.BaseCurrency
	}
	if p.Config.StageTimeout <= 0 {
		p.Config.StageTimeout = defaults.StageTimeout
	}
	if p.Config.SampleRows <= 0 {
		p.Config.SampleRows = defaults.SampleRows
	}
	if p.Config.Matcher.FuzzyThreshold == 0 && len(p.Config.Matcher.ExtraPrefixes) == 0 {
		p.Config.Matcher = defaults.Matcher
	}

	logger = logger.With(zap.String("run_id", p.ID))
	matcher := reconcile.NewMatcher(p.Master, p.Config.Matcher, logger)
	now := time.Now()

	r := &Run{
		id:         p.ID,
		tenderID:   p.TenderID,
		bidderID:   p.BidderID,
		cfg:        p.Config,
		tables:     p.Tables,
		master:     p.Master,
		mapper:     reconcile.NewColumnMapper(p.Tables),
		matcher:    matcher,
		normalizer: reconcile.NewNormalizer(p.Tables, matcher, logger),
		createdAt:  now,
		updatedAt:  now,
		logger:     logger,
	}
	r.machine = BuildRunStateMachine(domainwf.StateIdle, r.mappingValid)
	return r
}

// ID returns the run id
func (r *Run) ID() string { return r.id }

// Master returns the master BOQ the run reconciles against. The slice is
// shared and must not be modified.
func (r *Run) Master() []entity.MasterBoqItem { return r.master }

// TenderID returns the tender the run reconciles against
func (r *Run) TenderID() string { return r.tenderID }

// BidderID returns the bidder whose document is imported
func (r *Run) BidderID() string { return r.bidderID }

// State returns the current stage
func (r *Run) State() domainwf.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.machine.State()
}

// UpdatedAt returns the time of the last state change or correction
func (r *Run) UpdatedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

// MasterItem looks up a master BOQ item of the run's tender
func (r *Run) MasterItem(id string) (entity.MasterBoqItem, bool) {
	return r.matcher.MasterItem(id)
}

// Parse accepts the decoded sheet
func (r *Run) Parse(ctx context.Context, sheet entity.ParsedSheet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensure(domainwf.TriggerParse); err != nil {
		return err
	}
	if len(sheet.Columns) == 0 {
		return ErrEmptySheet
	}
	// item ids derive from row indices
	seen := make(map[int]bool, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if seen[row.RowIndex] {
			return fmt.Errorf("%w: %d", ErrDuplicateRow, row.RowIndex)
		}
		seen[row.RowIndex] = true
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.advance(ctx, domainwf.TriggerParse, &parsedStage{sheet: sheet}); err != nil {
		return err
	}

	r.logger.Info("Sheet parsed",
		zap.Int("columns", len(sheet.Columns)),
		zap.Int("rows", len(sheet.Rows)))
	return nil
}

// Map infers the column mapping, keeping explicit mappings untouched, and
// validates it. An invalid mapping still moves the run to MAPPED so it can
// be corrected; matching is refused until it is valid.
func (r *Run) Map(ctx context.Context, explicit []entity.ColumnMapping) (MappingOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensure(domainwf.TriggerMap); err != nil {
		return MappingOutcome{}, err
	}

	var parsed parsedStage
	switch d := r.data.(type) {
	case *parsedStage:
		parsed = *d
	case *mappedStage:
		parsed = d.parsedStage
	}

	var next *mappedStage
	err := r.runStage(ctx, domainwf.TriggerMap, func(ctx context.Context) error {
		samples := parsed.sheet.Rows
		if len(samples) > r.cfg.SampleRows {
			samples = samples[:r.cfg.SampleRows]
		}
		mappings := r.mapper.AutoMapWith(parsed.sheet.Columns, samples, explicit)
		next = &mappedStage{
			parsedStage: parsed,
			mappings:    mappings,
			validation:  r.mapper.ValidateMappings(mappings),
		}
		return nil
	})
	if err != nil {
		return MappingOutcome{}, err
	}

	if err := r.advance(ctx, domainwf.TriggerMap, next); err != nil {
		return MappingOutcome{}, err
	}

	r.logger.Info("Columns mapped",
		zap.Bool("valid", next.validation.IsValid),
		zap.Int("errors", len(next.validation.Errors)),
		zap.Int("warnings", len(next.validation.Warnings)))

	return MappingOutcome{Mappings: next.mappings, Validation: next.validation}, nil
}

// Match classifies every row against the master BOQ. Calling it again in
// MATCHED returns the current result, corrections included.
func (r *Run) Match(ctx context.Context) (entity.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.data.(*matchedStage); ok && r.machine.State() == domainwf.StateMatched {
		return d.match, nil
	}
	if err := r.ensure(domainwf.TriggerMatch); err != nil {
		return entity.MatchResult{}, err
	}

	mapped := r.data.(*mappedStage)
	if !mapped.validation.IsValid {
		return entity.MatchResult{}, &MappingError{Validation: mapped.validation}
	}

	var result entity.MatchResult
	err := r.runStage(ctx, domainwf.TriggerMatch, func(ctx context.Context) error {
		var err error
		result, err = r.matcher.Match(ctx, mapped.sheet.Rows, mapped.mappings)
		return err
	})
	if err != nil {
		return entity.MatchResult{}, err
	}

	if err := r.advance(ctx, domainwf.TriggerMatch, &matchedStage{mappedStage: *mapped, match: result}); err != nil {
		return entity.MatchResult{}, err
	}

	r.logger.Info("Rows matched",
		zap.Int("exact", result.ExactMatches),
		zap.Int("fuzzy", result.FuzzyMatches),
		zap.Int("extra", result.ExtraItems),
		zap.Int("unmatched", result.UnmatchedItems))
	return result, nil
}

// AssignToBoq links a matched row to a master BOQ item
func (r *Run) AssignToBoq(ctx context.Context, itemID, boqItemID string) (entity.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched, err := r.correctable(ctx, CorrectionAssignToBoq)
	if err != nil {
		return entity.MatchResult{}, err
	}

	boqItem, ok := r.matcher.MasterItem(boqItemID)
	if !ok {
		return entity.MatchResult{}, fmt.Errorf("%w: %s", reconcile.ErrBoqItemNotFound, boqItemID)
	}

	updated, err := reconcile.AssignToBoq(matched.match, itemID, boqItem)
	if err != nil {
		return entity.MatchResult{}, err
	}

	r.applyCorrection(matched, updated, Correction{Kind: CorrectionAssignToBoq, ItemID: itemID, BoqItemID: boqItemID})
	return updated, nil
}

// MarkAsExtra accepts a row as an extra not present in the BOQ
func (r *Run) MarkAsExtra(ctx context.Context, itemID string) (entity.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched, err := r.correctable(ctx, CorrectionMarkAsExtra)
	if err != nil {
		return entity.MatchResult{}, err
	}

	updated, err := reconcile.MarkAsExtra(matched.match, itemID)
	if err != nil {
		return entity.MatchResult{}, err
	}

	r.applyCorrection(matched, updated, Correction{Kind: CorrectionMarkAsExtra, ItemID: itemID})
	return updated, nil
}

// Normalize converts the matched rows to base currency and master units
func (r *Run) Normalize(ctx context.Context) (entity.NormalizationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.data.(*normalizedStage); ok && r.machine.State() == domainwf.StateNormalized {
		return d.normalization, nil
	}
	if err := r.ensure(domainwf.TriggerNormalize); err != nil {
		return entity.NormalizationResult{}, err
	}

	matched := r.data.(*matchedStage)

	var result entity.NormalizationResult
	err := r.runStage(ctx, domainwf.TriggerNormalize, func(ctx context.Context) error {
		result = r.normalizer.Normalize(matched.match.Items, r.cfg.BaseCurrency)
		return nil
	})
	if err != nil {
		return entity.NormalizationResult{}, err
	}

	if err := r.advance(ctx, domainwf.TriggerNormalize, &normalizedStage{matchedStage: *matched, normalization: result}); err != nil {
		return entity.NormalizationResult{}, err
	}

	r.logger.Info("Items normalized",
		zap.String("currency", result.Currency.DetectedCurrency),
		zap.Float64("fx_rate", result.Currency.FxRate),
		zap.Int("uom_mismatches", len(result.UomMismatches)))
	return result, nil
}

// Validate produces the issue list and verdict
func (r *Run) Validate(ctx context.Context) (entity.ValidationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.data.(*validatedStage); ok && r.machine.State() == domainwf.StateValidated {
		return d.verdict, nil
	}
	if err := r.ensure(domainwf.TriggerValidate); err != nil {
		return entity.ValidationResult{}, err
	}

	normalized := r.data.(*normalizedStage)

	var verdict entity.ValidationResult
	err := r.runStage(ctx, domainwf.TriggerValidate, func(ctx context.Context) error {
		verdict = reconcile.Validate(normalized.normalization.Items)
		return nil
	})
	if err != nil {
		return entity.ValidationResult{}, err
	}

	if err := r.advance(ctx, domainwf.TriggerValidate, &validatedStage{normalizedStage: *normalized, verdict: verdict}); err != nil {
		return entity.ValidationResult{}, err
	}

	r.logger.Info("Items validated",
		zap.Bool("valid", verdict.IsValid),
		zap.Int("valid_items", verdict.ValidItemCount),
		zap.Int("warnings", verdict.WarningCount),
		zap.Int("errors", verdict.ErrorCount))
	return verdict, nil
}

// Commit executes the import and persists it. Blocking errors always fail;
// warnings fail unless opts.ForceImport is set. A commit that would accept
// no item is refused. The run stays VALIDATED when the commit fails.
func (r *Run) Commit(ctx context.Context, opts CommitOptions, persist PersistFunc) (entity.ImportResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensure(domainwf.TriggerCommit); err != nil {
		return entity.ImportResult{}, err
	}

	validated := r.data.(*validatedStage)
	verdict := validated.verdict
	if !verdict.CanCommit() {
		return entity.ImportResult{}, fmt.Errorf("%w: %d item errors", ErrBlockingValidation, verdict.ErrorCount)
	}
	if verdict.HasWarnings() && !opts.ForceImport {
		return entity.ImportResult{}, fmt.Errorf("%w: %d warnings", ErrWarningsUnacknowledged, verdict.WarningCount)
	}

	result := reconcile.Execute(entity.ImportRequest{
		Items:       validated.normalization.Items,
		Currency:    validated.normalization.Currency,
		ForceImport: opts.ForceImport,
	})
	if !result.Success {
		r.logger.Error("Commit refused, no item qualifies for import",
			zap.Int("skipped", result.SkippedCount))
		return entity.ImportResult{}, fmt.Errorf("%w: %d items skipped", ErrNothingToImport, result.SkippedCount)
	}

	var submissionID string
	if persist != nil {
		record := CommitRecord{
			RunID:         r.id,
			TenderID:      r.tenderID,
			BidderID:      r.bidderID,
			Currency:      validated.normalization.Currency,
			TablesVersion: validated.normalization.TablesVersion,
			Result:        result,
		}
		err := r.runStage(ctx, domainwf.TriggerCommit, func(ctx context.Context) error {
			var err error
			submissionID, err = persist(ctx, record)
			return err
		})
		if err != nil {
			r.logger.Error("Commit failed, run stays validated", zap.Error(err))
			return entity.ImportResult{}, fmt.Errorf("failed to persist import: %w", err)
		}
	}

	next := &importedStage{validatedStage: *validated, result: result, submissionID: submissionID}
	if err := r.advance(ctx, domainwf.TriggerCommit, next); err != nil {
		return entity.ImportResult{}, err
	}

	r.logger.Info("Import committed",
		zap.String("submission_id", submissionID),
		zap.Int("imported", result.ImportedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Float64("total_amount", result.TotalAmount),
		zap.Bool("force_import", result.ForceImport))
	return result, nil
}

// Rewind moves the run back to an earlier stage, discarding everything
// produced after it. The discarded stages must be run again.
func (r *Run) Rewind(ctx context.Context, target domainwf.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpen(false); err != nil {
		return err
	}

	current := r.machine.State()
	if !target.Before(current) {
		return r.orderViolation(fmt.Sprintf("rewind to %s", target))
	}

	if err := r.advance(ctx, domainwf.RewindTrigger(target), truncate(r.data, target)); err != nil {
		return err
	}

	r.logger.Info("Run rewound",
		zap.String("from", current.String()),
		zap.String("to", target.String()))
	return nil
}

// Cancel discards all accumulated state and closes the run
func (r *Run) Cancel(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpen(false); err != nil {
		return err
	}

	from := r.machine.State()
	if err := r.advance(ctx, domainwf.TriggerCancel, nil); err != nil {
		return err
	}

	r.logger.Info("Run cancelled", zap.String("from", from.String()))
	return nil
}

// Snapshot returns a copy of everything the run holds
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Snapshot{
		ID:                r.id,
		TenderID:          r.tenderID,
		BidderID:          r.bidderID,
		State:             r.machine.State(),
		PermittedTriggers: r.machine.PermittedTriggers(),
		History:           r.machine.History(),
		CreatedAt:         r.createdAt,
		UpdatedAt:         r.updatedAt,
	}
	s.fill(r.data)
	return s
}

// ensure checks the run is open and trigger is allowed in the current state
func (r *Run) ensure(trigger domainwf.Trigger) error {
	if err := r.ensureOpen(trigger == domainwf.TriggerCommit); err != nil {
		return err
	}
	if !r.machine.CanFire(trigger) {
		return r.orderViolation(strings.ToLower(trigger.String()))
	}
	return nil
}

func (r *Run) ensureOpen(committing bool) error {
	switch r.machine.State() {
	case domainwf.StateImported:
		if committing {
			return ErrAlreadyCommitted
		}
		return ErrRunClosed
	case domainwf.StateCancelled:
		return ErrRunClosed
	}
	return nil
}

func (r *Run) orderViolation(op string) error {
	state := r.machine.State()
	r.logger.Error("Stage order violation",
		zap.String("operation", op),
		zap.String("state", state.String()))
	return fmt.Errorf("%w: cannot %s in state %s", ErrStageOrder, op, state)
}

// correctable returns the matched stage if manual corrections are allowed
func (r *Run) correctable(ctx context.Context, kind CorrectionKind) (*matchedStage, error) {
	if err := r.ensureOpen(false); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state := r.machine.State()
	matched, ok := r.data.(*matchedStage)
	if state != domainwf.StateMatched || !ok {
		if domainwf.StateMatched.Before(state) {
			return nil, r.orderViolation(string(kind) + " after normalization")
		}
		return nil, r.orderViolation(string(kind))
	}
	return matched, nil
}

func (r *Run) applyCorrection(matched *matchedStage, updated entity.MatchResult, c Correction) {
	c.AppliedAt = time.Now()
	matched.match = updated
	matched.corrections = append(matched.corrections, c)
	r.updatedAt = c.AppliedAt

	r.logger.Info("Correction applied",
		zap.String("kind", string(c.Kind)),
		zap.String("item_id", c.ItemID),
		zap.String("boq_item_id", c.BoqItemID))
}

// runStage runs fn under the per-stage deadline
func (r *Run) runStage(ctx context.Context, trigger domainwf.Trigger, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stageCtx, cancel := context.WithTimeout(ctx, r.cfg.StageTimeout)
	defer cancel()

	err := fn(stageCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("Stage timed out",
			zap.String("stage", trigger.String()),
			zap.Duration("timeout", r.cfg.StageTimeout))
		return fmt.Errorf("%w: %s: %w", ErrStageTimeout, strings.ToLower(trigger.String()), err)
	}
	return err
}

// advance fires trigger and, on success, installs next as the run's data
func (r *Run) advance(ctx context.Context, trigger domainwf.Trigger, next stageData) error {
	if err := r.machine.Fire(ctx, trigger); err != nil {
		if errors.Is(err, domainwf.ErrGuardFailed) {
			if mapped, ok := r.data.(*mappedStage); ok {
				return &MappingError{Validation: mapped.validation}
			}
		}
		return fmt.Errorf("%w: %w", ErrStageOrder, err)
	}
	r.data = next
	r.updatedAt = time.Now()
	return nil
}

// mappingValid guards MATCH. It runs inside Fire, with r.mu already held.
func (r *Run) mappingValid(context.Context) bool {
	mapped, ok := r.data.(*mappedStage)
	return ok && mapped.validation.IsValid
}
