package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/application/dispatcher"
	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/application/port"
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/domain/event"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
	"github.com/garyjia/bid-reconciler/internal/reference"
	"github.com/garyjia/bid-reconciler/pkg/utils"
)

// ImportService owns the in-flight import runs and persists their commits
type ImportService interface {
	StartRun(ctx context.Context, tenderID, bidderID string) (pipeline.Snapshot, error)
	GetRun(ctx context.Context, runID string) (pipeline.Snapshot, error)
	Parse(ctx context.Context, runID string, sheet entity.ParsedSheet) (pipeline.Snapshot, error)
	Map(ctx context.Context, runID string, explicit []entity.ColumnMapping) (pipeline.MappingOutcome, error)
	Match(ctx context.Context, runID string) (entity.MatchResult, error)
	AssignToBoq(ctx context.Context, runID, itemID, boqItemID string) (entity.MatchResult, error)
	MarkAsExtra(ctx context.Context, runID, itemID string) (entity.MatchResult, error)
	Normalize(ctx context.Context, runID string) (entity.NormalizationResult, error)
	Validate(ctx context.Context, runID string) (entity.ValidationResult, error)
	Commit(ctx context.Context, runID string, opts pipeline.CommitOptions) (CommitOutcome, error)
	Rewind(ctx context.Context, runID string, target domainwf.State) (pipeline.Snapshot, error)
	Cancel(ctx context.Context, runID string) error
	Report(ctx context.Context, runID string) (RunReport, error)

	GetSubmission(ctx context.Context, tenderID, bidderID string) (SubmissionView, error)
	ReplaceBoq(ctx context.Context, tenderID string, items []entity.MasterBoqItem) error

	// EvictClosed drops imported and cancelled runs idle for longer than
	// the retention period and returns how many were dropped
	EvictClosed(now time.Time) int
}

// CommitOutcome is the result of a successful commit
type CommitOutcome struct {
	entity.ImportResult
	SubmissionID string `json:"submissionId"`
}

// RunReport is the data behind the comparison report of a run
type RunReport struct {
	Snapshot pipeline.Snapshot
	Master   []entity.MasterBoqItem
}

// SubmissionView is a stored submission with its lines
type SubmissionView struct {
	Submission *entity.BidSubmission      `json:"submission"`
	Items      []entity.BidSubmissionItem `json:"items"`
}

type importServiceImpl struct {
	boqRepo        port.BoqRepository
	submissionRepo port.SubmissionRepository
	txManager      port.TransactionManager
	dispatcher     dispatcher.Dispatcher
	tables         *reference.Tables
	runConfig      pipeline.Config
	retention      time.Duration
	logger         *zap.Logger

	mu   sync.RWMutex
	runs map[string]*pipeline.Run

	boqMu sync.RWMutex
	boqs  map[string][]entity.MasterBoqItem
}

// Option configures the import service
type Option func(*importServiceImpl)

// WithDispatcher sets the dispatcher that receives run lifecycle events
func WithDispatcher(d dispatcher.Dispatcher) Option {
	return func(s *importServiceImpl) {
		s.dispatcher = d
	}
}

// WithTables sets the reference tables used by every run
func WithTables(t *reference.Tables) Option {
	return func(s *importServiceImpl) {
		s.tables = t
	}
}

// WithRunConfig sets the pipeline settings of new runs
func WithRunConfig(cfg pipeline.Config) Option {
	return func(s *importServiceImpl) {
		s.runConfig = cfg
	}
}

// WithRetention sets how long closed runs stay inspectable
func WithRetention(d time.Duration) Option {
	return func(s *importServiceImpl) {
		s.retention = d
	}
}

// NewImportService creates a new ImportService
func NewImportService(
	boqRepo port.BoqRepository,
	submissionRepo port.SubmissionRepository,
	txManager port.TransactionManager,
	logger *zap.Logger,
	opts ...Option,
) ImportService {
	s := &importServiceImpl{
		boqRepo:        boqRepo,
		submissionRepo: submissionRepo,
		txManager:      txManager,
		tables:         reference.Default(),
		runConfig:      pipeline.DefaultConfig(),
		retention:      15 * time.Minute,
		logger:         logger,
		runs:           make(map[string]*pipeline.Run),
		boqs:           make(map[string][]entity.MasterBoqItem),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// StartRun creates a run for one bidder document against the tender's BOQ
func (s *importServiceImpl) StartRun(ctx context.Context, tenderID, bidderID string) (pipeline.Snapshot, error) {
	tenderID, bidderID = strings.TrimSpace(tenderID), strings.TrimSpace(bidderID)
	if err := utils.ValidateIdentifier(tenderID); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("%w: tender: %v", ErrInvalidRequest, err)
	}
	if err := utils.ValidateIdentifier(bidderID); err != nil {
		return pipeline.Snapshot{}, fmt.Errorf("%w: bidder: %v", ErrInvalidRequest, err)
	}

	master, err := s.masterBoq(ctx, tenderID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}

	run := pipeline.NewRun(pipeline.Params{
		ID:       uuid.NewString(),
		TenderID: tenderID,
		BidderID: bidderID,
		Master:   master,
		Tables:   s.tables,
		Config:   s.runConfig,
	}, s.logger)

	s.mu.Lock()
	s.runs[run.ID()] = run
	s.mu.Unlock()

	s.logger.Info("Run started",
		zap.String("run_id", run.ID()),
		zap.String("tender_id", tenderID),
		zap.String("bidder_id", bidderID),
		zap.Int("boq_items", len(master)))

	s.emit(ctx, run, event.TypeRunStarted, map[string]interface{}{"boq_items": len(master)})
	return run.Snapshot(), nil
}

// GetRun returns a snapshot of a run
func (s *importServiceImpl) GetRun(ctx context.Context, runID string) (pipeline.Snapshot, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	return run.Snapshot(), nil
}

// Parse hands the decoded sheet to the run
func (s *importServiceImpl) Parse(ctx context.Context, runID string, sheet entity.ParsedSheet) (pipeline.Snapshot, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	if err := run.Parse(ctx, sheet); err != nil {
		return pipeline.Snapshot{}, err
	}

	s.stageCompleted(ctx, run, domainwf.TriggerParse, map[string]interface{}{"rows": len(sheet.Rows)})
	return run.Snapshot(), nil
}

// Map infers and validates the column mapping
func (s *importServiceImpl) Map(ctx context.Context, runID string, explicit []entity.ColumnMapping) (pipeline.MappingOutcome, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return pipeline.MappingOutcome{}, err
	}
	outcome, err := run.Map(ctx, explicit)
	if err != nil {
		return pipeline.MappingOutcome{}, err
	}

	s.stageCompleted(ctx, run, domainwf.TriggerMap, map[string]interface{}{"valid": outcome.Validation.IsValid})
	return outcome, nil
}

// Match classifies the run's rows against the BOQ
func (s *importServiceImpl) Match(ctx context.Context, runID string) (entity.MatchResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return entity.MatchResult{}, err
	}
	result, err := run.Match(ctx)
	if err != nil {
		return entity.MatchResult{}, err
	}

	s.stageCompleted(ctx, run, domainwf.TriggerMatch, map[string]interface{}{
		"exact":     result.ExactMatches,
		"fuzzy":     result.FuzzyMatches,
		"extra":     result.ExtraItems,
		"unmatched": result.UnmatchedItems,
	})
	return result, nil
}

// AssignToBoq applies a manual BOQ assignment
func (s *importServiceImpl) AssignToBoq(ctx context.Context, runID, itemID, boqItemID string) (entity.MatchResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return entity.MatchResult{}, err
	}
	result, err := run.AssignToBoq(ctx, itemID, boqItemID)
	if err != nil {
		return entity.MatchResult{}, err
	}

	s.emit(ctx, run, event.TypeCorrectionApplied, map[string]interface{}{
		"kind":        string(pipeline.CorrectionAssignToBoq),
		"item_id":     itemID,
		"boq_item_id": boqItemID,
	})
	return result, nil
}

// MarkAsExtra accepts a row as an extra
func (s *importServiceImpl) MarkAsExtra(ctx context.Context, runID, itemID string) (entity.MatchResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return entity.MatchResult{}, err
	}
	result, err := run.MarkAsExtra(ctx, itemID)
	if err != nil {
		return entity.MatchResult{}, err
	}

	s.emit(ctx, run, event.TypeCorrectionApplied, map[string]interface{}{
		"kind":    string(pipeline.CorrectionMarkAsExtra),
		"item_id": itemID,
	})
	return result, nil
}

// Normalize converts the run's items to base currency and master units
func (s *importServiceImpl) Normalize(ctx context.Context, runID string) (entity.NormalizationResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return entity.NormalizationResult{}, err
	}
	result, err := run.Normalize(ctx)
	if err != nil {
		return entity.NormalizationResult{}, err
	}

	s.stageCompleted(ctx, run, domainwf.TriggerNormalize, map[string]interface{}{
		"currency":       result.Currency.DetectedCurrency,
		"uom_mismatches": len(result.UomMismatches),
	})
	return result, nil
}

// Validate produces the run's verdict
func (s *importServiceImpl) Validate(ctx context.Context, runID string) (entity.ValidationResult, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return entity.ValidationResult{}, err
	}
	verdict, err := run.Validate(ctx)
	if err != nil {
		return entity.ValidationResult{}, err
	}

	s.stageCompleted(ctx, run, domainwf.TriggerValidate, map[string]interface{}{
		"errors":   verdict.ErrorCount,
		"warnings": verdict.WarningCount,
	})
	return verdict, nil
}

// Commit imports the run and stores the submission, superseding the
// bidder's previous one in the same transaction
func (s *importServiceImpl) Commit(ctx context.Context, runID string, opts pipeline.CommitOptions) (CommitOutcome, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return CommitOutcome{}, err
	}

	var submissionID string
	result, err := run.Commit(ctx, opts, func(ctx context.Context, record pipeline.CommitRecord) (string, error) {
		id, err := s.persist(ctx, record)
		submissionID = id
		return id, err
	})
	if err != nil {
		return CommitOutcome{}, err
	}

	s.emit(ctx, run, event.TypeImportCommitted, map[string]interface{}{
		"submission_id":  submissionID,
		"imported_count": result.ImportedCount,
		"skipped_count":  result.SkippedCount,
		"total_amount":   result.TotalAmount,
	})
	return CommitOutcome{ImportResult: result, SubmissionID: submissionID}, nil
}

// Rewind moves a run back to an earlier stage
func (s *importServiceImpl) Rewind(ctx context.Context, runID string, target domainwf.State) (pipeline.Snapshot, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return pipeline.Snapshot{}, err
	}
	if err := run.Rewind(ctx, target); err != nil {
		return pipeline.Snapshot{}, err
	}

	s.emit(ctx, run, event.TypeRunRewound, map[string]interface{}{"target": target.String()})
	return run.Snapshot(), nil
}

// Cancel discards a run
func (s *importServiceImpl) Cancel(ctx context.Context, runID string) error {
	run, err := s.lookup(runID)
	if err != nil {
		return err
	}
	if err := run.Cancel(ctx); err != nil {
		return err
	}

	s.emit(ctx, run, event.TypeRunCancelled, nil)
	return nil
}
// Report returns the run snapshot along with the BOQ the run was started on
// Report returns the run snapshot along with its tender's BOQ
func (s *importServiceImpl) Report(ctx context.Context, runID string) (RunReport, error) {
	run, err := s.lookup(runID)
	if err != nil {
		return RunReport{}, err
	}

	return RunReport{Snapshot: run.Snapshot(), Master: run.Master()}, nil
}

// GetSubmission returns the bidder's live submission and its lines
func (s *importServiceImpl) GetSubmission(ctx context.Context, tenderID, bidderID string) (SubmissionView, error) {
	submission, err := s.submissionRepo.GetActive(ctx, tenderID, bidderID)
	if err != nil {
		return SubmissionView{}, err
	}
	if submission == nil {
		return SubmissionView{}, fmt.Errorf("%w: tender %s bidder %s", ErrSubmissionNotFound, tenderID, bidderID)
	}

	items, err := s.submissionRepo.GetItems(ctx, submission.ID)
	if err != nil {
		return SubmissionView{}, err
	}
	return SubmissionView{Submission: submission, Items: items}, nil
}

// ReplaceBoq validates and stores a tender's master BOQ. Runs already in
// flight keep the BOQ they started with.
func (s *importServiceImpl) ReplaceBoq(ctx context.Context, tenderID string, items []entity.MasterBoqItem) error {
	tenderID = strings.TrimSpace(tenderID)
	if err := utils.ValidateIdentifier(tenderID); err != nil {
		return fmt.Errorf("%w: tender: %v", ErrInvalidBoq, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: no items", ErrInvalidBoq)
	}

	normalized := make([]entity.MasterBoqItem, len(items))
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		item.TenderID = tenderID
		item.ItemNumber = utils.SanitizeString(item.ItemNumber)
		item.Description = utils.SanitizeString(item.Description)
		item.UOM = strings.ToUpper(utils.SanitizeString(item.UOM))
		if item.ItemNumber == "" {
			return fmt.Errorf("%w: item %d has no item number", ErrInvalidBoq, i+1)
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if seen[item.ID] {
			return fmt.Errorf("%w: duplicate item id %s", ErrInvalidBoq, item.ID)
		}
		seen[item.ID] = true
		normalized[i] = item
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.boqRepo.ReplaceForTender(txCtx, tenderID, normalized)
	})
	if err != nil {
		return err
	}

	s.boqMu.Lock()
	s.boqs[tenderID] = normalized
	s.boqMu.Unlock()

	s.logger.Info("Master BOQ replaced", zap.String("tender_id", tenderID), zap.Int("items", len(normalized)))
	return nil
}

// EvictClosed drops closed runs past the retention period
func (s *importServiceImpl) EvictClosed(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, run := range s.runs {
		if !run.State().IsTerminal() {
			continue
		}
		if now.Sub(run.UpdatedAt()) < s.retention {
			continue
		}
		delete(s.runs, id)
		evicted++
	}

	if evicted > 0 {
		s.logger.Info("Closed runs evicted", zap.Int("count", evicted))
	}
	return evicted
}

func (s *importServiceImpl) lookup(runID string) (*pipeline.Run, error) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, runID)
	}
	return run, nil
}

// masterBoq returns the cached BOQ of a tender, loading it on first use.
// The returned slice is shared by runs and must not be modified.
func (s *importServiceImpl) masterBoq(ctx context.Context, tenderID string) ([]entity.MasterBoqItem, error) {
	s.boqMu.RLock()
	master, ok := s.boqs[tenderID]
	s.boqMu.RUnlock()
	if ok {
		return master, nil
	}

	master, err := s.boqRepo.ListByTender(ctx, tenderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load master BOQ: %w", err)
	}
	if len(master) == 0 {
		return nil, fmt.Errorf("%w: tender %s", ErrBoqNotFound, tenderID)
	}

	s.boqMu.Lock()
	s.boqs[tenderID] = master
	s.boqMu.Unlock()
	return master, nil
}

func (s *importServiceImpl) persist(ctx context.Context, record pipeline.CommitRecord) (string, error) {
	now := time.Now().UTC()
	submission := &entity.BidSubmission{
		ID:            uuid.NewString(),
		RunID:         record.RunID,
		TenderID:      record.TenderID,
		BidderID:      record.BidderID,
		Currency:      record.Result.Currency,
		FxRate:        record.Currency.FxRate,
		ImportedCount: record.Result.ImportedCount,
		SkippedCount:  record.Result.SkippedCount,
		TotalAmount:   record.Result.TotalAmount,
		ForceImport:   record.Result.ForceImport,
		TablesVersion: record.TablesVersion,
		CreatedAt:     now,
	}

	items := make([]entity.BidSubmissionItem, 0, len(record.Result.Accepted))
	for _, item := range record.Result.Accepted {
		items = append(items, entity.BidSubmissionItem{
			RowIndex:           item.RowIndex,
			ItemNumber:         item.ItemNumber,
			Description:        item.Description,
			BoqItemID:          item.BoqItemID,
			MatchType:          string(item.MatchType),
			Quantity:           item.Quantity,
			UOM:                item.UOM,
			UnitRate:           item.UnitRate,
			NormalizedUnitRate: item.NormalizedUnitRate,
			NormalizedAmount:   item.NormalizedAmount,
			IsComparable:       item.IsComparable,
		})
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		superseded, err := s.submissionRepo.SupersedeActive(txCtx, record.TenderID, record.BidderID, now)
		if err != nil {
			return err
		}
		if superseded > 0 {
			s.logger.Info("Previous submission superseded",
				zap.String("tender_id", record.TenderID),
				zap.String("bidder_id", record.BidderID))
		}
		return s.submissionRepo.Create(txCtx, submission, items)
	})
	if err != nil {
		return "", err
	}
	return submission.ID, nil
}

func (s *importServiceImpl) stageCompleted(ctx context.Context, run *pipeline.Run, stage domainwf.Trigger, payload map[string]interface{}) {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["stage"] = stage.String()
	s.emit(ctx, run, event.TypeStageCompleted, payload)
}

// emit notifies subscribers. Their failures are logged, never returned:
// the run has already changed.
func (s *importServiceImpl) emit(ctx context.Context, run *pipeline.Run, eventType event.Type, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}

	evt := event.NewEvent(eventType, run.ID(), run.TenderID(), run.BidderID(), run.State().String(), payload)
	if err := s.dispatcher.Dispatch(ctx, evt); err != nil {
		s.logger.Warn("Event delivery failed",
			zap.String("event_type", eventType.String()),
			zap.String("run_id", run.ID()),
			zap.Error(err))
	}
}
