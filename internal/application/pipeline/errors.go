package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/reconcile"
)

var (
	// ErrBlockingValidation is returned when the mapping or the validation
	// verdict carries errors that forbid going further
	ErrBlockingValidation = errors.New("blocking validation errors")

	// ErrWarningsUnacknowledged is returned by a commit over warnings without force
	ErrWarningsUnacknowledged = errors.New("validation warnings not acknowledged")

	// ErrRunNotFound is returned when a run id is unknown
	ErrRunNotFound = fmt.Errorf("run %w", reconcile.ErrNotFound)

	// ErrStageOrder is returned when an operation is invoked out of sequence
	ErrStageOrder = errors.New("operation not allowed at this stage")

	// ErrRunClosed is returned for any operation on an imported or cancelled run
	ErrRunClosed = errors.New("run is closed")

	// ErrAlreadyCommitted is returned when commit is retried after success
	ErrAlreadyCommitted = errors.New("run already committed")

	// ErrStageTimeout is returned when a stage exceeds its deadline
	ErrStageTimeout = errors.New("stage timed out")

	// ErrEmptySheet is returned when parsing a sheet without columns
	ErrEmptySheet = errors.New("sheet has no columns")

	// ErrDuplicateRow is returned when two sheet rows share a row index
	ErrDuplicateRow = errors.New("duplicate sheet row index")

	// ErrNothingToImport is returned by a commit that would accept no item
	ErrNothingToImport = errors.New("no item qualifies for import")
)

// MappingError carries the field-level messages of a failed mapping validation
type MappingError struct {
	Validation entity.MappingValidation
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("invalid column mapping: %s", strings.Join(e.Validation.Errors, "; "))
}

// Unwrap lets callers match the error with ErrBlockingValidation
func (e *MappingError) Unwrap() error {
	return ErrBlockingValidation
}
