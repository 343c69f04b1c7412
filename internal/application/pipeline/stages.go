package pipeline

import (
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
)

// stageData is the accumulated output of a run. Each stage embeds its
// predecessor, so a later stage can never exist without the earlier ones.
type stageData interface {
	stage() domainwf.State
}

type parsedStage struct {
	sheet entity.ParsedSheet
}

type mappedStage struct {
	parsedStage
	mappings   []entity.ColumnMapping
	validation entity.MappingValidation
}

type matchedStage struct {
	mappedStage
	match       entity.MatchResult
	corrections []Correction
}

type normalizedStage struct {
	matchedStage
	normalization entity.NormalizationResult
}

type validatedStage struct {
	normalizedStage
	verdict entity.ValidationResult
}

type importedStage struct {
	validatedStage
	result       entity.ImportResult
	submissionID string
}

func (parsedStage) stage() domainwf.State     { return domainwf.StateParsed }
func (mappedStage) stage() domainwf.State     { return domainwf.StateMapped }
func (matchedStage) stage() domainwf.State    { return domainwf.StateMatched }
func (normalizedStage) stage() domainwf.State { return domainwf.StateNormalized }
func (validatedStage) stage() domainwf.State  { return domainwf.StateValidated }
func (importedStage) stage() domainwf.State   { return domainwf.StateImported }

// truncate drops everything produced after target. A nil result means the
// run is back to IDLE.
func truncate(data stageData, target domainwf.State) stageData {
	for data != nil && target.Before(data.stage()) {
		switch d := data.(type) {
		case *importedStage:
			data = &d.validatedStage
		case *validatedStage:
			data = &d.normalizedStage
		case *normalizedStage:
			data = &d.matchedStage
		case *matchedStage:
			data = &d.mappedStage
		case *mappedStage:
			data = &d.parsedStage
		case *parsedStage:
			data = nil
		}
	}
	return data
}

// CorrectionKind names a manual correction applied at the matching stage
type CorrectionKind string

const (
	CorrectionAssignToBoq CorrectionKind = "assign_to_boq"
	CorrectionMarkAsExtra CorrectionKind = "mark_as_extra"
)
