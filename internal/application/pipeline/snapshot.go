package pipeline

import (
	"time"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
)

// Snapshot is a read-only view of a run. Fields of stages the run has not
// reached are left empty.
type Snapshot struct {
	ID                string                      `json:"id"`
	TenderID          string                      `json:"tenderId"`
	BidderID          string                      `json:"bidderId"`
	State             domainwf.State              `json:"state"`
	PermittedTriggers []domainwf.Trigger          `json:"permittedTriggers"`
	History           []domainwf.Transition       `json:"history"`
	CreatedAt         time.Time                   `json:"createdAt"`
	UpdatedAt         time.Time                   `json:"updatedAt"`
	Columns           []entity.ColumnID           `json:"columns,omitempty"`
	RowCount          int                         `json:"rowCount"`
	Mappings          []entity.ColumnMapping      `json:"mappings,omitempty"`
	MappingValidation *entity.MappingValidation   `json:"mappingValidation,omitempty"`
	Match             *entity.MatchResult         `json:"match,omitempty"`
	Corrections       []Correction                `json:"corrections,omitempty"`
	Normalization     *entity.NormalizationResult `json:"normalization,omitempty"`
	Validation        *entity.ValidationResult    `json:"validation,omitempty"`
	Import            *entity.ImportResult        `json:"import,omitempty"`
	SubmissionID      string                      `json:"submissionId,omitempty"`
}

func (s *Snapshot) fill(data stageData) {
	switch d := data.(type) {
	case *importedStage:
		result := d.result
		s.Import = &result
		s.SubmissionID = d.submissionID
		s.fill(&d.validatedStage)
	case *validatedStage:
		verdict := d.verdict
		s.Validation = &verdict
		s.fill(&d.normalizedStage)
	case *normalizedStage:
		normalization := d.normalization
		s.Normalization = &normalization
		s.fill(&d.matchedStage)
	case *matchedStage:
		match := d.match
		s.Match = &match
		s.Corrections = append([]Correction(nil), d.corrections...)
		s.fill(&d.mappedStage)
	case *mappedStage:
		validation := d.validation
		s.MappingValidation = &validation
		s.Mappings = append([]entity.ColumnMapping(nil), d.mappings...)
		s.fill(&d.parsedStage)
	case *parsedStage:
		s.Columns = append([]entity.ColumnID(nil), d.sheet.Columns...)
		s.RowCount = len(d.sheet.Rows)
	}
}
