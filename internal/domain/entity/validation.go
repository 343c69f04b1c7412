package entity

// Severity of a validation issue
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is a single finding on a normalized item
type ValidationIssue struct {
	ItemID     string   `json:"itemId"`
	Field      string   `json:"field"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	CanProceed bool     `json:"canProceed"`
}

// ValidationResult aggregates the issues of a run
type ValidationResult struct {
	IsValid        bool              `json:"isValid"`
	ValidItemCount int               `json:"validItemCount"`
	WarningCount   int               `json:"warningCount"`
	ErrorCount     int               `json:"errorCount"`
	Issues         []ValidationIssue `json:"issues"`
}

// CanCommit returns true when no blocking error was found
func (v ValidationResult) CanCommit() bool {
	return v.ErrorCount == 0
}

// HasWarnings returns true when at least one warning must be acknowledged
func (v ValidationResult) HasWarnings() bool {
	return v.WarningCount > 0
}
