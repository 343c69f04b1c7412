package entity

import "time"

// ImportRequest is the input of the commit step. IncludeExtras and
// ForceImport are advisory: neither changes which items are accepted.
type ImportRequest struct {
	Items         []NormalizedBidItem   `json:"items"`
	Currency      CurrencyNormalization `json:"currency"`
	IncludeExtras bool                  `json:"includeExtras"`
	ForceImport   bool                  `json:"forceImport"`
}

// ImportResult is the terminal artifact of a run
type ImportResult struct {
	Success       bool                `json:"success"`
	ImportedCount int                 `json:"importedCount"`
	SkippedCount  int                 `json:"skippedCount"`
	TotalAmount   float64             `json:"totalAmount"`
	Currency      string              `json:"currency"`
	ForceImport   bool                `json:"forceImport"`
	Accepted      []NormalizedBidItem `json:"-"`
}

// BidSubmission is the persisted header of a committed import.
// A newer submission for the same tender and bidder supersedes older ones.
type BidSubmission struct {
	ID            string     `json:"id"`
	RunID         string     `json:"runId"`
	TenderID      string     `json:"tenderId"`
	BidderID      string     `json:"bidderId"`
	Currency      string     `json:"currency"`
	FxRate        float64    `json:"fxRate"`
	ImportedCount int        `json:"importedCount"`
	SkippedCount  int        `json:"skippedCount"`
	TotalAmount   float64    `json:"totalAmount"`
	ForceImport   bool       `json:"forceImport"`
	TablesVersion string     `json:"tablesVersion"`
	CreatedAt     time.Time  `json:"createdAt"`
	SupersededAt  *time.Time `json:"supersededAt,omitempty"`
}

// BidSubmissionItem is one accepted line of a committed submission
type BidSubmissionItem struct {
	ID                 int64   `json:"id"`
	SubmissionID       string  `json:"submissionId"`
	RowIndex           int     `json:"rowIndex"`
	ItemNumber         string  `json:"itemNumber"`
	Description        string  `json:"description"`
	BoqItemID          string  `json:"boqItemId,omitempty"`
	MatchType          string  `json:"matchType"`
	Quantity           float64 `json:"quantity"`
	UOM                string  `json:"uom"`
	UnitRate           float64 `json:"unitRate"`
	NormalizedUnitRate float64 `json:"normalizedUnitRate"`
	NormalizedAmount   float64 `json:"normalizedAmount"`
	IsComparable       bool    `json:"isComparable"`
}
