package entity

// MatchType classifies a bidder row against the master BOQ
type MatchType string

const (
	MatchExact     MatchType = "exact"
	MatchFuzzy     MatchType = "fuzzy"
	MatchExtra     MatchType = "extra"
	MatchUnmatched MatchType = "unmatched"
)

// MatchedItem is one bidder row with its extracted values and match outcome.
// BoqItemID is empty when the row is not linked to a master item.
type MatchedItem struct {
	ID              string    `json:"id"`
	RowIndex        int       `json:"rowIndex"`
	ItemNumber      string    `json:"itemNumber"`
	Description     string    `json:"description"`
	Quantity        float64   `json:"quantity"`
	UOM             string    `json:"uom"`
	UnitRate        float64   `json:"unitRate"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency,omitempty"`
	MatchType       MatchType `json:"matchType"`
	BoqItemID       string    `json:"boqItemId,omitempty"`
	ConfidenceScore *int      `json:"confidenceScore,omitempty"`
	IsIncluded      bool      `json:"isIncluded"`
	ManuallyMatched bool      `json:"manuallyMatched"`
}

// IsExtra returns true if the item was admitted as a non-BOQ extra
func (m MatchedItem) IsExtra() bool {
	return m.MatchType == MatchExtra
}

// HasBoqItem returns true if the item is linked to a master BOQ item
func (m MatchedItem) HasBoqItem() bool {
	return m.BoqItemID != ""
}

// MatchResult holds the classified items, addressed by index, and tallies
type MatchResult struct {
	Items          []MatchedItem `json:"items"`
	ExactMatches   int           `json:"exactMatches"`
	FuzzyMatches   int           `json:"fuzzyMatches"`
	UnmatchedItems int           `json:"unmatchedItems"`
	ExtraItems     int           `json:"extraItems"`
}

// IndexOf returns the position of the item with the given ID, or -1
func (r MatchResult) IndexOf(itemID string) int {
	for i := range r.Items {
		if r.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}
