package entity

// Default non-BOQ item number prefixes that mark a row as an extra
var DefaultExtraPrefixes = []string{"EXT", "ADD"}

// Default fuzzy acceptance threshold (inclusive, 0-100)
const DefaultFuzzyThreshold = 60

// Validation field names used in issues
const (
	IssueFieldUnitRate = "unitRate"
	IssueFieldBoqItem  = "boqItemId"
	IssueFieldUOM      = "uom"
	IssueFieldQuantity = "quantity"
)
