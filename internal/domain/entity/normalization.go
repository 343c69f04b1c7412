package entity

// CurrencyNormalization describes the run-wide currency conversion.
// FxRate converts one unit of DetectedCurrency into BaseCurrency.
type CurrencyNormalization struct {
	DetectedCurrency string  `json:"detectedCurrency"`
	BaseCurrency     string  `json:"baseCurrency"`
	FxRate           float64 `json:"fxRate"`
	CanConvert       bool    `json:"canConvert"`
}

// UomMismatch records a unit difference between a bidder item and its master item
type UomMismatch struct {
	ItemID              string   `json:"itemId"`
	BidderUOM           string   `json:"bidderUom"`
	MasterUOM           string   `json:"masterUom"`
	ConversionFactor    *float64 `json:"conversionFactor,omitempty"`
	CanConvert          bool     `json:"canConvert"`
	AutoConvert         bool     `json:"autoConvert"`
	MarkAsNonComparable bool     `json:"markAsNonComparable"`
}

// NormalizedBidItem is a matched item expressed in base currency and master units
type NormalizedBidItem struct {
	MatchedItem
	NormalizedUnitRate float64 `json:"normalizedUnitRate"`
	NormalizedAmount   float64 `json:"normalizedAmount"`
	IsComparable       bool    `json:"isComparable"`
}

// NormalizationResult is the normalizer's output for a whole run
type NormalizationResult struct {
	Currency      CurrencyNormalization `json:"currency"`
	UomMismatches []UomMismatch         `json:"uomMismatches"`
	Items         []NormalizedBidItem   `json:"items"`
	TablesVersion string                `json:"tablesVersion"`
}
