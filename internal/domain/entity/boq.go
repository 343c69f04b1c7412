package entity

// MasterBoqItem is one contract line item of a tender's bill of quantities.
// It is reference data: the pipeline only reads it.
type MasterBoqItem struct {
	ID          string  `json:"id"`
	TenderID    string  `json:"tenderId,omitempty"`
	ItemNumber  string  `json:"itemNumber"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UOM         string  `json:"uom"`
}
