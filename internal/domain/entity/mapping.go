package entity

// FieldKind is a canonical bid-line field a spreadsheet column can map to
type FieldKind string

const (
	FieldNone        FieldKind = ""
	FieldItemNumber  FieldKind = "item_number"
	FieldDescription FieldKind = "description"
	FieldQuantity    FieldKind = "quantity"
	FieldUOM         FieldKind = "uom"
	FieldUnitRate    FieldKind = "unit_rate"
	FieldAmount      FieldKind = "amount"
	FieldCurrency    FieldKind = "currency"
	FieldIgnore      FieldKind = "ignore"
)

var validFields = map[FieldKind]bool{
	FieldNone:        true,
	FieldItemNumber:  true,
	FieldDescription: true,
	FieldQuantity:    true,
	FieldUOM:         true,
	FieldUnitRate:    true,
	FieldAmount:      true,
	FieldCurrency:    true,
	FieldIgnore:      true,
}

// IsValid returns true if the field is a known target (including none)
func (f FieldKind) IsValid() bool {
	return validFields[f]
}

// IsMapped returns true for fields that carry data (not none, not ignore)
func (f FieldKind) IsMapped() bool {
	return f != FieldNone && f != FieldIgnore
}

// ColumnMapping binds a spreadsheet column to a target field.
// TargetField is FieldNone when the column is unmapped.
type ColumnMapping struct {
	ExcelColumn ColumnID  `json:"excelColumn"`
	TargetField FieldKind `json:"targetField,omitempty"`
}

// MappingValidation is the verdict on a full mapping set
type MappingValidation struct {
	IsValid         bool        `json:"isValid"`
	Errors          []string    `json:"errors"`
	Warnings        []string    `json:"warnings"`
	MissingRequired []FieldKind `json:"missingRequired"`
	DuplicateFields []FieldKind `json:"duplicateFields"`
}

// ColumnFor returns the column mapped to a field, if any
func ColumnFor(mappings []ColumnMapping, field FieldKind) (ColumnID, bool) {
	for _, m := range mappings {
		if m.TargetField == field {
			return m.ExcelColumn, true
		}
	}
	return "", false
}
