package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

func targets(mappings []entity.ColumnMapping) []entity.FieldKind {
	out := make([]entity.FieldKind, len(mappings))
	for i, m := range mappings {
		out[i] = m.TargetField
	}
	return out
}

func TestAutoMap_StandardLayout(t *testing.T) {
	mapper := NewColumnMapper(reference.Default())
	sample := row(2, "1.1.1", "Excavation for foundations in ordinary soil", 100, "M3", 45.5, "SAR")

	mappings := mapper.AutoMap(standardColumns, []entity.ParsedRow{sample})

	assert.Equal(t, []entity.FieldKind{
		entity.FieldItemNumber,
		entity.FieldDescription,
		entity.FieldQuantity,
		entity.FieldUOM,
		entity.FieldUnitRate,
		entity.FieldAmount,
		entity.FieldCurrency,
	}, targets(mappings))
	assert.True(t, ValidateMappings(mappings).IsValid)
}

func TestAutoMap_DetectsShuffledColumns(t *testing.T) {
	mapper := NewColumnMapper(nil)
	columns := []entity.ColumnID{"A", "B", "C", "D", "E"}
	sample := entity.ParsedRow{RowIndex: 1, Cells: map[entity.ColumnID]entity.CellValue{
		"A": entity.StringCell("usd"),
		"B": entity.StringCell("CIV-12"),
		"C": entity.StringCell("Supply and install galvanized steel handrail"),
		"D": entity.NumberCell(120),
		"E": entity.NumberCell(1500),
	}}

	mappings := mapper.AutoMap(columns, []entity.ParsedRow{sample})

	assert.Equal(t, []entity.FieldKind{
		entity.FieldCurrency,
		entity.FieldItemNumber,
		entity.FieldDescription,
		entity.FieldUnitRate,
		entity.FieldAmount,
	}, targets(mappings))
}

func TestAutoMap_OnlyFirstSampleRowIsInspected(t *testing.T) {
	mapper := NewColumnMapper(nil)
	columns := []entity.ColumnID{"A", "B", "C", "D", "E", "F", "G", "H"}
	first := entity.ParsedRow{RowIndex: 1, Cells: map[entity.ColumnID]entity.CellValue{
		"H": entity.StringCell("note"),
	}}
	second := entity.ParsedRow{RowIndex: 2, Cells: map[entity.ColumnID]entity.CellValue{
		"H": entity.StringCell("SAR"),
	}}

	mappings := mapper.AutoMap(columns, []entity.ParsedRow{first, second})

	assert.Equal(t, entity.FieldNone, mappings[7].TargetField)
	assert.Equal(t, entity.FieldCurrency, mappings[6].TargetField)
}

func TestAutoMap_NoSampleRowsUsesPositionalDefaults(t *testing.T) {
	mapper := NewColumnMapper(nil)
	columns := []entity.ColumnID{"A", "B", "C", "D", "E", "F", "G", "H", "I"}

	mappings := mapper.AutoMap(columns, nil)

	require.Len(t, mappings, 9)
	assert.Equal(t, entity.FieldItemNumber, mappings[0].TargetField)
	assert.Equal(t, entity.FieldCurrency, mappings[6].TargetField)
	assert.Equal(t, entity.FieldNone, mappings[7].TargetField)
	assert.Equal(t, entity.FieldNone, mappings[8].TargetField)
}

func TestAutoMap_DefaultsNeverDuplicateDetectedField(t *testing.T) {
	mapper := NewColumnMapper(nil)
	columns := []entity.ColumnID{"A", "B", "C"}
	sample := entity.ParsedRow{RowIndex: 1, Cells: map[entity.ColumnID]entity.CellValue{
		"A": entity.StringCell("x"),
		"B": entity.StringCell("1.2.3"),
		"C": entity.NumberCell(4),
	}}

	mappings := mapper.AutoMap(columns, []entity.ParsedRow{sample})

	// A would default to item_number, but B already claimed it.
	assert.Equal(t, entity.FieldNone, mappings[0].TargetField)
	assert.Equal(t, entity.FieldItemNumber, mappings[1].TargetField)
	assert.Equal(t, entity.FieldQuantity, mappings[2].TargetField)
}

func TestAutoMapWith_ExplicitMappingWins(t *testing.T) {
	mapper := NewColumnMapper(nil)
	sample := row(2, "1.1.1", "Excavation for foundations in ordinary soil", 100, "M3", 45.5, "SAR")
	explicit := []entity.ColumnMapping{
		{ExcelColumn: "G", TargetField: entity.FieldItemNumber},
		{ExcelColumn: "F", TargetField: entity.FieldIgnore},
	}

	mappings := mapper.AutoMapWith(standardColumns, []entity.ParsedRow{sample}, explicit)

	assert.Equal(t, entity.FieldItemNumber, mappings[6].TargetField)
	assert.Equal(t, entity.FieldIgnore, mappings[5].TargetField)
	assert.Equal(t, entity.FieldNone, mappings[0].TargetField, "detected item_number must not override the explicit claim")
	assert.True(t, ValidateMappings(mappings).IsValid)
}

func TestAutoMap_Idempotent(t *testing.T) {
	mapper := NewColumnMapper(nil)
	rows := []entity.ParsedRow{
		row(2, "EXT-001", "Additional temporary site fencing works", 10, "LM", 80, "USD"),
	}

	first := mapper.AutoMap(standardColumns, rows)
	second := mapper.AutoMap(standardColumns, rows)

	assert.Equal(t, first, second)
}

func TestValidateMappings(t *testing.T) {
	tests := []struct {
		name            string
		mappings        []entity.ColumnMapping
		valid           bool
		missingRequired []entity.FieldKind
		duplicates      []entity.FieldKind
		warnings        int
	}{
		{
			name:            "complete mapping",
			mappings:        standardMappings,
			valid:           true,
			missingRequired: []entity.FieldKind{},
			duplicates:      []entity.FieldKind{},
		},
		{
			name: "missing unit rate",
			mappings: []entity.ColumnMapping{
				{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
				{ExcelColumn: "B", TargetField: entity.FieldDescription},
				{ExcelColumn: "C", TargetField: entity.FieldQuantity},
				{ExcelColumn: "D"},
			},
			valid:           false,
			missingRequired: []entity.FieldKind{entity.FieldUnitRate},
			duplicates:      []entity.FieldKind{},
		},
		{
			name: "duplicate item number",
			mappings: []entity.ColumnMapping{
				{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
				{ExcelColumn: "B", TargetField: entity.FieldItemNumber},
				{ExcelColumn: "C", TargetField: entity.FieldUnitRate},
			},
			valid:           false,
			missingRequired: []entity.FieldKind{},
			duplicates:      []entity.FieldKind{entity.FieldItemNumber},
			warnings:        2,
		},
		{
			name: "ignored columns may repeat",
			mappings: []entity.ColumnMapping{
				{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
				{ExcelColumn: "B", TargetField: entity.FieldIgnore},
				{ExcelColumn: "C", TargetField: entity.FieldIgnore},
				{ExcelColumn: "D", TargetField: entity.FieldUnitRate},
			},
			valid:           true,
			missingRequired: []entity.FieldKind{},
			duplicates:      []entity.FieldKind{},
			warnings:        2,
		},
		{
			name:            "empty mapping",
			mappings:        nil,
			valid:           false,
			missingRequired: []entity.FieldKind{entity.FieldItemNumber, entity.FieldUnitRate},
			duplicates:      []entity.FieldKind{},
			warnings:        2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateMappings(tt.mappings)
			assert.Equal(t, tt.valid, v.IsValid)
			assert.Equal(t, tt.missingRequired, v.MissingRequired)
			assert.Equal(t, tt.duplicates, v.DuplicateFields)
			assert.Len(t, v.Warnings, tt.warnings)
		})
	}
}

func TestValidateMappings_UnknownField(t *testing.T) {
	v := ValidateMappings([]entity.ColumnMapping{
		{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
		{ExcelColumn: "B", TargetField: entity.FieldUnitRate},
		{ExcelColumn: "C", TargetField: "price"},
	})
	assert.False(t, v.IsValid)
	assert.Contains(t, v.Errors[0], "unknown field")
}
