// Package reconcile implements the stages of the bid import pipeline:
// column mapping, BOQ matching, normalization, validation and the final import.
package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

var (
	dottedItemNumber   = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	prefixedItemNumber = regexp.MustCompile(`^[A-Za-z]{2,3}-\d+$`)
)

// positionalDefaults is the conventional column order of a priced BOQ sheet
var positionalDefaults = []entity.FieldKind{
	entity.FieldItemNumber,
	entity.FieldDescription,
	entity.FieldQuantity,
	entity.FieldUOM,
	entity.FieldUnitRate,
	entity.FieldAmount,
	entity.FieldCurrency,
}

// descriptionMinLength: strings longer than this are taken as descriptions
const descriptionMinLength = 20

// ColumnMapper infers and validates column-to-field mappings
type ColumnMapper struct {
	tables *reference.Tables
}

// NewColumnMapper creates a mapper using the code sets of the given tables
func NewColumnMapper(tables *reference.Tables) *ColumnMapper {
	if tables == nil {
		tables = reference.Default()
	}
	return &ColumnMapper{tables: tables}
}

// AutoMap infers one mapping per column from the first sample row
func (m *ColumnMapper) AutoMap(columns []entity.ColumnID, sampleRows []entity.ParsedRow) []entity.ColumnMapping {
	return m.AutoMapWith(columns, sampleRows, nil)
}

// AutoMapWith infers mappings while keeping the explicit ones untouched.
// A field claimed by an explicit mapping is never assigned to another column.
func (m *ColumnMapper) AutoMapWith(columns []entity.ColumnID, sampleRows []entity.ParsedRow, explicit []entity.ColumnMapping) []entity.ColumnMapping {
	result := make([]entity.ColumnMapping, len(columns))
	claimed := make(map[entity.FieldKind]bool)
	fixed := make(map[entity.ColumnID]bool)

	explicitByColumn := make(map[entity.ColumnID]entity.FieldKind, len(explicit))
	for _, em := range explicit {
		explicitByColumn[em.ExcelColumn] = em.TargetField
	}

	for i, col := range columns {
		result[i] = entity.ColumnMapping{ExcelColumn: col}
		if field, ok := explicitByColumn[col]; ok && field != entity.FieldNone {
			result[i].TargetField = field
			fixed[col] = true
			if field.IsMapped() {
				claimed[field] = true
			}
		}
	}

	if len(sampleRows) > 0 {
		sample := sampleRows[0]
		for i, col := range columns {
			if fixed[col] {
				continue
			}
			field := m.detectField(sample.Cell(col), i, len(columns))
			if field == entity.FieldNone || claimed[field] {
				continue
			}
			result[i].TargetField = field
			claimed[field] = true
		}
	}

	for i := range result {
		if i >= len(positionalDefaults) {
			break
		}
		if result[i].TargetField != entity.FieldNone {
			continue
		}
		field := positionalDefaults[i]
		if claimed[field] {
			continue
		}
		result[i].TargetField = field
		claimed[field] = true
	}

	return result
}

// detectField classifies one sample cell by the shape of its value
func (m *ColumnMapper) detectField(cell entity.CellValue, index, columnCount int) entity.FieldKind {
	switch cell.Kind {
	case entity.CellString:
		s := strings.TrimSpace(cell.Str)
		switch {
		case s == "":
			return entity.FieldNone
		case dottedItemNumber.MatchString(s) || prefixedItemNumber.MatchString(s):
			return entity.FieldItemNumber
		case m.tables.IsCurrencyCode(s):
			return entity.FieldCurrency
		case m.tables.IsUnitCode(s):
			return entity.FieldUOM
		case len(s) > descriptionMinLength:
			return entity.FieldDescription
		}
	case entity.CellNumber:
		switch {
		case index <= 2:
			return entity.FieldQuantity
		case index == columnCount-2:
			return entity.FieldUnitRate
		case index == columnCount-1:
			return entity.FieldAmount
		}
	}
	return entity.FieldNone
}

var requiredFields = []entity.FieldKind{entity.FieldItemNumber, entity.FieldUnitRate}

var recommendedFields = []entity.FieldKind{entity.FieldDescription, entity.FieldQuantity}

// ValidateMappings checks required, duplicate and recommended fields.
// Errors block progression, warnings do not.
func (m *ColumnMapper) ValidateMappings(mappings []entity.ColumnMapping) entity.MappingValidation {
	return ValidateMappings(mappings)
}

// ValidateMappings is the table-independent mapping check
func ValidateMappings(mappings []entity.ColumnMapping) entity.MappingValidation {
	v := entity.MappingValidation{
		Errors:          []string{},
		Warnings:        []string{},
		MissingRequired: []entity.FieldKind{},
		DuplicateFields: []entity.FieldKind{},
	}

	columnsByField := make(map[entity.FieldKind][]string)
	var order []entity.FieldKind
	for _, mapping := range mappings {
		if !mapping.TargetField.IsValid() {
			v.Errors = append(v.Errors, fmt.Sprintf("column %s maps to unknown field %q", mapping.ExcelColumn, mapping.TargetField))
			continue
		}
		if !mapping.TargetField.IsMapped() {
			continue
		}
		if _, seen := columnsByField[mapping.TargetField]; !seen {
			order = append(order, mapping.TargetField)
		}
		columnsByField[mapping.TargetField] = append(columnsByField[mapping.TargetField], string(mapping.ExcelColumn))
	}

	for _, field := range requiredFields {
		if len(columnsByField[field]) == 0 {
			v.MissingRequired = append(v.MissingRequired, field)
			v.Errors = append(v.Errors, fmt.Sprintf("required field %s is not mapped", field))
		}
	}

	for _, field := range order {
		cols := columnsByField[field]
		if len(cols) > 1 {
			v.DuplicateFields = append(v.DuplicateFields, field)
			v.Errors = append(v.Errors, fmt.Sprintf("field %s is mapped to multiple columns: %s", field, strings.Join(cols, ", ")))
		}
	}

	for _, field := range recommendedFields {
		if len(columnsByField[field]) == 0 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("field %s is not mapped", field))
		}
	}

	v.IsValid = len(v.Errors) == 0
	return v
}
