package reconcile

import (
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

var standardColumns = []entity.ColumnID{"A", "B", "C", "D", "E", "F", "G"}

var standardMappings = []entity.ColumnMapping{
	{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
	{ExcelColumn: "B", TargetField: entity.FieldDescription},
	{ExcelColumn: "C", TargetField: entity.FieldQuantity},
	{ExcelColumn: "D", TargetField: entity.FieldUOM},
	{ExcelColumn: "E", TargetField: entity.FieldUnitRate},
	{ExcelColumn: "F", TargetField: entity.FieldAmount},
	{ExcelColumn: "G", TargetField: entity.FieldCurrency},
}

func masterBoq() []entity.MasterBoqItem {
	return []entity.MasterBoqItem{
		{ID: "boq-1", ItemNumber: "1.1.1", Description: "Excavation for foundations in ordinary soil", Quantity: 100, UOM: "M3"},
		{ID: "boq-2", ItemNumber: "1.1.2", Description: "Reinforced concrete grade C30 footings", Quantity: 50, UOM: "M3"},
		{ID: "boq-3", ItemNumber: "2.1.1", Description: "Ceramic floor tiles including adhesive", Quantity: 400, UOM: "M2"},
		{ID: "boq-4", ItemNumber: "3.1.1", Description: "Steel reinforcement bars", Quantity: 12000, UOM: "KG"},
	}
}

// row builds a ParsedRow over the standard A..G layout
func row(index int, itemNumber, description string, qty any, uom string, rate any, currency string) entity.ParsedRow {
	cells := map[entity.ColumnID]entity.CellValue{
		"A": entity.StringCell(itemNumber),
		"B": entity.StringCell(description),
		"C": cellOf(qty),
		"D": entity.StringCell(uom),
		"E": cellOf(rate),
		"F": entity.NullCell(),
		"G": entity.StringCell(currency),
	}
	return entity.ParsedRow{RowIndex: index, Cells: cells}
}

func cellOf(v any) entity.CellValue {
	switch x := v.(type) {
	case nil:
		return entity.NullCell()
	case int:
		return entity.NumberCell(float64(x))
	case float64:
		return entity.NumberCell(x)
	case string:
		return entity.StringCell(x)
	default:
		return entity.NullCell()
	}
}

func intPtr(v int) *int {
	return &v
}
