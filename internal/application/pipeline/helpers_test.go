package pipeline

import (
	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

var sheetColumns = []entity.ColumnID{"A", "B", "C", "D", "E", "F", "G"}

func masterBoq() []entity.MasterBoqItem {
	return []entity.MasterBoqItem{
		{ID: "boq-1", TenderID: "T-1", ItemNumber: "1.1.1", Description: "Excavation for foundations in ordinary soil", Quantity: 100, UOM: "M3"},
		{ID: "boq-2", TenderID: "T-1", ItemNumber: "1.1.2", Description: "Reinforced concrete grade C30 footings", Quantity: 40, UOM: "M3"},
		{ID: "boq-3", TenderID: "T-1", ItemNumber: "2.1.1", Description: "Ceramic floor tiles including adhesive", Quantity: 50, UOM: "M2"},
		{ID: "boq-4", TenderID: "T-1", ItemNumber: "3.1.1", Description: "Steel reinforcement bars", Quantity: 2000, UOM: "KG"},
	}
}

func sheetRow(index int, itemNumber, description string, qty float64, uom string, rate float64) entity.ParsedRow {
	return entity.ParsedRow{
		RowIndex: index,
		Cells: map[entity.ColumnID]entity.CellValue{
			"A": entity.StringCell(itemNumber),
			"B": entity.StringCell(description),
			"C": entity.NumberCell(qty),
			"D": entity.StringCell(uom),
			"E": entity.NumberCell(rate),
			"F": entity.NullCell(),
			"G": entity.StringCell("SAR"),
		},
	}
}

// bidSheet has one exact, one fuzzy, one extra and one unmatched row
func bidSheet() entity.ParsedSheet {
	return entity.ParsedSheet{
		Columns: sheetColumns,
		Rows: []entity.ParsedRow{
			sheetRow(2, "1.1.1", "Excavation for foundations in ordinary soil", 100, "M3", 45),
			sheetRow(3, "X.1", "Ceramic floor tiles with adhesive", 50, "M2", 80),
			sheetRow(4, "EXT-001", "Additional signage", 1, "LS", 5000),
			sheetRow(5, "Z-9", "Landscaping works", 10, "KG", 3),
		},
	}
}
