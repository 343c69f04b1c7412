package reconcile

import (
	"fmt"
	"strings"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// rowExtractor pulls canonical field values out of a row through a mapping
type rowExtractor struct {
	columns map[entity.FieldKind]entity.ColumnID
}

func newRowExtractor(mappings []entity.ColumnMapping) rowExtractor {
	columns := make(map[entity.FieldKind]entity.ColumnID)
	for _, m := range mappings {
		if !m.TargetField.IsMapped() {
			continue
		}
		if _, exists := columns[m.TargetField]; !exists {
			columns[m.TargetField] = m.ExcelColumn
		}
	}
	return rowExtractor{columns: columns}
}

func (e rowExtractor) cell(row entity.ParsedRow, field entity.FieldKind) (entity.CellValue, bool) {
	col, ok := e.columns[field]
	if !ok {
		return entity.NullCell(), false
	}
	return row.Cell(col), true
}

func (e rowExtractor) text(row entity.ParsedRow, field entity.FieldKind) string {
	c, _ := e.cell(row, field)
	return c.Text()
}

// extract builds an unclassified item. A missing quantity means a lump-sum
// line of one; an unparseable quantity or rate reads as zero so that the
// validator reports it.
func (e rowExtractor) extract(row entity.ParsedRow) entity.MatchedItem {
	item := entity.MatchedItem{
		ID:          ItemID(row.RowIndex),
		RowIndex:    row.RowIndex,
		ItemNumber:  e.text(row, entity.FieldItemNumber),
		Description: e.text(row, entity.FieldDescription),
		UOM:         e.text(row, entity.FieldUOM),
		Currency:    strings.ToUpper(e.text(row, entity.FieldCurrency)),
		Quantity:    1,
	}

	if c, mapped := e.cell(row, entity.FieldQuantity); mapped && !c.IsNull() {
		item.Quantity, _ = c.Float()
	}

	if c, mapped := e.cell(row, entity.FieldUnitRate); mapped {
		item.UnitRate, _ = c.Float()
	}

	item.Amount = item.Quantity * item.UnitRate
	if c, mapped := e.cell(row, entity.FieldAmount); mapped {
		if v, ok := c.Float(); ok {
			item.Amount = v
		}
	}

	return item
}

// ItemID is the stable identifier of the matched item built from a row
func ItemID(rowIndex int) string {
	return fmt.Sprintf("row-%d", rowIndex)
}
