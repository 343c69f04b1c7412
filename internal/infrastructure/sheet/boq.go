package sheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// BOQ workbook layout: item number, description, quantity and unit in
// columns A to D
const (
	boqColItemNumber  entity.ColumnID = "A"
	boqColDescription entity.ColumnID = "B"
	boqColQuantity    entity.ColumnID = "C"
	boqColUOM         entity.ColumnID = "D"
)

// LoadBoqWorkbook reads a master BOQ workbook. Rows without an item number
// are section headings and are skipped. Item ids are left empty for the
// store to assign.
func (d *Decoder) LoadBoqWorkbook(r io.Reader) ([]entity.MasterBoqItem, error) {
	parsed, err := d.Decode(r)
	if err != nil {
		return nil, err
	}

	items := make([]entity.MasterBoqItem, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		itemNumber := row.Cell(boqColItemNumber).Text()
		if itemNumber == "" {
			continue
		}

		item := entity.MasterBoqItem{
			ItemNumber:  itemNumber,
			Description: row.Cell(boqColDescription).Text(),
			UOM:         strings.ToUpper(row.Cell(boqColUOM).Text()),
		}

		qtyCell := row.Cell(boqColQuantity)
		if !qtyCell.IsNull() {
			qty, ok := qtyCell.Float()
			if !ok {
				return nil, fmt.Errorf("row %d: quantity %q is not a number", row.RowIndex, qtyCell.Text())
			}
			item.Quantity = qty
		}

		items = append(items, item)
	}

	return items, nil
}
