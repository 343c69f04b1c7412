// Package sheet converts xlsx workbooks to and from the reconciliation types.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// ErrNoSheet is returned when the workbook lacks the requested sheet
var ErrNoSheet = errors.New("workbook has no such sheet")

// Config controls how a workbook is read
type Config struct {
	// HeaderRows is the number of leading rows skipped as headers
	HeaderRows int
	// SheetName selects the sheet; empty means the first one
	SheetName string
}

// Decoder reads bidder workbooks into ParsedSheet
type Decoder struct {
	cfg    Config
	logger *zap.Logger
}

// NewDecoder creates a new Decoder
func NewDecoder(cfg Config, logger *zap.Logger) *Decoder {
	if cfg.HeaderRows < 0 {
		cfg.HeaderRows = 0
	}
	return &Decoder{cfg: cfg, logger: logger}
}

// Decode reads one sheet of the workbook. Columns are named by their
// spreadsheet letter, RowIndex is the 1-based spreadsheet row and blank
// rows are dropped. Cells stored as numbers become number cells; text
// cells stay text even when they look numeric.
func (d *Decoder) Decode(r io.Reader) (entity.ParsedSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return entity.ParsedSheet{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	name, err := d.sheetName(f)
	if err != nil {
		return entity.ParsedSheet{}, err
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return entity.ParsedSheet{}, fmt.Errorf("failed to read sheet %q: %w", name, err)
	}

	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}

	columns := make([]entity.ColumnID, width)
	for i := range columns {
		letter, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return entity.ParsedSheet{}, fmt.Errorf("failed to name column %d: %w", i+1, err)
		}
		columns[i] = entity.ColumnID(letter)
	}

	parsed := entity.ParsedSheet{Columns: columns, Rows: []entity.ParsedRow{}}
	for i, raw := range rows {
		rowNumber := i + 1
		if rowNumber <= d.cfg.HeaderRows || isBlank(raw) {
			continue
		}

		cells := make(map[entity.ColumnID]entity.CellValue, len(raw))
		for c, value := range raw {
			if strings.TrimSpace(value) == "" {
				continue
			}
			cells[columns[c]] = d.cell(f, name, c+1, rowNumber, value)
		}
		parsed.Rows = append(parsed.Rows, entity.ParsedRow{RowIndex: rowNumber, Cells: cells})
	}

	d.logger.Debug("Workbook decoded",
		zap.String("sheet", name),
		zap.Int("columns", len(columns)),
		zap.Int("rows", len(parsed.Rows)))

	return parsed, nil
}

func (d *Decoder) sheetName(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook is empty", ErrNoSheet)
	}
	if d.cfg.SheetName == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if strings.EqualFold(s, d.cfg.SheetName) {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoSheet, d.cfg.SheetName)
}

func (d *Decoder) cell(f *excelize.File, sheet string, col, row int, value string) entity.CellValue {
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return entity.StringCell(value)
	}

	cellType, err := f.GetCellType(sheet, axis)
	if err != nil {
		d.logger.Warn("Failed to read cell type", zap.String("cell", axis), zap.Error(err))
		return entity.StringCell(value)
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return entity.StringCell(value)
	}

	if n, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return entity.NumberCell(n)
	}
	return entity.StringCell(value)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
