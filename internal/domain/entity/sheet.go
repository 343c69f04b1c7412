package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ColumnID identifies a spreadsheet column (letter such as "A" or a header name)
type ColumnID string

// CellKind is the type tag of a decoded cell
type CellKind int

const (
	CellNull CellKind = iota
	CellString
	CellNumber
)

// CellValue is a typed spreadsheet cell: string, number or null
type CellValue struct {
	Kind CellKind
	Str  string
	Num  float64
}

// StringCell returns a string cell
func StringCell(s string) CellValue {
	return CellValue{Kind: CellString, Str: s}
}

// NumberCell returns a numeric cell
func NumberCell(n float64) CellValue {
	return CellValue{Kind: CellNumber, Num: n}
}

// NullCell returns an empty cell
func NullCell() CellValue {
	return CellValue{Kind: CellNull}
}

// IsNull reports whether the cell is empty. Blank strings count as empty.
func (c CellValue) IsNull() bool {
	return c.Kind == CellNull || (c.Kind == CellString && strings.TrimSpace(c.Str) == "")
}

// Text returns the cell rendered as trimmed text. Numbers use the shortest
// representation, so 12 renders as "12" and not "12.000000".
func (c CellValue) Text() string {
	switch c.Kind {
	case CellString:
		return strings.TrimSpace(c.Str)
	case CellNumber:
		return strconv.FormatFloat(c.Num, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the numeric value of the cell. Strings are parsed leniently
// (thousands separators and surrounding spaces are ignored).
func (c CellValue) Float() (float64, bool) {
	switch c.Kind {
	case CellNumber:
		return c.Num, true
	case CellString:
		cleaned := strings.ReplaceAll(strings.TrimSpace(c.Str), ",", "")
		cleaned = strings.ReplaceAll(cleaned, " ", "")
		if cleaned == "" {
			return 0, false
		}
		v, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	default:
		return 0, false
	}
}

// MarshalJSON encodes the cell as null, a JSON string or a JSON number
func (c CellValue) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellString:
		return json.Marshal(c.Str)
	case CellNumber:
		return json.Marshal(c.Num)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes null, string or number JSON values
func (c *CellValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = NullCell()
		return nil
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*c = StringCell(s)
		return nil
	}

	var n float64
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("cell must be a string, number or null: %s", string(trimmed))
	}
	*c = NumberCell(n)
	return nil
}

// ParsedRow is one decoded spreadsheet row
type ParsedRow struct {
	RowIndex int                    `json:"rowIndex"`
	Cells    map[ColumnID]CellValue `json:"cells"`
}

// Cell returns the value for a column, or a null cell when absent
func (r ParsedRow) Cell(col ColumnID) CellValue {
	if v, ok := r.Cells[col]; ok {
		return v
	}
	return NullCell()
}

// ParsedSheet is the decoder's output: ordered columns and rows
type ParsedSheet struct {
	Columns []ColumnID  `json:"columns"`
	Rows    []ParsedRow `json:"rows"`
}
