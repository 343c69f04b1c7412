package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

const (
	comparisonSheet = "Comparison"
	issuesSheet     = "Issues"
)

// Report is the content of a comparison workbook
type Report struct {
	RunID        string
	TenderID     string
	BidderID     string
	BaseCurrency string
	Items        []entity.NormalizedBidItem
	Master       []entity.MasterBoqItem
	Issues       []entity.ValidationIssue
}

var comparisonHeader = []interface{}{
	"Row", "Item No", "Description", "Match", "BOQ Item No", "BOQ Description",
	"Quantity", "UOM", "Unit Rate", "Normalized Rate", "Normalized Amount", "Comparable",
}

var issuesHeader = []interface{}{"Item", "Row", "Field", "Severity", "Message"}

// WriteReport writes the normalized comparison and the validation issues
// as a two-sheet workbook
func WriteReport(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), comparisonSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(issuesSheet); err != nil {
		return fmt.Errorf("failed to add issues sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeComparison(f, report, bold); err != nil {
		return err
	}
	if err := writeIssues(f, report, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func writeComparison(f *excelize.File, report Report, bold int) error {
	master := make(map[string]entity.MasterBoqItem, len(report.Master))
	for _, item := range report.Master {
		master[item.ID] = item
	}

	if err := setRow(f, comparisonSheet, 1, comparisonHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(comparisonSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	row := 2
	total := 0.0
	for _, item := range report.Items {
		boq := master[item.BoqItemID]
		values := []interface{}{
			item.RowIndex, item.ItemNumber, item.Description, string(item.MatchType),
			boq.ItemNumber, boq.Description,
			item.Quantity, item.UOM, item.UnitRate,
			item.NormalizedUnitRate, item.NormalizedAmount, yesNo(item.IsComparable),
		}
		if err := setRow(f, comparisonSheet, row, values); err != nil {
			return err
		}
		if item.IsComparable {
			total += item.NormalizedAmount
		}
		row++
	}

	label := "Comparable total"
	if report.BaseCurrency != "" {
		label = fmt.Sprintf("Comparable total (%s)", report.BaseCurrency)
	}
	totalRow := []interface{}{"", "", label, "", "", "", "", "", "", "", total, ""}
	if err := setRow(f, comparisonSheet, row, totalRow); err != nil {
		return err
	}
	if err := f.SetRowStyle(comparisonSheet, row, row, bold); err != nil {
		return fmt.Errorf("failed to style total: %w", err)
	}
	return nil
}

func writeIssues(f *excelize.File, report Report, bold int) error {
	rows := make(map[string]int, len(report.Items))
	for _, item := range report.Items {
		rows[item.ID] = item.RowIndex
	}

	if err := setRow(f, issuesSheet, 1, issuesHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(issuesSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, issue := range report.Issues {
		values := []interface{}{issue.ItemID, rows[issue.ItemID], issue.Field, string(issue.Severity), issue.Message}
		if err := setRow(f, issuesSheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, axis, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
