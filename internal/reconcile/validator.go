package reconcile

import "github.com/garyjia/bid-reconciler/internal/domain/entity"

// Issue messages
const (
	MsgUnitRateNotPositive = "unit rate must be greater than zero"
	MsgNotMatched          = "not matched to BOQ, marked non-comparable"
	MsgUOMMismatch         = "UOM mismatch, marked non-comparable"
	MsgZeroQuantity        = "quantity is zero"
)

// Validate turns normalized items into a verdict. Each item yields at most
// one primary issue, plus an independent zero-quantity warning.
func Validate(items []entity.NormalizedBidItem) entity.ValidationResult {
	result := entity.ValidationResult{Issues: []entity.ValidationIssue{}}

	for _, item := range items {
		switch {
		case item.UnitRate <= 0:
			result.Issues = append(result.Issues, entity.ValidationIssue{
				ItemID:     item.ID,
				Field:      entity.IssueFieldUnitRate,
				Severity:   entity.SeverityError,
				Message:    MsgUnitRateNotPositive,
				CanProceed: false,
			})
			result.ErrorCount++
		case !item.HasBoqItem() && !item.IsExtra():
			result.Issues = append(result.Issues, warning(item.ID, entity.IssueFieldBoqItem, MsgNotMatched))
			result.WarningCount++
		case !item.IsComparable:
			result.Issues = append(result.Issues, warning(item.ID, entity.IssueFieldUOM, MsgUOMMismatch))
			result.WarningCount++
		default:
			result.ValidItemCount++
		}

		if item.Quantity == 0 {
			result.Issues = append(result.Issues, warning(item.ID, entity.IssueFieldQuantity, MsgZeroQuantity))
			result.WarningCount++
		}
	}

	result.IsValid = result.ErrorCount == 0
	return result
}

func warning(itemID, field, message string) entity.ValidationIssue {
	return entity.ValidationIssue{
		ItemID:     itemID,
		Field:      field,
		Severity:   entity.SeverityWarning,
		Message:    message,
		CanProceed: true,
	}
}
