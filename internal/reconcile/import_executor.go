package reconcile

import (
	"math"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// Execute filters the accepted items and totals them. Items that fail the
// filter are counted as skipped; the run as a whole never errors here.
func Execute(req entity.ImportRequest) entity.ImportResult {
	result := entity.ImportResult{
		Currency:    req.Currency.BaseCurrency,
		ForceImport: req.ForceImport,
		Accepted:    make([]entity.NormalizedBidItem, 0, len(req.Items)),
	}

	var total float64
	for _, item := range req.Items {
		if !accepts(item) {
			result.SkippedCount++
			continue
		}
		result.Accepted = append(result.Accepted, item)
		result.ImportedCount++
		total += item.NormalizedAmount
	}

	result.TotalAmount = Round(total, 2)
	result.Success = result.ImportedCount > 0
	return result
}

// accepts admits priced items that are matched to the BOQ or marked extra
func accepts(item entity.NormalizedBidItem) bool {
	return item.UnitRate > 0 && (item.HasBoqItem() || item.IsExtra())
}

// Round rounds v to the given number of decimal places
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
