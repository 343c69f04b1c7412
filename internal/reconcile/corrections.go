package reconcile

import (
	"fmt"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// AssignToBoq links an item to a master BOQ item. The returned result is a
// copy; the input is left untouched. Repeating the call is a no-op.
func AssignToBoq(result entity.MatchResult, itemID string, boqItem entity.MasterBoqItem) (entity.MatchResult, error) {
	if boqItem.ID == "" {
		return entity.MatchResult{}, fmt.Errorf("%w: empty id", ErrBoqItemNotFound)
	}
	return replaceItem(result, itemID, func(item entity.MatchedItem) entity.MatchedItem {
		item.BoqItemID = boqItem.ID
		item.MatchType = entity.MatchExact
		item.ConfidenceScore = nil
		item.ManuallyMatched = true
		item.IsIncluded = true
		return item
	})
}

// MarkAsExtra admits an item as a non-BOQ extra. Any BOQ link is dropped so
// that extras never carry a master reference.
func MarkAsExtra(result entity.MatchResult, itemID string) (entity.MatchResult, error) {
	return replaceItem(result, itemID, func(item entity.MatchedItem) entity.MatchedItem {
		item.MatchType = entity.MatchExtra
		item.BoqItemID = ""
		item.ConfidenceScore = nil
		item.ManuallyMatched = false
		item.IsIncluded = true
		return item
	})
}

func replaceItem(result entity.MatchResult, itemID string, fn func(entity.MatchedItem) entity.MatchedItem) (entity.MatchResult, error) {
	idx := result.IndexOf(itemID)
	if idx < 0 {
		return entity.MatchResult{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	items := make([]entity.MatchedItem, len(result.Items))
	copy(items, result.Items)
	items[idx] = fn(items[idx])

	next := entity.MatchResult{Items: items}
	Tally(&next)
	return next, nil
}
