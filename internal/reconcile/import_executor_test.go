package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

var sarBase = entity.CurrencyNormalization{DetectedCurrency: "SAR", BaseCurrency: "SAR", FxRate: 1, CanConvert: true}

func TestExecute_FiltersAndTotals(t *testing.T) {
	items := []entity.NormalizedBidItem{
		normalized(exactItem("row-2", "boq-1", "M3", "SAR", 1, 45000), true),
		normalized(exactItem("row-3", "boq-2", "M3", "SAR", 2, 0), true),
		normalized(entity.MatchedItem{ID: "row-4", MatchType: entity.MatchExtra, Quantity: 1, UnitRate: 1000.5, IsIncluded: true}, true),
		normalized(entity.MatchedItem{ID: "row-5", MatchType: entity.MatchUnmatched, Quantity: 1, UnitRate: 99}, true),
	}

	// the flags are advisory: extras are accepted either way
	for _, includeExtras := range []bool{true, false} {
		result := Execute(entity.ImportRequest{Items: items, Currency: sarBase, IncludeExtras: includeExtras})
		assert.True(t, result.Success)
		assert.Equal(t, 2, result.ImportedCount)
		assert.Equal(t, 2, result.SkippedCount)
		assert.Equal(t, 46000.5, result.TotalAmount)
		assert.Equal(t, "SAR", result.Currency)
		require.Len(t, result.Accepted, 2)
		assert.Equal(t, "row-4", result.Accepted[1].ID)
	}
}

func TestExecute_CountsCoverEveryItem(t *testing.T) {
	items := []entity.NormalizedBidItem{
		normalized(exactItem("row-2", "boq-1", "M3", "SAR", 1, 1), true),
		normalized(exactItem("row-3", "boq-1", "M3", "SAR", 1, -1), true),
		normalized(entity.MatchedItem{ID: "row-4", MatchType: entity.MatchUnmatched, UnitRate: 3}, true),
	}

	for _, includeExtras := range []bool{true, false} {
		result := Execute(entity.ImportRequest{Items: items, Currency: sarBase, IncludeExtras: includeExtras})
		assert.Equal(t, len(items), result.ImportedCount+result.SkippedCount)
	}
}

func TestExecute_NothingAccepted(t *testing.T) {
	items := []entity.NormalizedBidItem{
		normalized(entity.MatchedItem{ID: "row-2", MatchType: entity.MatchUnmatched, Quantity: 1, UnitRate: 5}, true),
	}

	result := Execute(entity.ImportRequest{Items: items, Currency: sarBase, ForceImport: true})

	assert.False(t, result.Success)
	assert.True(t, result.ForceImport)
	assert.Equal(t, 0.0, result.TotalAmount)
	assert.Empty(t, result.Accepted)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.23, Round(1.234, 2))
	assert.Equal(t, 1.24, Round(1.235001, 2))
	assert.Equal(t, 0.2667, Round(0.266666, 4))
	assert.Equal(t, 10.0, Round(9.999, 2))
}

// Runs the scenario where a single exact row priced in base currency flows
// through every stage unchanged.
func TestStages_SingleExactRow(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{row(2, "1.1.1", "", nil, "", 45000, "SAR")}

	matched, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	norm := NewNormalizer(nil, matcher, nil).Normalize(matched.Items, "SAR")
	require.Equal(t, 1.0, norm.Currency.FxRate)

	verdict := Validate(norm.Items)
	require.True(t, verdict.IsValid)
	require.False(t, verdict.HasWarnings())

	result := Execute(entity.ImportRequest{Items: norm.Items, Currency: norm.Currency, IncludeExtras: true})
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, 45000.0, result.TotalAmount)
}

// Runs the scenario where an EXT-prefixed row is auto-included and imported.
func TestStages_ExtraRow(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{row(2, "EXT-001", "Additional signage", 1, "LS", 5000, "SAR")}

	matched, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)
	require.Equal(t, entity.MatchExtra, matched.Items[0].MatchType)

	norm := NewNormalizer(nil, matcher, nil).Normalize(matched.Items, "SAR")
	verdict := Validate(norm.Items)
	assert.True(t, verdict.IsValid)
	assert.Equal(t, 1, verdict.ValidItemCount)

	assert.False(t, verdict.HasWarnings())

	result := Execute(entity.ImportRequest{Items: norm.Items, Currency: norm.Currency})
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.ImportedCount)
	assert.Equal(t, 0, result.SkippedCount)
	assert.Equal(t, 5000.0, result.TotalAmount)
}
