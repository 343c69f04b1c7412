package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

func newTestNormalizer() *Normalizer {
	master := newTestMatcher(masterBoq())
	return NewNormalizer(reference.Default(), master, zap.NewNop())
}

func exactItem(id, boqID, uom, currency string, qty, rate float64) entity.MatchedItem {
	return entity.MatchedItem{
		ID:         id,
		MatchType:  entity.MatchExact,
		BoqItemID:  boqID,
		UOM:        uom,
		Currency:   currency,
		Quantity:   qty,
		UnitRate:   rate,
		Amount:     qty * rate,
		IsIncluded: true,
	}
}

func TestNormalize_ScenarioSameCurrency(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-1", "", "SAR", 1, 45000)}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.Equal(t, 1.0, result.Currency.FxRate)
	assert.Equal(t, "SAR", result.Currency.DetectedCurrency)
	assert.True(t, result.Currency.CanConvert)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 45000.0, result.Items[0].NormalizedUnitRate)
	assert.Equal(t, 45000.0, result.Items[0].NormalizedAmount)
	assert.True(t, result.Items[0].IsComparable)
	assert.Equal(t, reference.Default().Version, result.TablesVersion)
}

func TestNormalize_CurrencyIdentityKeepsRates(t *testing.T) {
	items := []entity.MatchedItem{
		exactItem("row-2", "boq-1", "M3", "sar", 100, 42.35),
		exactItem("row-3", "boq-2", "M3", "", 50, 610.1),
	}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.Equal(t, 1.0, result.Currency.FxRate)
	for i, item := range result.Items {
		assert.Equal(t, items[i].UnitRate, item.NormalizedUnitRate)
		assert.InDelta(t, items[i].Amount, item.NormalizedAmount, 0.005)
	}
}

func TestNormalize_FirstCurrencyWins(t *testing.T) {
	items := []entity.MatchedItem{
		exactItem("row-2", "boq-1", "M3", "", 1, 10),
		exactItem("row-3", "boq-2", "M3", "USD", 1, 10),
		exactItem("row-4", "boq-2", "M3", "EUR", 1, 10),
	}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.Equal(t, "USD", result.Currency.DetectedCurrency)
	assert.Equal(t, 3.75, result.Currency.FxRate)
	assert.Equal(t, 37.5, result.Items[0].NormalizedUnitRate)
}

func TestNormalize_NoCurrencyAssumesBase(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-1", "M3", "", 1, 10)}

	result := newTestNormalizer().Normalize(items, "usd")

	assert.Equal(t, "USD", result.Currency.DetectedCurrency)
	assert.Equal(t, "USD", result.Currency.BaseCurrency)
	assert.Equal(t, 1.0, result.Currency.FxRate)
}

func TestNormalize_UnknownCurrencyIsNotComparable(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-1", "M3", "XYZ", 2, 10)}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.False(t, result.Currency.CanConvert)
	assert.Equal(t, 1.0, result.Currency.FxRate)
	assert.False(t, result.Items[0].IsComparable)
	assert.Equal(t, 20.0, result.Items[0].NormalizedAmount)
}

func TestNormalize_ConvertibleUomMismatch(t *testing.T) {
	// boq-4 is priced per KG; the bidder priced per MT
	items := []entity.MatchedItem{exactItem("row-2", "boq-4", "mt", "SAR", 12, 3000)}

	result := newTestNormalizer().Normalize(items, "SAR")

	require.Len(t, result.UomMismatches, 1)
	mismatch := result.UomMismatches[0]
	assert.Equal(t, "row-2", mismatch.ItemID)
	assert.Equal(t, "mt", mismatch.BidderUOM)
	assert.Equal(t, "KG", mismatch.MasterUOM)
	require.NotNil(t, mismatch.ConversionFactor)
	assert.Equal(t, 1000.0, *mismatch.ConversionFactor)
	assert.True(t, mismatch.CanConvert)
	assert.True(t, mismatch.AutoConvert)
	assert.False(t, mismatch.MarkAsNonComparable)

	item := result.Items[0]
	assert.Equal(t, 3000000.0, item.NormalizedUnitRate)
	assert.Equal(t, 36000000.0, item.NormalizedAmount)
	assert.True(t, item.IsComparable)
}

func TestNormalize_UnconvertibleUomMismatch(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-3", "LS", "SAR", 1, 5000)}

	result := newTestNormalizer().Normalize(items, "SAR")

	require.Len(t, result.UomMismatches, 1)
	mismatch := result.UomMismatches[0]
	assert.Nil(t, mismatch.ConversionFactor)
	assert.False(t, mismatch.CanConvert)
	assert.False(t, mismatch.AutoConvert)
	assert.True(t, mismatch.MarkAsNonComparable)

	assert.False(t, result.Items[0].IsComparable)
	assert.Equal(t, 5000.0, result.Items[0].NormalizedUnitRate)
}

func TestNormalize_SameUomDifferentCaseIsNotMismatch(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-3", "m2", "SAR", 10, 5)}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.Empty(t, result.UomMismatches)
	assert.True(t, result.Items[0].IsComparable)
}

func TestNormalize_UnlinkedItemsNeverMismatch(t *testing.T) {
	items := []entity.MatchedItem{
		{ID: "row-2", MatchType: entity.MatchExtra, UOM: "LS", Quantity: 1, UnitRate: 10, IsIncluded: true},
		{ID: "row-3", MatchType: entity.MatchUnmatched, UOM: "KG", Quantity: 1, UnitRate: 10},
	}

	result := newTestNormalizer().Normalize(items, "SAR")

	assert.Empty(t, result.UomMismatches)
	for _, item := range result.Items {
		assert.True(t, item.IsComparable)
	}
}

func TestNormalize_CombinedCurrencyAndUom(t *testing.T) {
	items := []entity.MatchedItem{exactItem("row-2", "boq-3", "SF", "USD", 4000, 2)}

	result := newTestNormalizer().Normalize(items, "SAR")

	// 2 USD/SF * 3.75 * 10.7639 SF per M2
	assert.InDelta(t, 80.72925, result.Items[0].NormalizedUnitRate, 1e-9)
	assert.InDelta(t, 322917.0, result.Items[0].NormalizedAmount, 1e-6)
}
