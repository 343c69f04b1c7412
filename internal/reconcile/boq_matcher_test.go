package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

func newTestMatcher(master []entity.MasterBoqItem) *Matcher {
	return NewMatcher(master, DefaultMatcherConfig(), zap.NewNop())
}

func TestMatch_ExactMatch(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{row(2, "1.1.1", "", nil, "", 45000, "SAR")}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	item := result.Items[0]
	assert.Equal(t, entity.MatchExact, item.MatchType)
	assert.Equal(t, "boq-1", item.BoqItemID)
	assert.Nil(t, item.ConfidenceScore)
	assert.True(t, item.IsIncluded)
	assert.False(t, item.ManuallyMatched)
	assert.Equal(t, 1, result.ExactMatches)
	assert.Equal(t, "row-2", item.ID)
}

func TestMatch_ExactTakesPrecedenceOverDescription(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	// Description is a perfect match for boq-3, item number is boq-2's.
	rows := []entity.ParsedRow{row(2, "1.1.2", "Ceramic floor tiles including adhesive", 10, "M2", 30, "")}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	assert.Equal(t, entity.MatchExact, result.Items[0].MatchType)
	assert.Equal(t, "boq-2", result.Items[0].BoqItemID)
}

func TestMatch_ExactIsCaseSensitive(t *testing.T) {
	master := []entity.MasterBoqItem{{ID: "m1", ItemNumber: "CIV-01", Description: "Site clearance"}}
	matcher := newTestMatcher(master)
	rows := []entity.ParsedRow{row(2, "civ-01", "", 1, "", 10, "")}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	assert.Equal(t, entity.MatchUnmatched, result.Items[0].MatchType)
}

func TestMatch_FuzzyMatch(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{row(5, "X.9", "Ceramic floor tiles with adhesive", 400, "M2", 95, "SAR")}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	item := result.Items[0]
	assert.Equal(t, entity.MatchFuzzy, item.MatchType)
	assert.Equal(t, "boq-3", item.BoqItemID)
	require.NotNil(t, item.ConfidenceScore)
	// bidder: ceramic floor tiles with adhesive (5), master: ceramic floor tiles including adhesive (5)
	assert.Equal(t, 80, *item.ConfidenceScore)
	assert.True(t, item.IsIncluded)
	assert.Equal(t, 1, result.FuzzyMatches)
}

// generatedTokens returns n distinct six-character tokens with the prefix
func generatedTokens(prefix string, from, n int) []string {
	tokens := make([]string, n)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("%s%02d", prefix, from+i)
	}
	return tokens
}

func TestMatch_FuzzyThresholdBoundary(t *testing.T) {
	tests := []struct {
		name        string
		master      []string
		bidder      []string
		expectScore int
		expectType  entity.MatchType
	}{
		{
			name:        "score 60 is accepted",
			master:      generatedTokens("mast", 0, 5),
			bidder:      append(generatedTokens("mast", 0, 3), generatedTokens("bidr", 0, 2)...),
			expectScore: 60,
			expectType:  entity.MatchFuzzy,
		},
		{
			name:        "score 59 is rejected",
			master:      generatedTokens("mast", 0, 22),
			bidder:      append(generatedTokens("mast", 0, 13), generatedTokens("bidr", 0, 9)...),
			expectScore: 59,
			expectType:  entity.MatchUnmatched,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masterDesc := strings.Join(tt.master, " ")
			bidderDesc := strings.Join(tt.bidder, " ")
			require.Equal(t, tt.expectScore, DescriptionScore(bidderDesc, masterDesc))

			matcher := newTestMatcher([]entity.MasterBoqItem{{ID: "m1", ItemNumber: "9.9.9", Description: masterDesc}})
			result, err := matcher.Match(context.Background(),
				[]entity.ParsedRow{row(2, "Z1", bidderDesc, 1, "", 10, "")}, standardMappings)
			require.NoError(t, err)
			assert.Equal(t, tt.expectType, result.Items[0].MatchType)
		})
	}
}

func TestMatch_FuzzyTieGoesToFirstMasterItem(t *testing.T) {
	master := []entity.MasterBoqItem{
		{ID: "first", ItemNumber: "1.0.1", Description: "painting internal walls"},
		{ID: "second", ItemNumber: "1.0.2", Description: "painting internal walls"},
	}
	rows := []entity.ParsedRow{row(2, "P-1", "painting internal walls", 1, "", 10, "")}

	result, err := newTestMatcher(master).Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)
	assert.Equal(t, "first", result.Items[0].BoqItemID)

	reversed := []entity.MasterBoqItem{master[1], master[0]}
	result, err = newTestMatcher(reversed).Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)
	assert.Equal(t, "second", result.Items[0].BoqItemID)
}

func TestMatch_ExtraItem(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{
		row(2, "EXT-001", "Night shift allowance", 1, "LS", 5000, ""),
		row(3, "add-7", "Temporary power", 1, "LS", 900, ""),
	}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	for _, item := range result.Items {
		assert.Equal(t, entity.MatchExtra, item.MatchType)
		assert.True(t, item.IsIncluded)
		assert.Empty(t, item.BoqItemID)
		assert.Nil(t, item.ConfidenceScore)
	}
	assert.Equal(t, 2, result.ExtraItems)
}

func TestMatch_Unmatched(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{row(2, "99", "Landscaping", 1, "LS", 100, "")}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	item := result.Items[0]
	assert.Equal(t, entity.MatchUnmatched, item.MatchType)
	assert.False(t, item.IsIncluded)
	assert.Empty(t, item.BoqItemID)
	assert.Equal(t, 1, result.UnmatchedItems)
}

func TestMatch_TalliesAndOrder(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	rows := []entity.ParsedRow{
		row(2, "1.1.1", "", 100, "M3", 40, "SAR"),
		row(3, "Q", "Steel reinforcement bars", 12, "MT", 3000, "SAR"),
		row(4, "EXT-1", "", 1, "LS", 10, "SAR"),
		row(5, "Q2", "Unrelated", 1, "LS", 10, "SAR"),
		row(6, "2.1.1", "", 400, "M2", 20, "SAR"),
	}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	require.Len(t, result.Items, 5)
	for i, item := range result.Items {
		assert.Equal(t, rows[i].RowIndex, item.RowIndex)
	}
	assert.Equal(t, 2, result.ExactMatches)
	assert.Equal(t, 1, result.FuzzyMatches)
	assert.Equal(t, 1, result.ExtraItems)
	assert.Equal(t, 1, result.UnmatchedItems)
}

func TestMatch_FieldExtraction(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	withAmount := row(3, "1.1.2", "", "1,250.5", "m3", "12", "sar")
	withAmount.Cells["F"] = entity.NumberCell(99)

	rows := []entity.ParsedRow{
		row(2, "1.1.1", "", nil, "M3", 45000, "SAR"),
		withAmount,
		row(4, "2.1.1", "", "n/a", "M2", "abc", ""),
	}

	result, err := matcher.Match(context.Background(), rows, standardMappings)
	require.NoError(t, err)

	lumpSum := result.Items[0]
	assert.Equal(t, 1.0, lumpSum.Quantity)
	assert.Equal(t, 45000.0, lumpSum.Amount)

	explicit := result.Items[1]
	assert.Equal(t, 1250.5, explicit.Quantity)
	assert.Equal(t, 12.0, explicit.UnitRate)
	assert.Equal(t, 99.0, explicit.Amount)
	assert.Equal(t, "SAR", explicit.Currency)

	garbage := result.Items[2]
	assert.Equal(t, 0.0, garbage.Quantity)
	assert.Equal(t, 0.0, garbage.UnitRate)
}

func TestMatch_InvalidMapping(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	_, err := matcher.Match(context.Background(), nil, []entity.ColumnMapping{
		{ExcelColumn: "A", TargetField: entity.FieldItemNumber},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidMapping))
}

func TestMatch_CancelledContext(t *testing.T) {
	matcher := newTestMatcher(masterBoq())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := matcher.Match(ctx, []entity.ParsedRow{row(2, "1.1.1", "", 1, "", 1, "")}, standardMappings)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFuzzyScore(t *testing.T) {
	tests := []struct {
		name     string
		bidder   string
		master   string
		expected int
	}{
		{name: "identical", bidder: "granite kitchen worktop", master: "granite kitchen worktop", expected: 100},
		{name: "short tokens ignored", bidder: "a an the of", master: "a an the of", expected: 0},
		{name: "substring counts", bidder: "tiles", master: "ceramic floor tiling tiles", expected: 25},
		{name: "containment counts", bidder: "waterproofing", master: "waterproof", expected: 100},
		{name: "case insensitive", bidder: "CONCRETE", master: "concrete", expected: 100},
		{name: "empty bidder", bidder: "", master: "concrete", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DescriptionScore(tt.bidder, tt.master))
		})
	}
}

func TestMasterItem(t *testing.T) {
	matcher := newTestMatcher(masterBoq())

	item, ok := matcher.MasterItem("boq-3")
	require.True(t, ok)
	assert.Equal(t, "2.1.1", item.ItemNumber)

	_, ok = matcher.MasterItem("missing")
	assert.False(t, ok)
}
