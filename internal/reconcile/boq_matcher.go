package reconcile

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
)

// minTokenLength: tokens of this length or shorter are ignored by fuzzy scoring
const minTokenLength = 3

// MatcherConfig tunes the BOQ matcher
type MatcherConfig struct {
	FuzzyThreshold int      // inclusive acceptance score, 0-100
	ExtraPrefixes  []string // item number prefixes of admitted non-BOQ lines
	Workers        int      // rows classified concurrently
}

// DefaultMatcherConfig returns the standard matcher settings
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		FuzzyThreshold: entity.DefaultFuzzyThreshold,
		ExtraPrefixes:  entity.DefaultExtraPrefixes,
		Workers:        4,
	}
}

// masterEntry caches the tokenized description of a master item
type masterEntry struct {
	item   entity.MasterBoqItem
	tokens []string
}

// Matcher classifies bidder rows against one tender's master BOQ.
// It only reads the master items and is safe for concurrent use.
type Matcher struct {
	cfg          MatcherConfig
	masters      []masterEntry
	byItemNumber map[string]int
	byID         map[string]int
	logger       *zap.Logger
}

// NewMatcher indexes the master BOQ. Master order is preserved: it decides
// fuzzy ties.
func NewMatcher(master []entity.MasterBoqItem, cfg MatcherConfig, logger *zap.Logger) *Matcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Matcher{
		cfg:          cfg,
		masters:      make([]masterEntry, len(master)),
		byItemNumber: make(map[string]int, len(master)),
		byID:         make(map[string]int, len(master)),
		logger:       logger,
	}

	for i, item := range master {
		m.masters[i] = masterEntry{item: item, tokens: tokenize(item.Description)}
		if _, exists := m.byItemNumber[item.ItemNumber]; !exists {
			m.byItemNumber[item.ItemNumber] = i
		}
		if _, exists := m.byID[item.ID]; !exists {
			m.byID[item.ID] = i
		}
	}

	return m
}

// MasterItem looks up a master item by ID
func (m *Matcher) MasterItem(id string) (entity.MasterBoqItem, bool) {
	idx, ok := m.byID[id]
	if !ok {
		return entity.MasterBoqItem{}, false
	}
	return m.masters[idx].item, true
}

// Match extracts every row through the mapping and classifies it.
// The mapping must be valid; rows keep their input order.
func (m *Matcher) Match(ctx context.Context, rows []entity.ParsedRow, mappings []entity.ColumnMapping) (entity.MatchResult, error) {
	if v := ValidateMappings(mappings); !v.IsValid {
		return entity.MatchResult{}, fmt.Errorf("%w: %s", ErrInvalidMapping, strings.Join(v.Errors, "; "))
	}

	extractor := newRowExtractor(mappings)
	items := make([]entity.MatchedItem, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)

	for i := range rows {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			items[i] = m.classify(extractor.extract(rows[i]))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return entity.MatchResult{}, fmt.Errorf("matching aborted: %w", err)
	}

	result := entity.MatchResult{Items: items}
	Tally(&result)

	m.logger.Debug("BOQ matching completed",
		zap.Int("rows", len(rows)),
		zap.Int("exact", result.ExactMatches),
		zap.Int("fuzzy", result.FuzzyMatches),
		zap.Int("extra", result.ExtraItems),
		zap.Int("unmatched", result.UnmatchedItems))

	return result, nil
}

// classify applies exact, fuzzy, extra and unmatched in that order
func (m *Matcher) classify(item entity.MatchedItem) entity.MatchedItem {
	if idx, ok := m.byItemNumber[item.ItemNumber]; ok && item.ItemNumber != "" {
		item.MatchType = entity.MatchExact
		item.BoqItemID = m.masters[idx].item.ID
		item.ConfidenceScore = nil
		item.IsIncluded = true
		return item
	}

	if idx, score, ok := m.bestFuzzy(item.Description); ok {
		item.MatchType = entity.MatchFuzzy
		item.BoqItemID = m.masters[idx].item.ID
		item.ConfidenceScore = &score
		item.IsIncluded = true
		return item
	}

	if m.isExtraItemNumber(item.ItemNumber) {
		item.MatchType = entity.MatchExtra
		item.IsIncluded = true
		return item
	}

	item.MatchType = entity.MatchUnmatched
	item.IsIncluded = false
	return item
}

// bestFuzzy returns the first master item reaching the highest score,
// provided the score meets the threshold
func (m *Matcher) bestFuzzy(description string) (int, int, bool) {
	bidderTokens := tokenize(description)
	if len(bidderTokens) == 0 {
		return -1, 0, false
	}

	bestIdx, bestScore := -1, -1
	for i := range m.masters {
		score := FuzzyScore(bidderTokens, m.masters[i].tokens)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}

	if bestIdx < 0 || bestScore < m.cfg.FuzzyThreshold {
		return -1, 0, false
	}
	return bestIdx, bestScore, true
}

func (m *Matcher) isExtraItemNumber(itemNumber string) bool {
	upper := strings.ToUpper(strings.TrimSpace(itemNumber))
	if upper == "" {
		return false
	}
	for _, prefix := range m.cfg.ExtraPrefixes {
		if prefix != "" && strings.HasPrefix(upper, strings.ToUpper(prefix)) {
			return true
		}
	}
	return false
}

// tokenize lowercases, splits on whitespace and drops short tokens
func tokenize(description string) []string {
	fields := strings.Fields(strings.ToLower(description))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) > minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// FuzzyScore is the token overlap score in [0,100]. A bidder token counts
// when it is a substring of, or contains, any master token.
func FuzzyScore(bidderTokens, masterTokens []string) int {
	denominator := len(bidderTokens)
	if len(masterTokens) > denominator {
		denominator = len(masterTokens)
	}
	if denominator == 0 {
		return 0
	}

	matchCount := 0
	for _, bt := range bidderTokens {
		for _, mt := range masterTokens {
			if strings.Contains(mt, bt) || strings.Contains(bt, mt) {
				matchCount++
				break
			}
		}
	}

	return int(math.Round(float64(matchCount) / float64(denominator) * 100))
}

// DescriptionScore tokenizes both descriptions and scores them
func DescriptionScore(bidderDescription, masterDescription string) int {
	return FuzzyScore(tokenize(bidderDescription), tokenize(masterDescription))
}

// Tally recomputes the match counters from the items
func Tally(result *entity.MatchResult) {
	result.ExactMatches, result.FuzzyMatches, result.UnmatchedItems, result.ExtraItems = 0, 0, 0, 0
	for _, item := range result.Items {
		switch item.MatchType {
		case entity.MatchExact:
			result.ExactMatches++
		case entity.MatchFuzzy:
			result.FuzzyMatches++
		case entity.MatchExtra:
			result.ExtraItems++
		case entity.MatchUnmatched:
			result.UnmatchedItems++
		}
	}
}
