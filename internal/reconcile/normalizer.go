package reconcile

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/bid-reconciler/internal/domain/entity"
	"github.com/garyjia/bid-reconciler/internal/reference"
)

// MasterLookup resolves master BOQ items by ID
type MasterLookup interface {
	MasterItem(id string) (entity.MasterBoqItem, bool)
}

// Normalizer converts matched items into base currency and master units
type Normalizer struct {
	tables *reference.Tables
	master MasterLookup
	logger *zap.Logger
}

// NewNormalizer creates a normalizer over the given tables and master BOQ
func NewNormalizer(tables *reference.Tables, master MasterLookup, logger *zap.Logger) *Normalizer {
	if tables == nil {
		tables = reference.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{tables: tables, master: master, logger: logger}
}

// Normalize derives normalized rates and amounts for every item
func (n *Normalizer) Normalize(items []entity.MatchedItem, baseCurrency string) entity.NormalizationResult {
	currency := n.DetectCurrency(items, baseCurrency)

	result := entity.NormalizationResult{
		Currency:      currency,
		UomMismatches: []entity.UomMismatch{},
		Items:         make([]entity.NormalizedBidItem, 0, len(items)),
		TablesVersion: n.tables.Version,
	}

	for _, item := range items {
		mismatch := n.uomMismatch(item)
		if mismatch != nil {
			result.UomMismatches = append(result.UomMismatches, *mismatch)
		}

		factor := 1.0
		if mismatch != nil && mismatch.ConversionFactor != nil {
			factor = *mismatch.ConversionFactor
		}

		unitRate := item.UnitRate * currency.FxRate * factor
		comparable := mismatch == nil || (mismatch.CanConvert && mismatch.AutoConvert)

		result.Items = append(result.Items, entity.NormalizedBidItem{
			MatchedItem:        item,
			NormalizedUnitRate: unitRate,
			NormalizedAmount:   unitRate * item.Quantity,
			IsComparable:       comparable && currency.CanConvert,
		})
	}

	n.logger.Debug("Normalization completed",
		zap.String("detected_currency", currency.DetectedCurrency),
		zap.String("base_currency", currency.BaseCurrency),
		zap.Float64("fx_rate", currency.FxRate),
		zap.Int("uom_mismatches", len(result.UomMismatches)))

	return result
}

// DetectCurrency takes the first non-empty currency across items. When none
// is present the sheet is assumed to be priced in the base currency.
func (n *Normalizer) DetectCurrency(items []entity.MatchedItem, baseCurrency string) entity.CurrencyNormalization {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	detected := base
	for _, item := range items {
		if c := strings.ToUpper(strings.TrimSpace(item.Currency)); c != "" {
			detected = c
			break
		}
	}

	cn := entity.CurrencyNormalization{
		DetectedCurrency: detected,
		BaseCurrency:     base,
		FxRate:           1.0,
		CanConvert:       true,
	}
	if detected == base {
		return cn
	}

	rate, err := n.tables.FxRate(detected, base)
	if err != nil {
		if !errors.Is(err, reference.ErrUnknownCurrency) {
			n.logger.Warn("Unexpected FX lookup failure", zap.Error(err))
		}
		cn.CanConvert = false
		return cn
	}
	cn.FxRate = rate
	return cn
}

// uomMismatch returns the mismatch record for an item linked to a master item
// with a different unit, or nil
func (n *Normalizer) uomMismatch(item entity.MatchedItem) *entity.UomMismatch {
	if !item.HasBoqItem() || n.master == nil {
		return nil
	}
	master, ok := n.master.MasterItem(item.BoqItemID)
	if !ok {
		return nil
	}

	bidderUOM := strings.TrimSpace(item.UOM)
	masterUOM := strings.TrimSpace(master.UOM)
	if bidderUOM == "" || masterUOM == "" || strings.EqualFold(bidderUOM, masterUOM) {
		return nil
	}

	mismatch := &entity.UomMismatch{
		ItemID:    item.ID,
		BidderUOM: bidderUOM,
		MasterUOM: masterUOM,
	}
	if factor, ok := n.tables.ConversionFactor(bidderUOM, masterUOM); ok {
		mismatch.ConversionFactor = &factor
		mismatch.CanConvert = true
		mismatch.AutoConvert = true
	} else {
		mismatch.MarkAsNonComparable = true
	}
	return mismatch
}
