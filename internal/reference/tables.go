// Package reference holds the versioned lookup data the normalizer and column
// mapper depend on: FX rates, recognised unit codes and UOM conversion factors.
package reference

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrUnknownCurrency is returned when a currency has no rate in the table
	ErrUnknownCurrency = errors.New("unknown currency")

	// ErrInvalidTables is returned when loaded tables fail validation
	ErrInvalidTables = errors.New("invalid reference tables")
)

// Conversion is a directed UOM conversion: a rate quoted per From unit is
// multiplied by Factor to express it per To unit.
type Conversion struct {
	From   string  `yaml:"from" json:"from"`
	To     string  `yaml:"to" json:"to"`
	Factor float64 `yaml:"factor" json:"factor"`
}

// Tables is one version of the reference data.
// Currencies maps a currency code to its units per common reference unit,
// so the rate from A to B is Currencies[B] / Currencies[A].
type Tables struct {
	Version     string             `yaml:"version" json:"version"`
	Currencies  map[string]float64 `yaml:"currencies" json:"currencies"`
	Units       []string           `yaml:"units" json:"units"`
	Conversions []Conversion       `yaml:"uom_conversions" json:"uomConversions"`

	conversionIndex map[string]float64
	unitIndex       map[string]bool
}

// Default returns the built-in tables
func Default() *Tables {
	t := &Tables{
		Version: "builtin-2024.1",
		Currencies: map[string]float64{
			"USD": 1.0,
			"SAR": 3.75,
			"AED": 3.6725,
			"EUR": 0.92,
			"GBP": 0.79,
		},
		Units: []string{
			"M", "M2", "M3", "LM", "SF", "SQM", "CUM",
			"KG", "MT", "TON", "L",
			"NOS", "NO", "EA", "EACH", "PCS", "SET", "LOT", "LS",
		},
		Conversions: []Conversion{
			{From: "M", To: "LM", Factor: 1},
			{From: "LM", To: "M", Factor: 1},
			{From: "M2", To: "SF", Factor: 0.0929},
			{From: "SF", To: "M2", Factor: 10.7639},
			{From: "M2", To: "SQM", Factor: 1},
			{From: "SQM", To: "M2", Factor: 1},
			{From: "M3", To: "CUM", Factor: 1},
			{From: "CUM", To: "M3", Factor: 1},
			{From: "KG", To: "MT", Factor: 0.001},
			{From: "MT", To: "KG", Factor: 1000},
			{From: "MT", To: "TON", Factor: 1},
			{From: "TON", To: "MT", Factor: 1},
			{From: "NOS", To: "EA", Factor: 1},
			{From: "EA", To: "NOS", Factor: 1},
			{From: "NO", To: "NOS", Factor: 1},
			{From: "NOS", To: "NO", Factor: 1},
			{From: "EACH", To: "EA", Factor: 1},
			{From: "EA", To: "EACH", Factor: 1},
		},
	}
	t.index()
	return t
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func conversionKey(from, to string) string {
	return from + "->" + to
}

// index builds the lookup maps; called after construction or loading
func (t *Tables) index() {
	t.conversionIndex = make(map[string]float64, len(t.Conversions))
	for _, c := range t.Conversions {
		key := conversionKey(normalizeCode(c.From), normalizeCode(c.To))
		if _, exists := t.conversionIndex[key]; !exists {
			t.conversionIndex[key] = c.Factor
		}
	}

	t.unitIndex = make(map[string]bool, len(t.Units))
	for _, u := range t.Units {
		t.unitIndex[normalizeCode(u)] = true
	}

	normalized := make(map[string]float64, len(t.Currencies))
	for code, rate := range t.Currencies {
		normalized[normalizeCode(code)] = rate
	}
	t.Currencies = normalized
}

// Validate checks rates and factors are positive and the version is set
func (t *Tables) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return fmt.Errorf("%w: version is required", ErrInvalidTables)
	}
	if len(t.Currencies) == 0 {
		return fmt.Errorf("%w: at least one currency rate is required", ErrInvalidTables)
	}
	for code, rate := range t.Currencies {
		if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return fmt.Errorf("%w: currency %s has non-positive rate %v", ErrInvalidTables, code, rate)
		}
	}
	for _, c := range t.Conversions {
		if normalizeCode(c.From) == "" || normalizeCode(c.To) == "" {
			return fmt.Errorf("%w: conversion with empty unit", ErrInvalidTables)
		}
		if c.Factor <= 0 || math.IsNaN(c.Factor) || math.IsInf(c.Factor, 0) {
			return fmt.Errorf("%w: conversion %s->%s has non-positive factor %v", ErrInvalidTables, c.From, c.To, c.Factor)
		}
	}
	return nil
}

// HasCurrency reports whether a rate exists for the code
func (t *Tables) HasCurrency(code string) bool {
	_, ok := t.Currencies[normalizeCode(code)]
	return ok
}

// IsCurrencyCode reports whether s is a recognised currency code (case-insensitive)
func (t *Tables) IsCurrencyCode(s string) bool {
	code := normalizeCode(s)
	return code != "" && t.HasCurrency(code)
}

// IsUnitCode reports whether s is a recognised unit of measure (case-insensitive)
func (t *Tables) IsUnitCode(s string) bool {
	code := normalizeCode(s)
	return code != "" && t.unitIndex[code]
}

// FxRate returns the multiplier converting one unit of from into to,
// rounded to 4 decimal places. Equal codes always give exactly 1.
func (t *Tables) FxRate(from, to string) (float64, error) {
	from, to = normalizeCode(from), normalizeCode(to)
	if from == to {
		return 1.0, nil
	}

	fromRate, ok := t.Currencies[from]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, from)
	}
	toRate, ok := t.Currencies[to]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCurrency, to)
	}

	return math.Round(toRate/fromRate*10000) / 10000, nil
}

// ConversionFactor returns the directed factor from one unit to another.
// Identical units (ignoring case) always yield 1.
func (t *Tables) ConversionFactor(from, to string) (float64, bool) {
	from, to = normalizeCode(from), normalizeCode(to)
	if from == to {
		return 1, true
	}
	factor, ok := t.conversionIndex[conversionKey(from, to)]
	return factor, ok
}
