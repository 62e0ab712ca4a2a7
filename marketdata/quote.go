/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package marketdata

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrInvalidSymbol is returned when the requested symbol is not a well-formed instrument name.
var ErrInvalidSymbol = errors.New("invalid instrument symbol")

var symbolRegexp = regexp.MustCompile(`^[A-Z0-9]{3,12}$`)

// Quote is a price snapshot of an instrument.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Price      float64   `json:"price"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Spread     float64   `json:"spread"`
	Timestamp  time.Time `json:"timestamp"`
	DataSource string    `json:"dataSource"`
}

// AssetClass determines how long a quote of an instrument may be served from cache.
type AssetClass string

// Asset classes.
const (
	AssetClassMetal     AssetClass = "metal"
	AssetClassCommodity AssetClass = "commodity"
	AssetClassOther     AssetClass = "other"
)

// ClassifySymbol returns the asset class of the instrument.
func ClassifySymbol(symbol string) AssetClass {
	switch symbol {
	case "XAUUSD", "XAGUSD":
		return AssetClassMetal
	case "USOIL":
		return AssetClassCommodity
	default:
		return AssetClassOther
	}
}

// NormalizeSymbol upper-cases the symbol and checks that it looks like an instrument name.
func NormalizeSymbol(symbol string) (string, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if !symbolRegexp.MatchString(symbol) {
		return "", ErrInvalidSymbol
	}
	return symbol, nil
}

// Typical spreads in pips (points for metals, indices and commodities).
var typicalSpreads = map[string]float64{
	"EURUSD": 0.8, "GBPUSD": 1.2, "USDJPY": 0.9, "AUDUSD": 1.1,
	"USDCHF": 1.0, "USDCAD": 1.3, "NZDUSD": 1.4,
	"EURGBP": 1.1, "EURJPY": 1.2, "GBPJPY": 1.8,
	"XAUUSD": 35, "XAGUSD": 3, "USOIL": 3,
}

const defaultSpreadPips = 2.0

func pipValue(symbol string) float64 {
	switch {
	case ClassifySymbol(symbol) != AssetClassOther:
		return 0.01
	case strings.HasSuffix(symbol, "JPY"):
		return 0.01
	default:
		return 0.0001
	}
}

// newQuoteFromPrice builds a quote around the mid price using the typical spread of the instrument.
func newQuoteFromPrice(symbol string, price float64, ts time.Time, source string) Quote {
	spread, ok := typicalSpreads[symbol]
	if !ok {
		spread = defaultSpreadPips
	}
	half := spread * pipValue(symbol) / 2
	return Quote{
		Symbol:     symbol,
		Price:      price,
		Bid:        price - half,
		Ask:        price + half,
		Spread:     spread,
		Timestamp:  ts,
		DataSource: source,
	}
}
