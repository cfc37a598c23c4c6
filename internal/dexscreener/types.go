package dexscreener

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pair is one pair record of /tokens/v1/{chainId}/{addresses}.
type Pair struct {
	ChainID     string      `json:"chainId"`
	DexID       string      `json:"dexId"`
	PairAddress string      `json:"pairAddress"`
	BaseToken   Token       `json:"baseToken"`
	QuoteToken  Token       `json:"quoteToken"`
	PriceNative string      `json:"priceNative"`
	PriceUsd    string      `json:"priceUsd"`
	Txns        PairTxns    `json:"txns"`
	Volume      PairVolume  `json:"volume"`
	PriceChange PriceChange `json:"priceChange"`
	Liquidity   *Liquidity  `json:"liquidity"`
}

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type PairTxns struct {
	H24 TxnSummary `json:"h24"`
}

type TxnSummary struct {
	Buys  int64 `json:"buys"`
	Sells int64 `json:"sells"`
}

type PairVolume struct {
	H24 float64 `json:"h24"`
}

type PriceChange struct {
	H24 *float64 `json:"h24"`
}

type Liquidity struct {
	Usd float64 `json:"usd"`
}

// Price parses PriceUsd exactly. Only a positive price counts; DexScreener
// reports "0" for pairs with no trades yet.
func (p Pair) Price() (decimal.Decimal, bool) {
	s := strings.TrimSpace(p.PriceUsd)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

// USD is Price as a float64, or nil when there is no usable price.
func (p Pair) USD() *float64 {
	d, ok := p.Price()
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}
