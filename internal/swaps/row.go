package swaps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
)

// PageSource is an offset/limit paginated swap feed.
type PageSource interface {
	FetchPage(ctx context.Context, offset, limit int) ([]Row, error)
}

// Row is one raw swap feed row.
type Row struct {
	TokenSoldAddress   string   `json:"token_sold_address"`
	TokenBoughtAddress string   `json:"token_bought_address"`
	TokenSoldSymbol    string   `json:"token_sold_symbol"`
	TokenBoughtSymbol  string   `json:"token_bought_symbol"`
	AmountUSD          *float64 `json:"amount_usd"`
	BlockTime          string   `json:"block_time"`
	TokenPair          string   `json:"token_pair"`
	TxHash             string   `json:"tx_hash"`
	Project            string   `json:"project"`
}

var blockTimeLayouts = []string{
	"2006-01-02 15:04:05.000 MST",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseBlockTime(s string) (time.Time, error) {
	for _, layout := range blockTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised block_time %q", s)
}

// Event validates r. Rows without both token addresses or a parsable block
// time are rejected.
func (r Row) Event() (models.SwapEvent, error) {
	sold := models.NormalizeAddress(r.TokenSoldAddress)
	bought := models.NormalizeAddress(r.TokenBoughtAddress)
	if sold == "" {
		return models.SwapEvent{}, fmt.Errorf("missing token_sold_address")
	}
	if bought == "" {
		return models.SwapEvent{}, fmt.Errorf("missing token_bought_address")
	}
	bt := strings.TrimSpace(r.BlockTime)
	if bt == "" {
		return models.SwapEvent{}, fmt.Errorf("missing block_time")
	}
	ts, err := parseBlockTime(bt)
	if err != nil {
		return models.SwapEvent{}, err
	}

	var amount float64
	if r.AmountUSD != nil {
		amount = *r.AmountUSD
	}
	return models.SwapEvent{
		TokenSoldAddress:   sold,
		TokenBoughtAddress: bought,
		TokenSoldSymbol:    r.TokenSoldSymbol,
		TokenBoughtSymbol:  r.TokenBoughtSymbol,
		AmountUSD:          amount,
		BlockTime:          ts,
		TokenPair:          strings.TrimSpace(r.TokenPair),
		TxHash:             r.TxHash,
		Project:            r.Project,
	}, nil
}
