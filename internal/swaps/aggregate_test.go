package swaps

import (
	"testing"
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	events := []models.SwapEvent{
		{TokenSoldAddress: "0xAA", TokenBoughtAddress: "0xbb", AmountUSD: 10, BlockTime: t2, TokenPair: "AA-BB"},
		{TokenSoldAddress: "0xbb", TokenBoughtAddress: "0xaa", AmountUSD: 5, BlockTime: t1, TokenPair: "AA-BB"},
		{TokenSoldAddress: "0xcc", TokenBoughtAddress: "0xaa", AmountUSD: 1, BlockTime: t1, TokenPair: "AA-CC"},
	}

	got := Aggregate(events)
	require.Len(t, got, 3)

	aa := got["0xaa"]
	assert.Equal(t, int64(2), aa.Buys)
	assert.Equal(t, int64(1), aa.Sells)
	assert.Equal(t, 16.0, aa.TotalVolumeUSD)
	require.NotNil(t, aa.LastSwapTime)
	assert.Equal(t, t2, *aa.LastSwapTime)
	assert.Equal(t, 2, aa.PairCount())

	bb := got["0xbb"]
	assert.Equal(t, int64(1), bb.Buys)
	assert.Equal(t, int64(1), bb.Sells)
	assert.Equal(t, 15.0, bb.TotalVolumeUSD)
	assert.Equal(t, 1, bb.PairCount())

	cc := got["0xcc"]
	assert.Equal(t, int64(0), cc.Buys)
	assert.Equal(t, int64(1), cc.Sells)
	assert.Equal(t, t1, *cc.LastSwapTime)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestRowEvent_ParsesBlockTimeLayouts(t *testing.T) {
	want := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2024-05-01 12:30:00.000 UTC",
		"2024-05-01 12:30:00",
		"2024-05-01T12:30:00Z",
	} {
		ev, err := Row{TokenSoldAddress: "0xA", TokenBoughtAddress: "0xB", BlockTime: s}.Event()
		require.NoError(t, err, s)
		assert.True(t, want.Equal(ev.BlockTime), s)
		assert.Equal(t, "0xa", ev.TokenSoldAddress)
	}
}
