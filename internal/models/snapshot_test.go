package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotClone(t *testing.T) {
	s := &Snapshot{
		Records:      []TokenRecord{{Address: "0xaa"}},
		Success:      true,
		SourceCounts: SourceCounts{AttributionBoth: 1},
	}

	c := s.Clone()
	c.Records[0].Address = "0xbb"
	c.SourceCounts[AttributionBoth] = 7

	assert.Equal(t, "0xaa", s.Records[0].Address)
	assert.Equal(t, 1, s.SourceCounts[AttributionBoth])
	assert.True(t, c.Success)
}

func TestSnapshotClone_Nil(t *testing.T) {
	var s *Snapshot
	c := s.Clone()
	assert.NotNil(t, c.Records)
	assert.Empty(t, c.Records)
	assert.False(t, c.Success)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xAbCdEf\n"))
	assert.Equal(t, "", NormalizeAddress("   "))
}
