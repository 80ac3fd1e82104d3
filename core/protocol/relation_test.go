package protocol

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelationRoundTrip(t *testing.T) {
	for id := uint8(0); id <= MaxRelationID; id++ {
		for agg := uint8(0); agg <= MaxAggregate; agg++ {
			b, err := EncodeRelation(id, agg)
			require.NoError(t, err)
			assert.Equal(t, RelationHeader{RelationID: id, Aggregate: agg}, DecodeRelation(b))
		}
	}
}

func TestRelationBitLayout(t *testing.T) {
	b, err := EncodeRelation(65, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0x82), b)

	b, err = EncodeRelation(1, 1)
	require.NoError(t, err)
	assert.Equal(t, byte(0x03), b)
}

func TestRelationRange(t *testing.T) {
	tests := []struct {
		name      string
		id, agg   uint8
		wantField string
	}{
		{name: "relation id too wide", id: 128, agg: 0, wantField: "relationId"},
		{name: "aggregate too wide", id: 0, agg: 2, wantField: "aggregate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeRelation(tt.id, tt.agg)
			var rangeErr *RangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, tt.wantField, rangeErr.Field)
		})
	}
}

func TestDecodeRelationAllBytes(t *testing.T) {
	for i := 0; i < 256; i++ {
		h := DecodeRelation(byte(i))
		b, err := h.Encode()
		require.NoError(t, err)
		assert.Equal(t, byte(i), b)
	}
}
