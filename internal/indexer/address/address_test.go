package address

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

func TestConvertDocAddress(t *testing.T) {
	addr, err := Parse("1:2")
	require.NoError(t, err)
	assert.Equal(t, DocAddress{Segment: 1, Doc: 2}, addr)
	assert.Equal(t, "1:2", addr.String())
}

func TestRoundTrip(t *testing.T) {
	for _, addr := range []DocAddress{
		{0, 0},
		{0, 1},
		{3, 17},
		{math.MaxUint32, 0},
		{12, math.MaxUint32},
		{math.MaxUint32, math.MaxUint32},
	} {
		parsed, err := Parse(addr.String())
		require.NoError(t, err, addr.String())
		assert.Equal(t, addr, parsed)
	}
}

func TestParseAcceptsLeadingZeros(t *testing.T) {
	addr, err := Parse("007:010")
	require.NoError(t, err)
	assert.Equal(t, DocAddress{Segment: 7, Doc: 10}, addr)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		input   string
		message string
	}{
		{"", "missing"},
		{"12", "missing"},
		{"1:2:3", "too many"},
		{":2", "empty segment ordinal"},
		{"1:", "empty document id"},
		{"a:2", "not a decimal number"},
		{"1:-2", "not a decimal number"},
		{" 1:2", "not a decimal number"},
		{"1:2.5", "not a decimal number"},
		{"4294967296:0", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidAddress)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLess(t *testing.T) {
	assert.True(t, DocAddress{0, 5}.Less(DocAddress{1, 0}))
	assert.True(t, DocAddress{1, 0}.Less(DocAddress{1, 1}))
	assert.False(t, DocAddress{1, 1}.Less(DocAddress{1, 1}))
}

func TestTextMarshaling(t *testing.T) {
	data, err := json.Marshal(map[string]DocAddress{"a": {2, 9}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"2:9"}`, string(data))

	var back map[string]DocAddress
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, DocAddress{2, 9}, back["a"])
}
