package amount

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int32p(v int32) *int32 { return &v }

func TestParseRaw(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "hex", input: "0xde0b6b3a7640000", expected: "1000000000000000000"},
		{name: "hex uppercase prefix", input: "0XFF", expected: "255"},
		{name: "plain decimal", input: "123456789", expected: "123456789"},
		{name: "empty yields zero", input: "", expected: "0"},
		{name: "bare 0x yields zero", input: "0x", expected: "0"},
		{name: "whitespace only yields zero", input: "  ", expected: "0"},
		{name: "garbage", input: "12abc", wantErr: true},
		{name: "bad hex", input: "0xzz", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := ParseRaw(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v.String())
		})
	}
}

func TestFromHuman(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		decimals int32
		expected string
	}{
		{name: "whole tokens", value: "1.5", decimals: 18, expected: "1500000000000000000"},
		{name: "six decimals", value: "2500.25", decimals: 6, expected: "2500250000"},
		{name: "sub base unit truncated", value: "0.0000001", decimals: 6, expected: "0"},
		{name: "zero", value: "0", decimals: 18, expected: "0"},
		{name: "empty yields zero", value: "", decimals: 18, expected: "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := FromHuman(tc.value, tc.decimals)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v.String())
		})
	}

	_, err := FromHuman("not a number", 18)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		decimals *int32
		expected string
	}{
		{name: "nil decimals renders integer", raw: "12345", decimals: nil, expected: "12345"},
		{name: "zero decimals renders integer", raw: "12345", decimals: int32p(0), expected: "12345"},
		{name: "standard 18", raw: "1500000000000000000", decimals: int32p(18), expected: "1.5"},
		{name: "trailing zeros trimmed", raw: "1000000", decimals: int32p(6), expected: "1"},
		{name: "small fraction", raw: "1", decimals: int32p(18), expected: "0.000000000000000001"},
		{name: "six decimals", raw: "2500250000", decimals: int32p(6), expected: "2500.25"},
		{name: "above cap truncates excess", raw: "1500000000000000000000001", decimals: int32p(24), expected: "1.5"},
		{name: "above cap keeps 18 digits", raw: "1234567890123456789012345678", decimals: int32p(24), expected: "1234.567890123456789012"},
		{name: "zero raw", raw: "0", decimals: int32p(18), expected: "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, ok := new(big.Int).SetString(tc.raw, 10)
			require.True(t, ok)
			assert.Equal(t, tc.expected, Render(raw, tc.decimals))
		})
	}
}

func TestRenderRoundTrip(t *testing.T) {
	// For decimals ≤ 18 the rendering is exact: shifting it back recovers
	// the raw base units.
	raws := []string{"1", "999", "1000000000000000000", "123456789123456789123456789"}
	for _, rawStr := range raws {
		raw, ok := new(big.Int).SetString(rawStr, 10)
		require.True(t, ok)
		rendered := Render(raw, int32p(18))
		back, err := FromHuman(rendered, 18)
		require.NoError(t, err)
		assert.Equal(t, raw.String(), back.String(), "round trip for %s", rawStr)
	}
}
