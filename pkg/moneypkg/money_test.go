package moneypkg

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{name: "Integer", input: "100", want: "100"},
		{name: "Negative", input: "-150.25", want: "-150.25"},
		{name: "FullScale", input: "0.000000000000000001", want: "0.000000000000000001"},
		{name: "TrailingZerosBeyondScale", input: "1.0000000000000000000000", want: "1"},
		{name: "MaxIntegerDigits", input: "999999999999999999", want: "999999999999999999"},
		{name: "TooManyFractionalDigits", input: "0.0000000000000000001", wantErr: ErrOutOfRange},
		{name: "TooManyIntegerDigits", input: "1000000000000000000", wantErr: ErrOutOfRange},
		{name: "Garbage", input: "!@#$", wantErr: ErrInvalidDecimal},
		{name: "Empty", input: "", wantErr: ErrInvalidDecimal},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.True(t, got.Equal(decimal.RequireFromString(tc.want)), "got %s, want %s", got, tc.want)
		})
	}
}
