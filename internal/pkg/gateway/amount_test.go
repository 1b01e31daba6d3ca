package gateway

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want int64
	}{
		{"50", 5000},
		{"50.00", 5000},
		{"1.5", 150},
		{"0.01", 1},
		{"19.999", 2000},
		{"0.005", 1},
		{"0", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToMinorUnits(decimal.RequireFromString(tc.in)), tc.in)
	}
}

func TestMinorUnitsRoundTrip(t *testing.T) {
	t.Parallel()

	for _, cents := range []int64{0, 1, 99, 150, 5000, 123456789} {
		assert.Equal(t, cents, ToMinorUnits(FromMinorUnits(cents)))
	}
	assert.True(t, decimal.RequireFromString("1.50").Equal(FromMinorUnits(150)))
}
