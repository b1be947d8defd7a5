package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 10.56, Round2(10.555))
	assert.Equal(t, 10.55, Round2(10.554))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, -10.56, Round2(-10.555))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 29.97, LineTotal(9.99, 3))
	assert.Equal(t, 0.3, LineTotal(0.1, 3))
	assert.Equal(t, 0.0, LineTotal(9.99, 0))
}

func TestSum2(t *testing.T) {
	// Classic float drift case: 0.1+0.2 must come out as exactly 0.3.
	assert.Equal(t, 0.3, Sum2(0.1, 0.2))
	assert.Equal(t, 0.0, Sum2())
	assert.Equal(t, 99.0, Sum2(100, -1))
}

func TestCodSplit(t *testing.T) {
	tests := []struct {
		name      string
		total     float64
		advance   float64
		remaining float64
	}{
		{name: "evenly divisible", total: 300, advance: 100, remaining: 200},
		{name: "repeating fraction rounds half-up", total: 100, advance: 33.33, remaining: 66.67},
		{name: "rounds up at the half", total: 50, advance: 16.67, remaining: 33.33},
		{name: "small total", total: 1, advance: 0.33, remaining: 0.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance, remaining := CodSplit(tt.total)
			assert.Equal(t, tt.advance, advance)
			assert.Equal(t, tt.remaining, remaining)
			assert.Equal(t, tt.total, Sum2(advance, remaining), "parts must sum to the total")
		})
	}
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), MinorUnits(100))
	assert.Equal(t, int64(3333), MinorUnits(33.33))
	// 19.99 is not representable in binary floating point; the decimal
	// conversion must still land on 1999, never 1998.
	assert.Equal(t, int64(1999), MinorUnits(19.99))
}
