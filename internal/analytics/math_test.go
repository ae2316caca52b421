package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatioNilOnZeroDenominator(t *testing.T) {
	assert.Nil(t, ratio(5, 0, 100))

	got := ratio(5, 10, 100)
	require.NotNil(t, got)
	assert.InDelta(t, 50.0, *got, 0.0001)

	negative := ratio(-5, 10, 100)
	require.NotNil(t, negative)
	assert.InDelta(t, -50.0, *negative, 0.0001)
}

func TestCTR(t *testing.T) {
	got := ctr(11, 1000)
	require.NotNil(t, got)
	assert.InDelta(t, 1.1, *got, 0.0001)

	assert.Nil(t, ctr(0, 0))
}

func TestSlope(t *testing.T) {
	assert.InDelta(t, 2.0, slope([]float64{1, 3, 5, 7}), 0.0001)
	assert.InDelta(t, -1.0, slope([]float64{3, 2, 1}), 0.0001)
	assert.Zero(t, slope([]float64{5, 5, 5}))
	assert.Zero(t, slope([]float64{5}))
	assert.Zero(t, slope(nil))
}

func TestCoefficientOfVariation(t *testing.T) {
	assert.Nil(t, coefficientOfVariation(nil))
	assert.Nil(t, coefficientOfVariation([]float64{10}))
	assert.Nil(t, coefficientOfVariation([]float64{1, -1}), "zero mean")

	got := coefficientOfVariation([]float64{10, 10, 10})
	require.NotNil(t, got)
	assert.Zero(t, *got)

	spread := coefficientOfVariation([]float64{8, 12})
	require.NotNil(t, spread)
	assert.InDelta(t, 0.2, *spread, 0.0001)
}
