package calculation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Textcat/dcf-valuation/internal/domain"
	"github.com/Textcat/dcf-valuation/pkg/mathutil"
)

func smallMonteCarloParams(inputs domain.DCFInputs, fd domain.FinancialData, iterations int) domain.MonteCarloParams {
	p := CreateDefaultMonteCarloParams(inputs, &fd)
	p.Iterations = iterations
	return p
}

func TestMonteCarloOrderingInvariants(t *testing.T) {
	dcf := NewDCFEngine()
	mc := NewMonteCarloEngine(dcf)
	mc.Seed = 123

	fd := testFixture()
	inputs := baseInputs()
	params := smallMonteCarloParams(inputs, fd, 500)

	result := mc.Simulate(params, inputs, fd)

	require.NotEmpty(t, result.ValueDistribution)
	assert.LessOrEqual(t, result.P10, result.P25)
	assert.LessOrEqual(t, result.P25, result.P50)
	assert.LessOrEqual(t, result.P50, result.P75)
	assert.LessOrEqual(t, result.P75, result.P90)
	assert.LessOrEqual(t, result.ValueDistribution[0], result.P10)
	assert.GreaterOrEqual(t, result.ValueDistribution[len(result.ValueDistribution)-1], result.P90)
	assert.True(t, result.Mean > 0)
	assert.True(t, result.StdDev >= 0)

	for _, v := range result.ValueDistribution {
		assert.Greater(t, v, 0.0)
	}
}

func TestMonteCarloZeroSamplesReturnsZeroResult(t *testing.T) {
	dcf := NewDCFEngine()
	mc := NewMonteCarloEngine(dcf)
	mc.Seed = 1

	fd := testFixture()
	inputs := baseInputs()
	inputs.WACC = 0.025
	inputs.TerminalGrowthRate = 0.024 // spread of 0.001 is already below the default minWaccSpread (0.005), though sampled draws can still clear it

	params := smallMonteCarloParams(inputs, fd, 50)
	// Force an impossible feasibility constraint: min spread larger than
	// the entire sampled band could ever produce.
	params.TerminalModel.MinWaccSpread = 10

	result := mc.Simulate(params, inputs, fd)
	assert.Empty(t, result.ValueDistribution)
	assert.Equal(t, domain.MonteCarloResult{}, result)
}

func TestMonteCarloFeasibilityOfAcceptedSamples(t *testing.T) {
	dcf := NewDCFEngine()
	mc := NewMonteCarloEngine(dcf)
	mc.Seed = 99

	fd := testFixture()
	inputs := baseInputs()
	inputs.TerminalMethod = domain.TerminalFade
	params := smallMonteCarloParams(inputs, fd, 300)

	// Drive drawOne directly to inspect accepted draws' feasibility.
	l := mathutil.Cholesky(matrixFromArray(params.Correlation), 1e-2)
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 300; i++ {
		modified, ok := mc.drawOne(rng, l, params, inputs)
		if !ok {
			continue
		}
		g := modified.TerminalGrowthRate
		assert.GreaterOrEqual(t, modified.WACC-g, params.TerminalModel.MinWaccSpread)
		require.Greater(t, modified.SteadyStateROIC, 0.0)
		reinvest := g / modified.SteadyStateROIC
		assert.GreaterOrEqual(t, reinvest, 0.0)
		assert.LessOrEqual(t, reinvest, params.TerminalModel.ROICDriven.MaxReinvestmentRate)
		assert.GreaterOrEqual(t, modified.FadeStartGrowth, g)
		assert.GreaterOrEqual(t, modified.FadeStartROIC, modified.SteadyStateROIC)
	}

	result := mc.Simulate(params, inputs, fd)
	require.NotEmpty(t, result.ValueDistribution)
}

func TestCreateDefaultMonteCarloParamsAnalystDispersion(t *testing.T) {
	fd := testFixture()
	inputs := baseInputs()

	params := CreateDefaultMonteCarloParams(inputs, &fd)
	assert.Greater(t, params.Growth.StdDev, 0.0)
	assert.Greater(t, params.OperatingMargin.StdDev, 0.0)
}

func TestDynamicClampIntersectsBandAndHardBounds(t *testing.T) {
	d := domain.SampleDistribution{Mean: 0.10, StdDev: 1.0, Min: -0.15, Max: 0.30}
	// 3-sigma band is huge, so the hard bounds should win.
	assert.Equal(t, 0.30, dynamicClamp(5, 0.10, d))
	assert.Equal(t, -0.15, dynamicClamp(-5, 0.10, d))
}

func TestMeanForYearFallsBackToLastMean(t *testing.T) {
	d := domain.SampleDistribution{Means: []float64{0.1, 0.2, 0.3}}
	assert.Equal(t, 0.3, meanForYear(d, 10))
	assert.Equal(t, 0.1, meanForYear(d, 0))
}

// TestDrawOneHonorsCrossVariableCorrelation checks that WACC and terminal
// growth actually ride the same correlated vector as year-1 growth/margin,
// rather than being sampled from independent normals.
func TestDrawOneHonorsCrossVariableCorrelation(t *testing.T) {
	dcf := NewDCFEngine()
	mc := NewMonteCarloEngine(dcf)

	fd := testFixture()
	inputs := baseInputs()
	params := smallMonteCarloParams(inputs, fd, 1)
	l := mathutil.Cholesky(matrixFromArray(params.Correlation), 1e-2)
	rng := rand.New(rand.NewSource(7))

	const draws = 4000
	growth := make([]float64, 0, draws)
	wacc := make([]float64, 0, draws)
	terminalGrowth := make([]float64, 0, draws)
	for i := 0; i < draws; i++ {
		modified, ok := mc.drawOne(rng, l, params, inputs)
		if !ok {
			continue
		}
		growth = append(growth, modified.Drivers[0].RevenueGrowth)
		wacc = append(wacc, modified.WACC)
		terminalGrowth = append(terminalGrowth, modified.TerminalGrowthRate)
	}

	require.Greater(t, len(growth), draws/2)

	// Configured correlation matrix: corr(growth, wacc) = -0.20,
	// corr(growth, terminalGrowth) = 0.45.
	assert.Less(t, sampleCorrelation(growth, wacc), -0.05,
		"wacc should be negatively correlated with year-1 growth")
	assert.Greater(t, sampleCorrelation(growth, terminalGrowth), 0.15,
		"terminal growth should be positively correlated with year-1 growth")
}

func sampleCorrelation(xs, ys []float64) float64 {
	mx, my := mathutil.Mean(xs), mathutil.Mean(ys)
	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}
