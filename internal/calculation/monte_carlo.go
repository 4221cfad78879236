package calculation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/Textcat/dcf-valuation/internal/domain"
	"github.com/Textcat/dcf-valuation/pkg/mathutil"
)

const maxSampleAttempts = 25

// varIdx names the fixed order of the four correlated variables the
// correlation matrix in MonteCarloParams is defined over.
const (
	varGrowth = iota
	varMargin
	varWacc
	varTerminalGrowth
)

// MonteCarloEngine samples correlated driver paths, rejection-samples
// against terminal-model feasibility, and feeds accepted samples into the
// DCF engine to build a fair-value-per-share distribution.
//
// Random state is held per call (a fresh *rand.Rand per Simulate
// invocation), never in a shared/process-global generator, so parallel
// callers never share mutable state. See DESIGN.md for the tradeoff.
type MonteCarloEngine struct {
	DCF    *DCFEngine
	Logger Logger
	// Seed, when non-zero, makes Simulate reproducible. Zero falls back
	// to a fixed default source — see DESIGN.md's Open Question entry
	// on Monte Carlo determinism/seeding.
	Seed int64
}

// NewMonteCarloEngine constructs a MonteCarloEngine with a no-op logger.
func NewMonteCarloEngine(dcf *DCFEngine) *MonteCarloEngine {
	return &MonteCarloEngine{DCF: dcf, Logger: NopLogger{}}
}

// CreateDefaultMonteCarloParams derives the default sampling configuration
// from the assumption set, then overlays analyst-panel dispersion onto the
// year-1 growth and margin spreads when an estimate is available.
func CreateDefaultMonteCarloParams(inputs domain.DCFInputs, fd *domain.FinancialData) domain.MonteCarloParams {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}

	growthMeans := make([]float64, n)
	marginMeans := make([]float64, n)
	for i := 0; i < n; i++ {
		growthMeans[i] = inputs.Drivers[i].RevenueGrowth
		marginMeans[i] = inputs.Drivers[i].OperatingMargin
	}

	year1Growth := 0.0
	year1Margin := 0.0
	if n > 0 {
		year1Growth = inputs.Drivers[0].RevenueGrowth
		year1Margin = inputs.Drivers[0].OperatingMargin
	}

	growthStdDev := math.Max(0.002, math.Abs(year1Growth)*0.35)
	marginStdDev := math.Max(0.002, math.Abs(year1Margin)*0.20)

	params := domain.MonteCarloParams{
		Iterations: 10000,
		Growth: domain.SampleDistribution{
			Means:           growthMeans,
			StdDev:          growthStdDev,
			Min:             -0.15,
			Max:             0.30,
			YearCorrelation: 0.5,
			MeanReversion:   0.35,
		},
		OperatingMargin: domain.SampleDistribution{
			Means:           marginMeans,
			StdDev:          marginStdDev,
			Min:             0.01,
			Max:             0.60,
			YearCorrelation: 0.5,
			MeanReversion:   0.35,
		},
		WACC: domain.SampleDistribution{
			Mean:         inputs.WACC,
			StdDev:       math.Max(0.0015, math.Abs(inputs.WACC)*0.15),
			Min:          0.02,
			Max:          0.20,
			Distribution: "lognormal",
		},
		TerminalGrowth: domain.SampleDistribution{
			Mean:   inputs.TerminalGrowthRate,
			StdDev: math.Max(0.001, math.Abs(inputs.TerminalGrowthRate)*0.2),
			Min:    0,
			Max:    0.06,
		},
		Correlation: [4][4]float64{
			{1, 0.35, -0.20, 0.45},
			{0.35, 1, -0.15, 0.25},
			{-0.20, -0.15, 1, -0.10},
			{0.45, 0.25, -0.10, 1},
		},
		TerminalModel: domain.TerminalModelParams{
			MinWaccSpread: 0.005,
			ROICDriven:    ROICDrivenParamsFor(inputs),
			Fade:          FadeParamsFor(inputs),
		},
	}

	if fd != nil {
		applyAnalystDispersion(&params, *fd, year1Growth, year1Margin)
	}

	return params
}

// ROICDrivenParamsFor builds the roic-driven sampled parameter set.
func ROICDrivenParamsFor(inputs domain.DCFInputs) domain.ROICDrivenParams {
	return domain.ROICDrivenParams{
		SteadyStateROIC: domain.SampleDistribution{
			Mean:   inputs.SteadyStateROIC,
			StdDev: math.Max(0.005, math.Abs(inputs.SteadyStateROIC)*0.25),
			Min:    0.03,
			Max:    0.50,
		},
		MaxReinvestmentRate: 0.80,
	}
}

// FadeParamsFor builds the fade sampled parameter set.
func FadeParamsFor(inputs domain.DCFInputs) domain.FadeParams {
	return domain.FadeParams{
		FadeYears: domain.SampleDistribution{
			Mean:   float64(inputs.FadeYears),
			StdDev: math.Max(1, math.Abs(float64(inputs.FadeYears))*0.2),
			Min:    3,
			Max:    20,
		},
		FadeStartGrowth: domain.SampleDistribution{
			Mean:   inputs.FadeStartGrowth,
			StdDev: math.Max(0.005, math.Abs(inputs.FadeStartGrowth)*0.2),
			Min:    0,
			Max:    0.40,
		},
		FadeStartROIC: domain.SampleDistribution{
			Mean:   inputs.FadeStartROIC,
			StdDev: math.Max(0.005, math.Abs(inputs.FadeStartROIC)*0.2),
			Min:    0.03,
			Max:    0.60,
		},
	}
}

func applyAnalystDispersion(params *domain.MonteCarloParams, fd domain.FinancialData, year1Growth, year1Margin float64) {
	if len(fd.AnalystEstimates) == 0 {
		return
	}
	fy1 := fd.AnalystEstimates[0]

	if fy1.RevenueHigh > 0 && fy1.RevenueLow > 0 && fy1.RevenueAvg > 0 && fd.TTMRevenue > 0 {
		rangeWidth := (fy1.RevenueHigh - fy1.RevenueLow) / fd.TTMRevenue
		floor := params.Growth.StdDev
		cap := math.Abs(year1Growth) * 0.8
		params.Growth.StdDev = mathutil.Clamp(rangeWidth/4, floor, math.Max(floor, cap))
	}

	if fy1.EPSHigh > 0 && fy1.EPSLow > 0 && fy1.EPSAvg > 0 {
		epsRange := (fy1.EPSHigh - fy1.EPSLow) / fy1.EPSAvg
		scaled := epsRange * year1Margin
		cap := math.Abs(year1Margin) * 0.8
		params.OperatingMargin.StdDev = math.Min(math.Abs(scaled), cap)
		if params.OperatingMargin.StdDev <= 0 {
			params.OperatingMargin.StdDev = math.Max(0.002, math.Abs(year1Margin)*0.20)
		}
	}
}

// sampleState carries one iteration's evolving AR(1) shock/value state for
// the two per-year paths (growth, margin).
type sampleState struct {
	prevGrowthShock float64
	prevMarginShock float64
	prevGrowth      float64
	prevMargin      float64
}

// Simulate runs the full Monte Carlo loop: iterations attempts of
// correlated sampling, feasibility rejection, and DCF evaluation.
func (m *MonteCarloEngine) Simulate(params domain.MonteCarloParams, inputs domain.DCFInputs, fd domain.FinancialData) domain.MonteCarloResult {
	if m.Logger == nil {
		m.Logger = NopLogger{}
	}
	rng := rand.New(rand.NewSource(m.seed()))

	l := mathutil.Cholesky(matrixFromArray(params.Correlation), 1e-2)

	samples := make([]float64, 0, params.Iterations)

	for iter := 0; iter < params.Iterations; iter++ {
		for attempt := 0; attempt < maxSampleAttempts; attempt++ {
			modified, ok := m.drawOne(rng, l, params, inputs)
			if !ok {
				continue
			}
			result := m.DCF.Calculate(modified, fd)
			if mathutil.IsFinite(result.FairValuePerShare) && result.FairValuePerShare > 0 {
				samples = append(samples, result.FairValuePerShare)
			}
			break
		}
	}

	return aggregate(samples, fd.CurrentPrice)
}

func (m *MonteCarloEngine) seed() int64 {
	if m.Seed != 0 {
		return m.Seed
	}
	return defaultSeedFunc()
}

// defaultSeedFunc supplies the seed used when Seed is zero. It returns a
// fixed constant, so a zero-Seed engine is reproducible across runs.
var defaultSeedFunc = func() int64 { return 1 }

// drawOne draws one candidate sample, applies feasibility rejection, and
// returns the modified DCFInputs ready for evaluation.
func (m *MonteCarloEngine) drawOne(rng *rand.Rand, l [][]float64, params domain.MonteCarloParams, inputs domain.DCFInputs) (domain.DCFInputs, bool) {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}

	growthPath := make([]float64, n)
	marginPath := make([]float64, n)

	// One correlated draw per iteration carries the cross-variable
	// structure (growth, margin, WACC, terminal growth); WACC and terminal
	// growth are scalars for the whole path, so they consume this vector's
	// components once rather than being redrawn (and discarded) per year.
	z0 := mathutil.CorrelatedNormals(l, []float64{
		mathutil.StandardNormal(rng),
		mathutil.StandardNormal(rng),
		mathutil.StandardNormal(rng),
		mathutil.StandardNormal(rng),
	})
	zWacc := z0[varWacc]
	zTerminalGrowth := z0[varTerminalGrowth]

	var state sampleState

	for y := 0; y < n; y++ {
		z := z0
		if y > 0 {
			z = mathutil.CorrelatedNormals(l, []float64{
				mathutil.StandardNormal(rng),
				mathutil.StandardNormal(rng),
				mathutil.StandardNormal(rng),
				mathutil.StandardNormal(rng),
			})
		}

		growthMean := meanForYear(params.Growth, y)
		marginMean := meanForYear(params.OperatingMargin, y)

		if y == 0 {
			growthPath[y] = dynamicClamp(growthMean+z[varGrowth]*params.Growth.StdDev, growthMean, params.Growth)
			marginPath[y] = dynamicClamp(marginMean+z[varMargin]*params.OperatingMargin.StdDev, marginMean, params.OperatingMargin)
			state.prevGrowth = growthPath[y]
			state.prevMargin = marginPath[y]
			continue
		}

		gCorr := params.Growth.YearCorrelation
		mCorr := params.OperatingMargin.YearCorrelation

		state.prevGrowthShock = gCorr*state.prevGrowthShock + math.Sqrt(1-gCorr*gCorr)*z[varGrowth]
		state.prevMarginShock = mCorr*state.prevMarginShock + math.Sqrt(1-mCorr*mCorr)*z[varMargin]

		blendedGrowth := growthMean + (state.prevGrowth-growthMean)*(1-params.Growth.MeanReversion) + state.prevGrowthShock*params.Growth.StdDev
		blendedMargin := marginMean + (state.prevMargin-marginMean)*(1-params.OperatingMargin.MeanReversion) + state.prevMarginShock*params.OperatingMargin.StdDev

		growthPath[y] = dynamicClamp(blendedGrowth, growthMean, params.Growth)
		marginPath[y] = dynamicClamp(blendedMargin, marginMean, params.OperatingMargin)

		state.prevGrowth = growthPath[y]
		state.prevMargin = marginPath[y]
	}

	var wacc float64
	if params.WACC.Distribution == "lognormal" {
		wacc = mathutil.Lognormal(zWacc, params.WACC.Mean, params.WACC.StdDev)
	} else {
		wacc = params.WACC.Mean + zWacc*params.WACC.StdDev
	}
	wacc = dynamicClamp(wacc, params.WACC.Mean, params.WACC)

	terminalGrowth := dynamicClamp(params.TerminalGrowth.Mean+zTerminalGrowth*params.TerminalGrowth.StdDev, params.TerminalGrowth.Mean, params.TerminalGrowth)

	roicSS := dynamicClamp(params.TerminalModel.ROICDriven.SteadyStateROIC.Mean+mathutil.StandardNormal(rng)*params.TerminalModel.ROICDriven.SteadyStateROIC.StdDev, params.TerminalModel.ROICDriven.SteadyStateROIC.Mean, params.TerminalModel.ROICDriven.SteadyStateROIC)

	fadeYearsF := dynamicClamp(params.TerminalModel.Fade.FadeYears.Mean+mathutil.StandardNormal(rng)*params.TerminalModel.Fade.FadeYears.StdDev, params.TerminalModel.Fade.FadeYears.Mean, params.TerminalModel.Fade.FadeYears)
	fadeYears := int(math.Round(fadeYearsF))
	if fadeYears < 1 {
		fadeYears = 1
	}

	fadeStartGrowth := dynamicClamp(params.TerminalModel.Fade.FadeStartGrowth.Mean+mathutil.StandardNormal(rng)*params.TerminalModel.Fade.FadeStartGrowth.StdDev, params.TerminalModel.Fade.FadeStartGrowth.Mean, params.TerminalModel.Fade.FadeStartGrowth)
	fadeStartROIC := dynamicClamp(params.TerminalModel.Fade.FadeStartROIC.Mean+mathutil.StandardNormal(rng)*params.TerminalModel.Fade.FadeStartROIC.StdDev, params.TerminalModel.Fade.FadeStartROIC.Mean, params.TerminalModel.Fade.FadeStartROIC)

	if !feasible(inputs.TerminalMethod, wacc, terminalGrowth, roicSS, fadeStartGrowth, fadeStartROIC, params) {
		return domain.DCFInputs{}, false
	}

	modified := inputs.Clone()
	modified.WACC = wacc
	modified.TerminalGrowthRate = terminalGrowth
	modified.SteadyStateROIC = roicSS
	modified.FadeYears = fadeYears
	modified.FadeStartGrowth = fadeStartGrowth
	modified.FadeStartROIC = fadeStartROIC
	for y := 0; y < n; y++ {
		modified.Drivers[y].RevenueGrowth = growthPath[y]
		modified.Drivers[y].OperatingMargin = marginPath[y]
	}

	return modified, true
}

func feasible(method domain.TerminalMethod, wacc, g, roicSS, fadeStartGrowth, fadeStartROIC float64, params domain.MonteCarloParams) bool {
	if wacc-g < params.TerminalModel.MinWaccSpread {
		return false
	}
	if method == domain.TerminalROICDriven || method == domain.TerminalFade {
		if roicSS <= 0 {
			return false
		}
		reinvest := g / roicSS
		if reinvest < 0 || reinvest > params.TerminalModel.ROICDriven.MaxReinvestmentRate {
			return false
		}
	}
	if method == domain.TerminalFade {
		if fadeStartGrowth < g || fadeStartROIC < roicSS {
			return false
		}
	}
	return true
}

func meanForYear(d domain.SampleDistribution, year int) float64 {
	if len(d.Means) == 0 {
		return d.Mean
	}
	if year < len(d.Means) {
		return d.Means[year]
	}
	return d.Means[len(d.Means)-1]
}

// dynamicClamp intersects the 3-sigma band around mean with the hard
// [min, max] rectangle.
func dynamicClamp(v, mean float64, d domain.SampleDistribution) float64 {
	lo := math.Max(d.Min, mean-3*d.StdDev)
	hi := math.Min(d.Max, mean+3*d.StdDev)
	return mathutil.Clamp(v, lo, hi)
}

func matrixFromArray(a [4][4]float64) [][]float64 {
	out := make([][]float64, 4)
	for i := range a {
		out[i] = append([]float64(nil), a[i][:]...)
	}
	return out
}

func aggregate(samples []float64, currentPrice float64) domain.MonteCarloResult {
	n := len(samples)
	if n == 0 {
		return domain.MonteCarloResult{}
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	belowCurrent := 0
	for _, v := range sorted {
		if v < currentPrice {
			belowCurrent++
		}
	}

	return domain.MonteCarloResult{
		ValueDistribution:      sorted,
		P10:                    mathutil.Percentile(sorted, 0.10),
		P25:                    mathutil.Percentile(sorted, 0.25),
		P50:                    mathutil.Percentile(sorted, 0.50),
		P75:                    mathutil.Percentile(sorted, 0.75),
		P90:                    mathutil.Percentile(sorted, 0.90),
		Mean:                   mathutil.Mean(sorted),
		StdDev:                 mathutil.PopulationStdDev(sorted),
		CurrentPricePercentile: 100 * float64(belowCurrent) / float64(n),
	}
}
