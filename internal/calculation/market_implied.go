package calculation

import (
	"math"

	"github.com/Textcat/dcf-valuation/internal/domain"
	"github.com/Textcat/dcf-valuation/pkg/mathutil"
)

const (
	impliedGrowthMin         = -0.10
	impliedGrowthMax         = 0.30
	fallbackReinvestmentRate = 0.4
	growthFeasibilityCeiling = 0.15
)

// CalculateMarketImplied reverse-solves the Gordon-growth formula against
// the current market price to extract the market's implied long-run
// assumptions, then flags infeasible implications against industry norms.
func CalculateMarketImplied(fd domain.FinancialData, wacc float64, inputs domain.DCFInputs) domain.MarketImplied {
	ev := fd.CurrentPrice*fd.SharesOutstanding - fd.NetCash()
	benchmark := GetIndustryBenchmark(fd.Industry, fd.Sector)
	thresholds := GetIndustryThresholds(benchmark)

	impliedGrowth := 0.0
	if fd.TTMFCF > 0 && ev > 0 {
		impliedGrowth = mathutil.Clamp((ev*wacc-fd.TTMFCF)/(ev+fd.TTMFCF), impliedGrowthMin, impliedGrowthMax)
	}

	currentOpMargin := 0.0
	if fd.TTMRevenue > 0 {
		currentOpMargin = fd.TTMOperatingIncome / fd.TTMRevenue
	}

	fcfYield := 0.0
	if fd.TTMFCF > 0 && ev > 0 {
		fcfYield = fd.TTMFCF / ev
	}
	requiredFCFYield := math.Max(0, wacc-impliedGrowth)
	multiple := 1.0
	if requiredFCFYield > 0 && fcfYield > 0 {
		multiple = requiredFCFYield / fcfYield
	}
	impliedMargin := currentOpMargin * multiple

	reinvestment := reinvestmentRateFromDrivers(inputs)

	impliedROIC := currentOpMargin * 0.8 * 2
	if impliedGrowth > 0 && reinvestment > 0 {
		impliedROIC = impliedGrowth / reinvestment
	}

	fadeSpeed := 1.0
	if fd.CurrentPE > 0 {
		fadeSpeed = mathutil.Clamp(20/fd.CurrentPE, 0.1, 1.0)
	}

	feasibility := domain.Feasibility{
		MarginExceedsIndustryMax:         impliedMargin > thresholds.MarginError,
		ROICExceedsHistoricalMax:         impliedROIC > thresholds.ROICError,
		GrowthExceedsHistoricalFrequency: impliedGrowth > growthFeasibilityCeiling,
	}

	frequency := historicalFrequencyScore(impliedGrowth, impliedROIC, impliedMargin, benchmark, thresholds)

	return domain.MarketImplied{
		ImpliedGrowthRate:        impliedGrowth,
		ImpliedSteadyStateMargin: impliedMargin,
		ImpliedROIC:              impliedROIC,
		ImpliedFadeSpeed:         fadeSpeed,
		Feasibility:              feasibility,
		HistoricalFrequency:      frequency,
	}
}

// reinvestmentRateFromDrivers implements the documented fallback chain:
// last explicit-year driver first, then the average of the finite rates
// across the explicit-period drivers, then a literal 0.4 constant.
func reinvestmentRateFromDrivers(inputs domain.DCFInputs) float64 {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}
	if n == 0 {
		return fallbackReinvestmentRate
	}
	drivers := inputs.Drivers[:n]

	last := drivers[len(drivers)-1]
	if r := reinvestmentRateFor(last); mathutil.IsFinite(r) && r > 0 {
		return r
	}

	sum, count := 0.0, 0
	for _, d := range drivers {
		r := reinvestmentRateFor(d)
		if mathutil.IsFinite(r) {
			sum += r
			count++
		}
	}
	if count > 0 {
		avg := sum / float64(count)
		if mathutil.IsFinite(avg) && avg > 0 {
			return avg
		}
	}

	return fallbackReinvestmentRate
}

func reinvestmentRateFor(d domain.ValueDrivers) float64 {
	denom := d.OperatingMargin * (1 - d.TaxRate)
	if denom == 0 {
		return math.NaN()
	}
	return (d.CapexPercent - d.DAPercent + d.WCChangePercent) / denom
}

func historicalFrequencyScore(impliedGrowth, impliedROIC, impliedMargin float64, benchmark IndustryBenchmark, thresholds IndustryThresholds) float64 {
	score := 50.0

	switch {
	case impliedGrowth > 0.20:
		score -= 30
	case impliedGrowth > 0.15:
		score -= 20
	case impliedGrowth > 0.10:
		score -= 10
	}

	switch {
	case impliedROIC > thresholds.ROICError:
		score -= 25
	case impliedROIC > thresholds.ROICWarning:
		score -= 15
	case impliedROIC > 1.2*benchmark.AfterTaxROIC:
		score -= 5
	}

	switch {
	case impliedMargin > thresholds.MarginError:
		score -= 20
	case impliedMargin > thresholds.MarginWarning:
		score -= 10
	case impliedMargin > 1.2*benchmark.OperatingMargin:
		score -= 5
	}

	if score < 1 {
		score = 1
	}
	return score
}
