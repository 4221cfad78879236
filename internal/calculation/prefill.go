package calculation

import (
	"github.com/Textcat/dcf-valuation/internal/domain"
	"github.com/Textcat/dcf-valuation/pkg/mathutil"
)

const (
	minFinalWacc           = 0.06
	maxFinalWacc           = 0.15
	defaultFallbackWacc    = 0.10
	defaultFallbackTaxRate = 0.21
)

// PrefillEngine turns a raw FinancialData + WACCInputs bundle into a
// complete, internally consistent DCFInputs set.
type PrefillEngine struct {
	Logger Logger
}

// NewPrefillEngine constructs a PrefillEngine with a no-op logger.
func NewPrefillEngine() *PrefillEngine {
	return &PrefillEngine{Logger: NopLogger{}}
}

// SetLogger swaps the engine's logger. A nil logger resets to NopLogger{}.
func (p *PrefillEngine) SetLogger(l Logger) {
	if l == nil {
		l = NopLogger{}
	}
	p.Logger = l
}

// Prefill is the pure, deterministic entry point: identical inputs yield
// bit-identical outputs.
func (p *PrefillEngine) Prefill(symbol string, fd domain.FinancialData, wacc domain.WACCInputs) (domain.DCFInputs, domain.PrefillAudit) {
	if p.Logger == nil {
		p.Logger = NopLogger{}
	}

	audit := domain.PrefillAudit{}

	costOfEquity := wacc.RiskFreeRate + fd.Beta*wacc.MarketRiskPremium
	audit.CostOfEquity = costOfEquity

	costOfDebt := computeCostOfDebt(fd)
	audit.CostOfDebt = costOfDebt

	totalCapital := fd.MarketCap + fd.TotalDebt
	equityWeight := 0.8
	if totalCapital > 0 {
		equityWeight = fd.MarketCap / totalCapital
	}
	debtWeight := 1 - equityWeight
	audit.EquityWeight = equityWeight
	audit.DebtWeight = debtWeight

	effectiveTaxRate := fd.EffectiveTaxRate
	if !mathutil.IsFinite(effectiveTaxRate) {
		effectiveTaxRate = defaultFallbackTaxRate
	}
	audit.EffectiveTaxRate = effectiveTaxRate

	calculatedWacc := equityWeight*costOfEquity + debtWeight*costOfDebt*(1-effectiveTaxRate)
	audit.CalculatedWacc = calculatedWacc

	finalWacc := mathutil.Clamp(calculatedWacc, minFinalWacc, maxFinalWacc)
	if !mathutil.IsFinite(finalWacc) {
		finalWacc = defaultFallbackWacc
		audit.Warnings = append(audit.Warnings, "WACC calculation produced a non-finite result; falling back to 10% default")
		p.Logger.Warnf("prefill: non-finite WACC for %s, falling back to %.2f", symbol, defaultFallbackWacc)
	}
	audit.FinalWacc = finalWacc

	baseRevenue := fd.LatestAnnualRevenue
	if baseRevenue <= 0 {
		baseRevenue = fd.TTMRevenue
	}
	baseNetIncome := fd.LatestAnnualNetIncome
	if baseNetIncome <= 0 {
		baseNetIncome = fd.TTMNetIncome
	}

	drivers := defaultDrivers(fd, effectiveTaxRate)
	applyAnalystGrowth(drivers, fd)

	inputs := domain.DCFInputs{
		Symbol:              symbol,
		ExplicitPeriodYears: 5,
		Drivers:             drivers,
		TerminalMethod:      domain.TerminalPerpetuity,
		TerminalGrowthRate:  0.025,
		SteadyStateROIC:     fd.HistoricalROIC,
		FadeYears:           10,
		FadeStartGrowth:     drivers[len(drivers)-1].RevenueGrowth,
		FadeStartROIC:       fd.HistoricalROIC,
		WACC:                finalWacc,
		BaseRevenue:         baseRevenue,
		BaseNetIncome:       baseNetIncome,
	}

	if inputs.SteadyStateROIC <= 0 {
		inputs.SteadyStateROIC = 0.10
		inputs.FadeStartROIC = 0.10
	}

	return inputs, audit
}

func computeCostOfDebt(fd domain.FinancialData) float64 {
	if fd.TotalDebt <= 0 || fd.InterestExpense < 0 {
		return 0.06
	}
	r := fd.InterestExpense / fd.TotalDebt
	switch {
	case r < 0.02:
		return 0.04
	case r > 0.15:
		return 0.10
	default:
		return r
	}
}

func defaultDrivers(fd domain.FinancialData, effectiveTaxRate float64) []domain.ValueDrivers {
	drivers := make([]domain.ValueDrivers, 5)
	for i := range drivers {
		d := domain.ValueDrivers{
			GrossMargin:     0.40,
			OperatingMargin: 0.20,
			TaxRate:         0.21,
			DAPercent:       0.03,
			CapexPercent:    0.04,
			WCChangePercent: 0.01,
			RevenueGrowth:   0.10,
		}
		if fd.OperatingMargin > 0 {
			d.OperatingMargin = fd.OperatingMargin
		}
		if fd.GrossMargin > 0 {
			d.GrossMargin = fd.GrossMargin
		}
		d.TaxRate = effectiveTaxRate
		if fd.HistoricalDAPercent > 0 {
			d.DAPercent = fd.HistoricalDAPercent
		}
		if fd.HistoricalCapexPercent > 0 {
			d.CapexPercent = fd.HistoricalCapexPercent
		}
		if fd.HistoricalWCChangePercent > 0 {
			d.WCChangePercent = fd.HistoricalWCChangePercent
		}
		drivers[i] = d
	}
	return drivers
}

// applyAnalystGrowth overlays the growth path implied by the analyst panel
// onto the first N explicit years, mutating drivers in place.
func applyAnalystGrowth(drivers []domain.ValueDrivers, fd domain.FinancialData) {
	n := 5
	if n > len(drivers) {
		n = len(drivers)
	}

	hasPositiveFirstN := len(fd.AnalystEstimates) >= n && n > 0
	if hasPositiveFirstN {
		for i := 0; i < n; i++ {
			if fd.AnalystEstimates[i].RevenueAvg <= 0 {
				hasPositiveFirstN = false
				break
			}
		}
	}

	if hasPositiveFirstN {
		prev := baseRevenueOrFallback(fd)
		last := 0.0
		for i := 0; i < n; i++ {
			growth := fd.AnalystEstimates[i].RevenueAvg/prev - 1
			prev = fd.AnalystEstimates[i].RevenueAvg
			drivers[i].RevenueGrowth = growth
			last = growth
		}
		for i := n; i < len(drivers); i++ {
			last *= 0.9
			drivers[i].RevenueGrowth = last
		}
		return
	}

	if len(fd.AnalystEstimates) >= 2 && fd.AnalystEstimates[0].RevenueAvg > 0 {
		g := fd.AnalystEstimates[1].RevenueAvg/fd.AnalystEstimates[0].RevenueAvg - 1
		multipliers := []float64{1.0, 0.9, 0.8, 0.7, 0.6}
		for i := 0; i < len(drivers) && i < len(multipliers); i++ {
			drivers[i].RevenueGrowth = g * multipliers[i]
		}
	}
}

// baseRevenueOrFallback mirrors the anchor rule used for baseRevenue: the
// analyst growth walk needs the same "prev" starting point.
func baseRevenueOrFallback(f domain.FinancialData) float64 {
	if f.LatestAnnualRevenue > 0 {
		return f.LatestAnnualRevenue
	}
	return f.TTMRevenue
}
