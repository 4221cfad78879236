package calculation

import (
	"math"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

// DCFEngine projects the explicit period and terminal value for a single
// set of DCFInputs. It never raises: degenerate denominators (e.g.
// wacc <= g) surface as non-finite fields that downstream layers filter
// or flag.
type DCFEngine struct {
	Logger Logger
}

// NewDCFEngine constructs a DCFEngine with a no-op logger.
func NewDCFEngine() *DCFEngine {
	return &DCFEngine{Logger: NopLogger{}}
}

// Calculate runs the explicit-period projection and the selected terminal
// method, then aggregates enterprise/equity value and implied multiples.
func (e *DCFEngine) Calculate(inputs domain.DCFInputs, fd domain.FinancialData) domain.DCFResult {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}

	projections := make([]domain.YearProjection, 0, n)
	prevRevenue := inputs.BaseRevenue
	explicitPV := 0.0

	var lastNOPAT, lastFCF float64

	for y := 1; y <= n; y++ {
		driver := inputs.Drivers[y-1]
		revenue := prevRevenue * (1 + driver.RevenueGrowth)
		deltaRevenue := revenue - prevRevenue
		operatingIncome := revenue * driver.OperatingMargin
		nopat := operatingIncome * (1 - driver.TaxRate)
		da := revenue * driver.DAPercent
		capex := revenue * driver.CapexPercent
		wcChange := deltaRevenue * driver.WCChangePercent
		fcf := nopat + da - capex - wcChange
		discountFactor := math.Pow(1+inputs.WACC, float64(y))
		pv := fcf / discountFactor

		projections = append(projections, domain.YearProjection{
			Year:            y,
			Revenue:         revenue,
			OperatingIncome: operatingIncome,
			NOPAT:           nopat,
			FCF:             fcf,
			DiscountFactor:  discountFactor,
			PresentValue:    pv,
		})

		explicitPV += pv
		prevRevenue = revenue
		lastNOPAT = nopat
		lastFCF = fcf
	}

	terminalValuePV := e.terminalValuePV(inputs, lastNOPAT, lastFCF, n)

	enterpriseValue := explicitPV + terminalValuePV
	equityValue := enterpriseValue + fd.NetCash()

	fairValuePerShare := 0.0
	if fd.SharesOutstanding > 0 {
		fairValuePerShare = equityValue / fd.SharesOutstanding
	}

	impliedPE := 0.0
	if fd.TTMEPS > 0 {
		impliedPE = fairValuePerShare / fd.TTMEPS
	}

	impliedEVtoFCF := 0.0
	if fd.TTMFCF > 0 {
		impliedEVtoFCF = enterpriseValue / fd.TTMFCF
	}

	terminalValuePercent := 0.0
	if enterpriseValue > 0 {
		terminalValuePercent = 100 * terminalValuePV / enterpriseValue
	}

	return domain.DCFResult{
		EnterpriseValue:      enterpriseValue,
		EquityValue:          equityValue,
		FairValuePerShare:    fairValuePerShare,
		ExplicitPeriodPV:     explicitPV,
		TerminalValuePV:      terminalValuePV,
		TerminalValuePercent: terminalValuePercent,
		ImpliedPE:            impliedPE,
		ImpliedEVtoFCF:       impliedEVtoFCF,
		Projections:          projections,
	}
}

// terminalValuePV computes the present value of the terminal value (i.e.
// already discounted back N years) under the selected method.
func (e *DCFEngine) terminalValuePV(inputs domain.DCFInputs, lastNOPAT, lastFCF float64, n int) float64 {
	wacc := inputs.WACC
	g := inputs.TerminalGrowthRate

	switch inputs.TerminalMethod {
	case domain.TerminalROICDriven:
		reinvest := g / inputs.SteadyStateROIC
		nopatNext := lastNOPAT * (1 + g)
		tv := nopatNext * (1 - reinvest) / (wacc - g)
		return tv / math.Pow(1+wacc, float64(n))

	case domain.TerminalFade:
		return e.fadeTerminalValuePV(inputs, lastNOPAT, n)

	default: // perpetuity
		tv := lastFCF * (1 + g) / (wacc - g)
		return tv / math.Pow(1+wacc, float64(n))
	}
}

// fadeTerminalValuePV implements the linear fade from the explicit
// period's exit growth/ROIC down to steady state over FadeYears, followed
// by a single Gordon tail.
func (e *DCFEngine) fadeTerminalValuePV(inputs domain.DCFInputs, lastNOPAT float64, n int) float64 {
	k := inputs.FadeYears
	wacc := inputs.WACC
	gStart := inputs.FadeStartGrowth
	gEnd := inputs.TerminalGrowthRate
	roicStart := inputs.FadeStartROIC
	roicEnd := inputs.SteadyStateROIC

	nopat := lastNOPAT
	pvSumAtN := 0.0

	for y := 1; y <= k; y++ {
		fadeFactor := 1 - float64(y)/float64(k)
		gy := gEnd + (gStart-gEnd)*fadeFactor
		roicY := roicEnd + (roicStart-roicEnd)*fadeFactor

		reinvestY := 0.0
		if roicY > 0.001 {
			reinvestY = gy / roicY
		}

		nopat = nopat * (1 + gy)
		fcfY := nopat * (1 - reinvestY)

		discountFactor := math.Pow(1+wacc, float64(n+y))
		pvSumAtN += fcfY / discountFactor
	}

	nopatPost := nopat * (1 + gEnd)
	reinvestPost := 0.0
	if roicEnd > 0.001 {
		reinvestPost = gEnd / roicEnd
	}
	fcfPost := nopatPost * (1 - reinvestPost)
	tvPost := fcfPost / (wacc - gEnd)
	pvPostTV := tvPost / math.Pow(1+wacc, float64(n+k))

	// terminalValue is scaled back up by (1+wacc)^N so that the division
	// by (1+wacc)^N below recovers exactly pvSumAtN + pvPostTV.
	terminalValue := (pvSumAtN + pvPostTV) * math.Pow(1+wacc, float64(n))
	return terminalValue / math.Pow(1+wacc, float64(n))
}
