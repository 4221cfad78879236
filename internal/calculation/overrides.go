package calculation

import (
	"fmt"
	"math"

	"github.com/Textcat/dcf-valuation/internal/domain"
	"github.com/Textcat/dcf-valuation/pkg/mathutil"
)

// applyDCFOverrides patches a clone of inputs with the recognized dcf.*
// override tree. A non-finite numeric override, a negative baseRevenue, or
// an out-of-range explicitPeriodYears raises invalid_override. Range-bounded
// fields are clamped to their bounds without a warning; a driver override
// for a year outside the driver sequence is skipped with a warning.
func applyDCFOverrides(inputs domain.DCFInputs, o DCFOverrides, warnings []string) (domain.DCFInputs, []string, error) {
	out := inputs.Clone()

	if o.WACC != nil {
		if !mathutil.IsFinite(*o.WACC) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.wacc", "wacc override must be a finite number")
		}
		out.WACC = mathutil.Clamp(*o.WACC, 0.02, 0.30)
	}

	if o.TerminalGrowthRate != nil {
		if !mathutil.IsFinite(*o.TerminalGrowthRate) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.terminalGrowthRate", "terminalGrowthRate override must be a finite number")
		}
		out.TerminalGrowthRate = mathutil.Clamp(*o.TerminalGrowthRate, -0.05, 0.15)
	}

	if o.SteadyStateROIC != nil {
		if !mathutil.IsFinite(*o.SteadyStateROIC) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.steadyStateROIC", "steadyStateROIC override must be a finite number")
		}
		out.SteadyStateROIC = mathutil.Clamp(*o.SteadyStateROIC, 0.001, 1)
	}

	if o.FadeYears != nil {
		if !mathutil.IsFinite(*o.FadeYears) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.fadeYears", "fadeYears override must be a finite number")
		}
		rounded := int(math.Round(*o.FadeYears))
		if rounded < 1 {
			rounded = 1
		}
		if rounded > 30 {
			rounded = 30
		}
		out.FadeYears = rounded
	}

	if o.FadeStartGrowth != nil {
		if !mathutil.IsFinite(*o.FadeStartGrowth) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.fadeStartGrowth", "fadeStartGrowth override must be a finite number")
		}
		out.FadeStartGrowth = mathutil.Clamp(*o.FadeStartGrowth, -0.05, 0.50)
	}

	if o.FadeStartROIC != nil {
		if !mathutil.IsFinite(*o.FadeStartROIC) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.fadeStartROIC", "fadeStartROIC override must be a finite number")
		}
		out.FadeStartROIC = mathutil.Clamp(*o.FadeStartROIC, 0.001, 1)
	}

	if o.ExplicitPeriodYears != nil {
		y := *o.ExplicitPeriodYears
		if y < 1 || y > len(out.Drivers) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.explicitPeriodYears", fmt.Sprintf("explicitPeriodYears must be in [1, %d]", len(out.Drivers)))
		}
		out.ExplicitPeriodYears = y
	}

	if o.BaseRevenue != nil {
		if !mathutil.IsFinite(*o.BaseRevenue) || *o.BaseRevenue < 0 {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.baseRevenue", "baseRevenue override must be a finite, non-negative number")
		}
		out.BaseRevenue = *o.BaseRevenue
	}

	if o.BaseNetIncome != nil {
		if !mathutil.IsFinite(*o.BaseNetIncome) {
			return domain.DCFInputs{}, warnings, invalidOverride("dcf.baseNetIncome", "baseNetIncome override must be a finite number")
		}
		out.BaseNetIncome = *o.BaseNetIncome
	}

	for _, d := range o.Drivers {
		if d.Year < 1 || d.Year > len(out.Drivers) {
			warnings = append(warnings, fmt.Sprintf("driver override for year=%d ignored: out of range [1, %d]", d.Year, len(out.Drivers)))
			continue
		}
		idx := d.Year - 1
		path := func(field string) string { return fmt.Sprintf("dcf.drivers[year=%d].%s", d.Year, field) }

		if err := patchDriverField(&out.Drivers[idx].RevenueGrowth, d.RevenueGrowth, path("revenueGrowth")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].GrossMargin, d.GrossMargin, path("grossMargin")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].OperatingMargin, d.OperatingMargin, path("operatingMargin")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].TaxRate, d.TaxRate, path("taxRate")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].DAPercent, d.DAPercent, path("daPercent")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].CapexPercent, d.CapexPercent, path("capexPercent")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
		if err := patchDriverField(&out.Drivers[idx].WCChangePercent, d.WCChangePercent, path("wcChangePercent")); err != nil {
			return domain.DCFInputs{}, warnings, err
		}
	}

	return out, warnings, nil
}

func patchDriverField(dst *float64, src *float64, path string) error {
	if src == nil {
		return nil
	}
	if !mathutil.IsFinite(*src) {
		return invalidOverride(path, "driver override must be a finite number")
	}
	*dst = *src
	return nil
}

// applyMonteCarloOverrides clamps iterations and deep-merges the
// remaining override tree onto the default params.
func applyMonteCarloOverrides(params domain.MonteCarloParams, overrides *Overrides, warnings []string) (domain.MonteCarloParams, []string, error) {
	if overrides == nil || overrides.MonteCarlo == nil {
		return params, warnings, nil
	}
	mc := overrides.MonteCarlo

	if mc.Iterations != nil {
		requested := *mc.Iterations
		if requested > maxMonteCarloIterations {
			warnings = append(warnings, fmt.Sprintf("monteCarlo.iterations clamped from %d to %d", requested, maxMonteCarloIterations))
			params.Iterations = maxMonteCarloIterations
		} else if requested < 1 {
			warnings = append(warnings, fmt.Sprintf("monteCarlo.iterations clamped from %d to 1", requested))
			params.Iterations = 1
		} else {
			params.Iterations = requested
		}
	}

	if mc.Params != nil {
		params = deepMergeMonteCarloParams(params, *mc.Params)
	}

	if params.Iterations > maxMonteCarloIterations {
		warnings = append(warnings, fmt.Sprintf("monteCarlo.iterations clamped from %d to %d", params.Iterations, maxMonteCarloIterations))
		params.Iterations = maxMonteCarloIterations
	}

	return params, warnings, nil
}

// deepMergeMonteCarloParams merges non-zero-value leaves of patch onto
// base: object nodes merge field by field, arrays/scalars replace
// wholesale when present. Missing (zero-value) fields mean "keep
// default" — forward-compatible with unrecognized keys the caller may
// have attempted to set, which are simply absent from the typed patch.
func deepMergeMonteCarloParams(base, patch domain.MonteCarloParams) domain.MonteCarloParams {
	if patch.Iterations != 0 {
		base.Iterations = patch.Iterations
	}
	base.Growth = mergeDistribution(base.Growth, patch.Growth)
	base.OperatingMargin = mergeDistribution(base.OperatingMargin, patch.OperatingMargin)
	base.WACC = mergeDistribution(base.WACC, patch.WACC)
	base.TerminalGrowth = mergeDistribution(base.TerminalGrowth, patch.TerminalGrowth)

	if patch.Correlation != ([4][4]float64{}) {
		base.Correlation = patch.Correlation
	}

	if patch.TerminalModel.MinWaccSpread != 0 {
		base.TerminalModel.MinWaccSpread = patch.TerminalModel.MinWaccSpread
	}
	base.TerminalModel.ROICDriven.SteadyStateROIC = mergeDistribution(base.TerminalModel.ROICDriven.SteadyStateROIC, patch.TerminalModel.ROICDriven.SteadyStateROIC)
	if patch.TerminalModel.ROICDriven.MaxReinvestmentRate != 0 {
		base.TerminalModel.ROICDriven.MaxReinvestmentRate = patch.TerminalModel.ROICDriven.MaxReinvestmentRate
	}
	base.TerminalModel.Fade.FadeYears = mergeDistribution(base.TerminalModel.Fade.FadeYears, patch.TerminalModel.Fade.FadeYears)
	base.TerminalModel.Fade.FadeStartGrowth = mergeDistribution(base.TerminalModel.Fade.FadeStartGrowth, patch.TerminalModel.Fade.FadeStartGrowth)
	base.TerminalModel.Fade.FadeStartROIC = mergeDistribution(base.TerminalModel.Fade.FadeStartROIC, patch.TerminalModel.Fade.FadeStartROIC)

	return base
}

func mergeDistribution(base, patch domain.SampleDistribution) domain.SampleDistribution {
	if len(patch.Means) > 0 {
		base.Means = patch.Means
	}
	if patch.Mean != 0 {
		base.Mean = patch.Mean
	}
	if patch.StdDev != 0 {
		base.StdDev = patch.StdDev
	}
	if patch.Min != 0 {
		base.Min = patch.Min
	}
	if patch.Max != 0 {
		base.Max = patch.Max
	}
	if patch.YearCorrelation != 0 {
		base.YearCorrelation = patch.YearCorrelation
	}
	if patch.MeanReversion != 0 {
		base.MeanReversion = patch.MeanReversion
	}
	if patch.Distribution != "" {
		base.Distribution = patch.Distribution
	}
	return base
}
