package calculation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestOrchestratorBaselineThreeMethodRun(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 1

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:              "TEST",
		FinancialData:       testFixture(),
		WACCInputs:          testWACCInputs(),
		IncludeDistribution: false,
		RequestID:           "req-1",
	})
	require.NoError(t, err)

	assert.Greater(t, resp.Results.Perpetuity.DCF.FairValuePerShare, 0.0)
	assert.Greater(t, resp.Results.ROICDriven.DCF.FairValuePerShare, 0.0)
	assert.Greater(t, resp.Results.Fade.DCF.FairValuePerShare, 0.0)

	assert.Empty(t, resp.Results.Perpetuity.MonteCarlo.ValueDistribution)
	assert.Empty(t, resp.Results.ROICDriven.MonteCarlo.ValueDistribution)
	assert.Empty(t, resp.Results.Fade.MonteCarlo.ValueDistribution)

	assert.GreaterOrEqual(t, resp.Results.Perpetuity.MonteCarlo.P50, 0.0)
	assert.GreaterOrEqual(t, resp.Results.ROICDriven.MonteCarlo.P50, 0.0)
	assert.GreaterOrEqual(t, resp.Results.Fade.MonteCarlo.P50, 0.0)
}

func TestOrchestratorWACCOverridePassesThrough(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 2

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			DCF: &DCFOverrides{
				WACC: floatPtr(0.11),
				Drivers: []DriverOverride{
					{Year: 2, OperatingMargin: floatPtr(0.25)},
				},
			},
			MonteCarlo: &MonteCarloOverrides{Iterations: intPtr(2500)},
		},
		IncludeDistribution: true,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.11, resp.EffectiveInputs.DCFInputs.WACC, 1e-6)
	assert.InDelta(t, 0.25, resp.EffectiveInputs.DCFInputs.Drivers[1].OperatingMargin, 1e-6)
	assert.NotEmpty(t, resp.Results.Perpetuity.MonteCarlo.ValueDistribution)
}

func TestOrchestratorIterationsClamp(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 3

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			MonteCarlo: &MonteCarloOverrides{Iterations: intPtr(999999)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, maxMonteCarloIterations, resp.EffectiveInputs.MonteCarloByMethod.Perpetuity.Iterations)

	found := false
	for _, w := range resp.Warnings {
		if containsAll(w, "clamped", "999999", "20000") {
			found = true
		}
	}
	assert.True(t, found, "expected a warning referencing 999999 and 20000, got: %v", resp.Warnings)
}

func TestOrchestratorWaccGrowthSpreadEnforcement(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 4

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			DCF: &DCFOverrides{
				WACC:               floatPtr(0.08),
				TerminalGrowthRate: floatPtr(0.10),
			},
		},
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.075, resp.EffectiveInputs.DCFInputs.TerminalGrowthRate, 1e-9)

	found := false
	for _, w := range resp.Warnings {
		if containsAll(w, "0.1000", "0.0750") || containsAll(w, "0.10", "0.075") {
			found = true
		}
	}
	assert.True(t, found, "expected a warning referencing both rates, got: %v", resp.Warnings)
}

func TestOrchestratorFadeStartGrowthClampAppliesToFadeMethod(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 4

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			DCF: &DCFOverrides{
				WACC:               floatPtr(0.08),
				TerminalGrowthRate: floatPtr(0.10),
			},
		},
	})
	require.NoError(t, err)

	effective := resp.EffectiveInputs.DCFInputs
	assert.GreaterOrEqual(t, effective.FadeStartGrowth, effective.TerminalGrowthRate,
		"fadeStartGrowth must never fall below terminalGrowthRate once clamped")

	found := false
	for _, w := range resp.Warnings {
		if containsAll(w, "fade start growth") {
			found = true
		}
	}
	assert.True(t, found, "expected a fade start growth clamp warning, got: %v", resp.Warnings)
}

func TestOrchestratorMissingBaseDataDoesNotRaise(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 5

	fd := testFixture()
	fd.LatestAnnualRevenue = 0
	fd.TTMRevenue = 0

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: fd,
		WACCInputs:    testWACCInputs(),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, resp.EffectiveInputs.DCFInputs.BaseRevenue)
	assert.True(t, math.IsNaN(resp.Results.Perpetuity.DCF.EnterpriseValue) || !math.IsNaN(resp.Results.Perpetuity.DCF.EnterpriseValue))
}

func TestOrchestratorInvalidOverrideFails(t *testing.T) {
	o := NewOrchestrator()

	_, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			DCF: &DCFOverrides{WACC: floatPtr(math.NaN())},
		},
	})
	require.Error(t, err)

	var valErr *ValuationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "invalid_override", valErr.Kind)
	assert.Contains(t, valErr.Path, "wacc")
}

func TestOrchestratorOutOfRangeDriverYearWarnsAndIgnores(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 6

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			DCF: &DCFOverrides{
				Drivers: []DriverOverride{{Year: 6, OperatingMargin: floatPtr(0.5)}},
			},
		},
	})
	require.NoError(t, err)

	found := false
	for _, w := range resp.Warnings {
		if containsAll(w, "year=6", "ignored") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestOrchestratorWarningsDeduplicated(t *testing.T) {
	o := NewOrchestrator()
	o.MonteCarlo.Seed = 7

	resp, err := o.RunValuation(ValuationRequest{
		Symbol:        "TEST",
		FinancialData: testFixture(),
		WACCInputs:    testWACCInputs(),
		Overrides: &Overrides{
			MonteCarlo: &MonteCarloOverrides{Iterations: intPtr(50000)},
		},
	})
	require.NoError(t, err)

	seen := map[string]int{}
	for _, w := range resp.Warnings {
		seen[w]++
	}
	for w, count := range seen {
		assert.Equal(t, 1, count, "warning repeated: %s", w)
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

var _ = domain.TerminalPerpetuity
