package calculation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

const (
	minWaccSpreadDefault    = 0.005
	apiVersion              = "1.0"
	coreVersion             = "1.0.0"
	maxMonteCarloIterations = 20000
)

// ValuationRequest is the orchestrator's sole entry point payload.
type ValuationRequest struct {
	Symbol              string
	FinancialData       domain.FinancialData
	WACCInputs          domain.WACCInputs
	Overrides           *Overrides
	IncludeDistribution bool
	RequestID           string
}

// Overrides is the recognized request-level option tree. Every pointer
// field is a no-op when nil ("absent is a no-op").
type Overrides struct {
	DCF        *DCFOverrides        `yaml:"dcf,omitempty"`
	MonteCarlo *MonteCarloOverrides `yaml:"monteCarlo,omitempty"`
}

// DCFOverrides patches a clone of the prefilled DCFInputs.
type DCFOverrides struct {
	WACC                *float64         `yaml:"wacc,omitempty"`
	TerminalGrowthRate  *float64         `yaml:"terminalGrowthRate,omitempty"`
	SteadyStateROIC     *float64         `yaml:"steadyStateROIC,omitempty"`
	FadeYears           *float64         `yaml:"fadeYears,omitempty"`
	FadeStartGrowth     *float64         `yaml:"fadeStartGrowth,omitempty"`
	FadeStartROIC       *float64         `yaml:"fadeStartROIC,omitempty"`
	ExplicitPeriodYears *int             `yaml:"explicitPeriodYears,omitempty"`
	BaseRevenue         *float64         `yaml:"baseRevenue,omitempty"`
	BaseNetIncome       *float64         `yaml:"baseNetIncome,omitempty"`
	Drivers             []DriverOverride `yaml:"drivers,omitempty"`
}

// DriverOverride patches one year (1-indexed) of the driver sequence.
// Nil fields are left unchanged.
type DriverOverride struct {
	Year            int      `yaml:"year"`
	RevenueGrowth   *float64 `yaml:"revenueGrowth,omitempty"`
	GrossMargin     *float64 `yaml:"grossMargin,omitempty"`
	OperatingMargin *float64 `yaml:"operatingMargin,omitempty"`
	TaxRate         *float64 `yaml:"taxRate,omitempty"`
	DAPercent       *float64 `yaml:"daPercent,omitempty"`
	CapexPercent    *float64 `yaml:"capexPercent,omitempty"`
	WCChangePercent *float64 `yaml:"wcChangePercent,omitempty"`
}

// MonteCarloOverrides is a recursive patch onto the default Monte Carlo
// parameter tree: object nodes merge, arrays/scalars replace, missing
// keys mean "keep default".
type MonteCarloOverrides struct {
	Iterations *int                     `yaml:"iterations,omitempty"`
	Params     *domain.MonteCarloParams `yaml:"params,omitempty"` // when set, deep-merged onto the default
}

// ValuationError is the orchestrator's single raising case: a
// structurally invalid override (non-finite, a negative baseRevenue, or
// explicitPeriodYears out of range). Every other soft problem accumulates in Warnings instead.
type ValuationError struct {
	Kind string
	Path string
	Msg  string
}

func (e *ValuationError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Msg, e.Path)
}

func invalidOverride(path, msg string) *ValuationError {
	return &ValuationError{Kind: "invalid_override", Path: path, Msg: msg}
}

// Orchestrator is the request-level glue: prefill -> overrides ->
// {DCF, Layer B, Monte Carlo} per method -> Layer C -> response.
type Orchestrator struct {
	Prefill    *PrefillEngine
	DCF        *DCFEngine
	MonteCarlo *MonteCarloEngine
	Logger     Logger
}

// NewOrchestrator wires the default component set together.
func NewOrchestrator() *Orchestrator {
	dcf := NewDCFEngine()
	return &Orchestrator{
		Prefill:    NewPrefillEngine(),
		DCF:        dcf,
		MonteCarlo: NewMonteCarloEngine(dcf),
		Logger:     NopLogger{},
	}
}

// nowFunc is a package-level indirection so the orchestrator's
// meta.generatedAt timestamp can be pinned in tests.
var nowFunc = time.Now

// RunValuation executes the full pipeline: prefill, override application,
// sanity clamps, per-method DCF/Layer B/Monte Carlo, Layer C, and
// response assembly.
func (o *Orchestrator) RunValuation(req ValuationRequest) (*domain.AgentValuationResponse, error) {
	if o.Logger == nil {
		o.Logger = NopLogger{}
	}

	prefilled, audit := o.Prefill.Prefill(req.Symbol, req.FinancialData, req.WACCInputs)
	warnings := append([]string(nil), audit.Warnings...)

	effective := prefilled.Clone()
	if req.Overrides != nil && req.Overrides.DCF != nil {
		var err error
		effective, warnings, err = applyDCFOverrides(effective, *req.Overrides.DCF, warnings)
		if err != nil {
			return nil, err
		}
	}

	effective, warnings = applySanityClamps(effective, warnings)

	results := domain.MethodResults{}
	mcByMethod := domain.MonteCarloParamsByMethod{}

	for _, m := range []domain.TerminalMethod{domain.TerminalPerpetuity, domain.TerminalROICDriven, domain.TerminalFade} {
		methodInputs := effective.Clone()
		methodInputs.TerminalMethod = m

		dcfResult := o.DCF.Calculate(methodInputs, req.FinancialData)
		layerB := RunStructuralCheck(methodInputs, dcfResult, req.FinancialData)
		warnings = append(warnings, layerB.Warnings...)

		mcParams := CreateDefaultMonteCarloParams(methodInputs, &req.FinancialData)
		var mcErr error
		mcParams, warnings, mcErr = applyMonteCarloOverrides(mcParams, req.Overrides, warnings)
		if mcErr != nil {
			return nil, mcErr
		}

		mcResult := o.MonteCarlo.Simulate(mcParams, methodInputs, req.FinancialData)
		if !req.IncludeDistribution {
			mcResult.ValueDistribution = []float64{}
		}

		mr := domain.MethodResult{DCF: dcfResult, LayerB: layerB, MonteCarlo: mcResult}
		switch m {
		case domain.TerminalPerpetuity:
			results.Perpetuity = mr
			mcByMethod.Perpetuity = mcParams
		case domain.TerminalROICDriven:
			results.ROICDriven = mr
			mcByMethod.ROICDriven = mcParams
		case domain.TerminalFade:
			results.Fade = mr
			mcByMethod.Fade = mcParams
		}
	}

	layerC := CalculateMarketImplied(req.FinancialData, effective.WACC, effective)

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	resp := &domain.AgentValuationResponse{
		Meta: domain.ResponseMeta{
			RequestID:    requestID,
			Symbol:       req.Symbol,
			CompanyName:  req.FinancialData.CompanyName,
			CurrentPrice: req.FinancialData.CurrentPrice,
			GeneratedAt:  nowFunc().UTC().Format(time.RFC3339),
			APIVersion:   apiVersion,
			CoreVersion:  coreVersion,
		},
		EffectiveInputs: domain.EffectiveInputs{
			DCFInputs:          effective,
			MonteCarloByMethod: mcByMethod,
		},
		Results:    results,
		Validation: domain.Validation{LayerC: layerC},
		Warnings:   dedupePreserveOrder(warnings),
	}

	return resp, nil
}

func applySanityClamps(inputs domain.DCFInputs, warnings []string) (domain.DCFInputs, []string) {
	if inputs.TerminalGrowthRate >= inputs.WACC {
		adjusted := inputs.WACC - minWaccSpreadDefault
		warnings = append(warnings, fmt.Sprintf("terminal growth rate (%.4f) was at or above WACC (%.4f); adjusted to %.4f", inputs.TerminalGrowthRate, inputs.WACC, adjusted))
		inputs.TerminalGrowthRate = adjusted
	}
	// FadeStartGrowth is shared state cloned into every method's run, not
	// just Fade's, so this must not be gated on the nominal TerminalMethod
	// prefill happened to leave on inputs.
	if inputs.FadeStartGrowth < inputs.TerminalGrowthRate {
		warnings = append(warnings, fmt.Sprintf("fade start growth (%.4f) was below terminal growth rate (%.4f); raised to match", inputs.FadeStartGrowth, inputs.TerminalGrowthRate))
		inputs.FadeStartGrowth = inputs.TerminalGrowthRate
	}
	return inputs, warnings
}

func dedupePreserveOrder(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
