package calculation

import (
	"fmt"
	"math"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

const (
	fcfQualityLow            = 0.6
	fcfQualityHigh           = 1.2
	capexDALow               = 0.8
	capexDAHigh              = 1.5
	growthDeviationThreshold = 0.05
)

// RunStructuralCheck audits a DCFInputs/DCFResult pair against the
// accounting and economic identities the assumption set must satisfy.
func RunStructuralCheck(inputs domain.DCFInputs, result domain.DCFResult, fd domain.FinancialData) domain.StructuralCheck {
	n := inputs.ExplicitPeriodYears
	if n > len(inputs.Drivers) {
		n = len(inputs.Drivers)
	}
	drivers := inputs.Drivers[:n]

	growth := growthConsistency(drivers, fd)
	capexDA := capexDARatio(drivers)
	fcfQuality := fcfQualityCheck(result)

	var warnings []string
	if !growth.IsValid {
		warnings = append(warnings, fmt.Sprintf("assumed revenue growth (%.2f%%) deviates from the growth implied by historical ROIC and reinvestment (%.2f%%) by more than 5pp", growth.AssumedGrowth*100, growth.ImpliedGrowth*100))
	}
	if !capexDA.IsReasonable {
		warnings = append(warnings, fmt.Sprintf("capex/D&A ratio (%.2f) is outside the reasonable band [0.8, 1.5]", capexDA.Current))
	}
	if !fcfQuality.IsReasonable {
		warnings = append(warnings, fmt.Sprintf("FCF/NOPAT ratio (%.2f) is outside the industry-typical band [0.6, 1.2]", fcfQuality.FCFToNI))
	}
	if result.TerminalValuePercent > 80 {
		warnings = append(warnings, fmt.Sprintf("terminal value is %.1f%% of enterprise value, above the 80%% sanity threshold", result.TerminalValuePercent))
	}
	if inputs.TerminalGrowthRate >= inputs.WACC {
		warnings = append(warnings, "terminal growth rate is at or above WACC")
	}
	if inputs.TerminalGrowthRate > 0.04 {
		warnings = append(warnings, fmt.Sprintf("terminal growth rate (%.2f%%) exceeds the typical 4%% long-run ceiling", inputs.TerminalGrowthRate*100))
	}

	benchmark := GetIndustryBenchmark(fd.Industry, fd.Sector)
	thresholds := GetIndustryThresholds(benchmark)
	roicFloor := math.Min(-0.10, benchmark.AfterTaxROIC-0.30)
	if fd.HistoricalROIC < roicFloor || fd.HistoricalROIC > thresholds.ROICError {
		warnings = append(warnings, fmt.Sprintf("historical ROIC (%.2f%%) is outside the plausible range for %s", fd.HistoricalROIC*100, fd.Industry))
	}

	return domain.StructuralCheck{
		GrowthConsistency: growth,
		CapexDARatio:      capexDA,
		FCFQuality:        fcfQuality,
		HasWarnings:       len(warnings) > 0,
		Warnings:          warnings,
	}
}

func growthConsistency(drivers []domain.ValueDrivers, fd domain.FinancialData) domain.GrowthConsistency {
	n := len(drivers)
	if n == 0 {
		return domain.GrowthConsistency{IsValid: true}
	}

	var sumOp, sumTax, sumCapex, sumDA, sumWC, sumGrowth float64
	for _, d := range drivers {
		sumOp += d.OperatingMargin
		sumTax += d.TaxRate
		sumCapex += d.CapexPercent
		sumDA += d.DAPercent
		sumWC += d.WCChangePercent
		sumGrowth += d.RevenueGrowth
	}
	avgOp := sumOp / float64(n)
	avgTax := sumTax / float64(n)
	avgCapex := sumCapex / float64(n)
	avgDA := sumDA / float64(n)
	avgWC := sumWC / float64(n)
	assumedGrowth := sumGrowth / float64(n)

	netNopatMargin := avgOp * (1 - avgTax)
	reinvestmentRate := 0.0
	if netNopatMargin > 0 {
		reinvestmentRate = (avgCapex - avgDA + avgWC) / netNopatMargin
	}
	impliedGrowth := fd.HistoricalROIC * reinvestmentRate

	deviation := math.Abs(assumedGrowth - impliedGrowth)

	return domain.GrowthConsistency{
		ImpliedGrowth: impliedGrowth,
		AssumedGrowth: assumedGrowth,
		Deviation:     deviation,
		IsValid:       deviation < growthDeviationThreshold,
	}
}

func capexDARatio(drivers []domain.ValueDrivers) domain.CapexDARatio {
	last := drivers[len(drivers)-1]
	ratio := 0.0
	if last.DAPercent != 0 {
		ratio = last.CapexPercent / last.DAPercent
	}
	return domain.CapexDARatio{
		Current:      ratio,
		Target:       1.0,
		IsReasonable: ratio >= capexDALow && ratio <= capexDAHigh,
	}
}

func fcfQualityCheck(result domain.DCFResult) domain.FCFQuality {
	if len(result.Projections) == 0 {
		return domain.FCFQuality{IndustryRangeLow: fcfQualityLow, IndustryRangeHigh: fcfQualityHigh}
	}
	last := result.Projections[len(result.Projections)-1]
	ratio := 0.0
	if last.NOPAT > 0 {
		ratio = last.FCF / last.NOPAT
	}
	return domain.FCFQuality{
		FCFToNI:           ratio,
		IndustryRangeLow:  fcfQualityLow,
		IndustryRangeHigh: fcfQualityHigh,
		IsReasonable:      ratio >= fcfQualityLow && ratio <= fcfQualityHigh,
	}
}
