package calculation

import "math"

// IndustryBenchmark is the static median-operating-margin/median-ROIC
// entry a classification resolves to.
type IndustryBenchmark struct {
	OperatingMargin float64
	AfterTaxROIC    float64
	NumberOfFirms   int
}

// IndustryThresholds are bounded multiples of an IndustryBenchmark's
// medians, used as warning/error tripwires elsewhere in the kernel.
type IndustryThresholds struct {
	MarginWarning float64
	MarginError   float64
	ROICWarning   float64
	ROICError     float64
}

const marketAggregateKey = "__market__"

// industryBenchmarks is immutable static data shared across requests; no
// request ever mutates it.
var industryBenchmarks = map[string]IndustryBenchmark{
	"Software—Application":           {OperatingMargin: 0.20, AfterTaxROIC: 0.15, NumberOfFirms: 180},
	"Software—Infrastructure":        {OperatingMargin: 0.22, AfterTaxROIC: 0.16, NumberOfFirms: 90},
	"Semiconductors":                 {OperatingMargin: 0.18, AfterTaxROIC: 0.14, NumberOfFirms: 60},
	"Internet Content & Information": {OperatingMargin: 0.15, AfterTaxROIC: 0.12, NumberOfFirms: 50},
	"Banks—Diversified":              {OperatingMargin: 0.35, AfterTaxROIC: 0.09, NumberOfFirms: 40},
	"Oil & Gas E&P":                  {OperatingMargin: 0.20, AfterTaxROIC: 0.08, NumberOfFirms: 70},
	"Drug Manufacturers—General":     {OperatingMargin: 0.22, AfterTaxROIC: 0.12, NumberOfFirms: 45},
	"Specialty Retail":               {OperatingMargin: 0.08, AfterTaxROIC: 0.12, NumberOfFirms: 110},
	"Utilities—Regulated Electric":   {OperatingMargin: 0.22, AfterTaxROIC: 0.06, NumberOfFirms: 35},
}

// sectorBenchmarks is the fallback tier when no exact industry match
// exists.
var sectorBenchmarks = map[string]IndustryBenchmark{
	"Technology":         {OperatingMargin: 0.20, AfterTaxROIC: 0.15, NumberOfFirms: 800},
	"Financial Services": {OperatingMargin: 0.30, AfterTaxROIC: 0.09, NumberOfFirms: 500},
	"Healthcare":         {OperatingMargin: 0.15, AfterTaxROIC: 0.11, NumberOfFirms: 600},
	"Energy":             {OperatingMargin: 0.18, AfterTaxROIC: 0.08, NumberOfFirms: 200},
	"Consumer Cyclical":  {OperatingMargin: 0.10, AfterTaxROIC: 0.11, NumberOfFirms: 400},
	"Utilities":          {OperatingMargin: 0.20, AfterTaxROIC: 0.06, NumberOfFirms: 100},
}

// marketAggregate is the ultimate fallback when neither industry nor
// sector resolves.
var marketAggregate = IndustryBenchmark{OperatingMargin: 0.12, AfterTaxROIC: 0.10, NumberOfFirms: 3000}

// GetIndustryBenchmark resolves a classification to a benchmark entry:
// exact industry match first, then sector default, then the
// market-aggregate fallback.
func GetIndustryBenchmark(industry, sector string) IndustryBenchmark {
	if b, ok := industryBenchmarks[industry]; ok {
		return b
	}
	if b, ok := sectorBenchmarks[sector]; ok {
		return b
	}
	return marketAggregate
}

// GetIndustryThresholds derives warning/error bounds as bounded multiples
// of a benchmark's medians.
func GetIndustryThresholds(b IndustryBenchmark) IndustryThresholds {
	margin := math.Max(b.OperatingMargin, 0.05)
	roic := math.Max(b.AfterTaxROIC, 0.05)
	return IndustryThresholds{
		MarginWarning: math.Min(margin*1.5, 0.50),
		MarginError:   math.Min(margin*2.0, 0.60),
		ROICWarning:   math.Min(roic*1.3, 0.60),
		ROICError:     math.Min(roic*1.6, 0.80),
	}
}
