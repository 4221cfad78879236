package calculation

import "github.com/Textcat/dcf-valuation/internal/domain"

// testFixture is a mid-cap software company with a clean two-year
// analyst panel, shared across the package's test files.
func testFixture() domain.FinancialData {
	return domain.FinancialData{
		Symbol:                    "TEST",
		CompanyName:               "Test Software Inc.",
		Currency:                  "USD",
		CurrentPrice:              150,
		MarketCap:                 3e11,
		SharesOutstanding:         2e9,
		Beta:                      1.1,
		TTMRevenue:                1e9,
		TTMGrossProfit:            0.40 * 1e9,
		TTMOperatingIncome:        2e8,
		TTMNetIncome:              1.6e8,
		TTMEPS:                    8,
		TTMFCF:                    1.8e8,
		InterestExpense:           1.5e9,
		GrossMargin:               0.40,
		OperatingMargin:           0.20,
		NetMargin:                 0.16,
		LatestAnnualRevenue:       1e9,
		LatestAnnualNetIncome:     1.6e8,
		TotalCash:                 5e10,
		TotalDebt:                 3e10,
		TotalEquity:               1e11,
		HistoricalDAPercent:       0.03,
		HistoricalCapexPercent:    0.04,
		HistoricalWCChangePercent: 0.01,
		HistoricalROIC:            0.15,
		EffectiveTaxRate:          0.21,
		Sector:                    "Technology",
		Industry:                  "Software—Application",
		CurrentPE:                 18.75,
		AnalystEstimates: []domain.AnalystEstimate{
			{FiscalYear: 1, RevenueLow: 1.02e9, RevenueAvg: 1.08e9, RevenueHigh: 1.16e9, EPSLow: 7, EPSAvg: 8, EPSHigh: 9, NumAnalysts: 20},
			{FiscalYear: 2, RevenueLow: 1.09e9, RevenueAvg: 1.15e9, RevenueHigh: 1.24e9, EPSLow: 8, EPSAvg: 9, EPSHigh: 10, NumAnalysts: 18},
		},
	}
}

func testWACCInputs() domain.WACCInputs {
	return domain.WACCInputs{RiskFreeRate: 0.045, MarketRiskPremium: 0.05, CountryRiskPremium: 0}
}
