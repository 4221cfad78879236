package output

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

// CSVFormatter renders one row per terminal method with the headline
// numbers.
type CSVFormatter struct{}

func (CSVFormatter) Name() string { return "csv" }

func (CSVFormatter) Format(resp *domain.AgentValuationResponse) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"method", "enterprise_value", "equity_value", "fair_value_per_share", "terminal_value_percent", "mc_p10", "mc_p50", "mc_p90"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	rows := []struct {
		method string
		mr     domain.MethodResult
	}{
		{"perpetuity", resp.Results.Perpetuity},
		{"roic-driven", resp.Results.ROICDriven},
		{"fade", resp.Results.Fade},
	}

	for _, r := range rows {
		row := []string{
			r.method,
			roundMoney(r.mr.DCF.EnterpriseValue),
			roundMoney(r.mr.DCF.EquityValue),
			roundMoney(r.mr.DCF.FairValuePerShare),
			fmt.Sprintf("%.2f", r.mr.DCF.TerminalValuePercent),
			roundMoney(r.mr.MonteCarlo.P10),
			roundMoney(r.mr.MonteCarlo.P50),
			roundMoney(r.mr.MonteCarlo.P90),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
