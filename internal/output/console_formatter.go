package output

import (
	"bytes"
	"fmt"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

// ConsoleFormatter renders a short human-readable summary, following the
// teacher's console_formatter.go shape.
type ConsoleFormatter struct{}

func (ConsoleFormatter) Name() string { return "console" }

func (ConsoleFormatter) Format(resp *domain.AgentValuationResponse) ([]byte, error) {
	var buf bytes.Buffer
	currentPrice := resp.Meta.CurrentPrice
	fmt.Fprintf(&buf, "Valuation for %s (%s)\n", resp.Meta.Symbol, resp.Meta.CompanyName)
	fmt.Fprintf(&buf, "%s\n\n", Headline("perpetuity", &resp.Results.Perpetuity.DCF, currentPrice))
	fmt.Fprintf(&buf, "%s\n\n", Headline("roic-driven", &resp.Results.ROICDriven.DCF, currentPrice))
	fmt.Fprintf(&buf, "%s\n\n", Headline("fade", &resp.Results.Fade.DCF, currentPrice))

	if len(resp.Warnings) > 0 {
		fmt.Fprintln(&buf, "Warnings:")
		for _, w := range resp.Warnings {
			fmt.Fprintf(&buf, "  - %s\n", w)
		}
	}

	return buf.Bytes(), nil
}

// Headline summarizes one method's fair value, implied upside, and
// terminal-value share in one line.
func Headline(method string, dcf *domain.DCFResult, currentPrice float64) string {
	return fmt.Sprintf("[%s] fair value/share: %s (%+.1f%% upside, terminal value %.1f%% of EV)",
		method, roundMoney(dcf.FairValuePerShare), dcf.UpsidePercent(currentPrice), dcf.TerminalValuePercent)
}
