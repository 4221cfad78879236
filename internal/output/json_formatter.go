package output

import (
	"encoding/json"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

// JSONFormatter renders the canonical, pretty-printed JSON wire shape.
type JSONFormatter struct{}

func (JSONFormatter) Name() string { return "json" }

func (JSONFormatter) Format(resp *domain.AgentValuationResponse) ([]byte, error) {
	return json.MarshalIndent(resp, "", "  ")
}
