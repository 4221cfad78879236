// Package config loads a full valuation request from a YAML or JSON
// fixture file: read -> unmarshal -> structural validation -> wrapped
// errors.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Textcat/dcf-valuation/internal/calculation"
	"github.com/Textcat/dcf-valuation/internal/domain"
)

// RequestFile is the on-disk shape a valuation request is read from. It
// is a convenience for the CLI and test fixtures, not a substitute for
// the core's primary Go-value contract.
type RequestFile struct {
	Symbol              string                 `yaml:"symbol"`
	FinancialData       domain.FinancialData   `yaml:"financialData"`
	WACCInputs          domain.WACCInputs      `yaml:"waccInputs"`
	IncludeDistribution bool                   `yaml:"includeDistribution"`
	RequestID           string                 `yaml:"requestId"`
	Overrides           *calculation.Overrides `yaml:"overrides"`
}

// InputParser parses valuation-request fixture files.
type InputParser struct{}

// NewInputParser constructs an InputParser.
func NewInputParser() *InputParser {
	return &InputParser{}
}

// LoadFromFile loads a RequestFile from a YAML (or JSON, which is a YAML
// subset) file on disk.
func (ip *InputParser) LoadFromFile(filename string) (*RequestFile, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var rf RequestFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}

	if err := ip.ValidateRequestFile(&rf); err != nil {
		return nil, fmt.Errorf("request validation failed: %w", err)
	}

	return &rf, nil
}

// ValidateRequestFile performs the structural validation a malformed
// fixture should fail fast on, before it ever reaches the orchestrator.
func (ip *InputParser) ValidateRequestFile(rf *RequestFile) error {
	if rf.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if rf.FinancialData.SharesOutstanding < 0 {
		return fmt.Errorf("financialData.sharesOutstanding cannot be negative")
	}
	if rf.FinancialData.CurrentPrice < 0 {
		return fmt.Errorf("financialData.currentPrice cannot be negative")
	}
	return nil
}

// ToValuationRequest converts the on-disk shape into the orchestrator's
// input type.
func (rf *RequestFile) ToValuationRequest() calculation.ValuationRequest {
	return calculation.ValuationRequest{
		Symbol:              rf.Symbol,
		FinancialData:       rf.FinancialData,
		WACCInputs:          rf.WACCInputs,
		Overrides:           rf.Overrides,
		IncludeDistribution: rf.IncludeDistribution,
		RequestID:           rf.RequestID,
	}
}
