// Package output renders an AgentValuationResponse through a small set of
// pluggable formatters: a Formatter interface, a registry of built-ins,
// and a timestamped-file writer.
package output

import (
	"fmt"
	"os"
	"time"

	"github.com/Textcat/dcf-valuation/internal/domain"
)

// Formatter renders a response to bytes. Implementations must be pure:
// no side effects besides deterministic formatting.
type Formatter interface {
	Format(resp *domain.AgentValuationResponse) ([]byte, error)
	Name() string
}

var builtInFormatters = []Formatter{
	JSONFormatter{},
	CSVFormatter{},
	ConsoleFormatter{},
}

// GetFormatterByName returns a registered formatter, or nil if unknown.
func GetFormatterByName(name string) Formatter {
	for _, f := range builtInFormatters {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// WriteFormatted runs a formatter and writes the result to a timestamped
// file with the given extension, returning the filename written.
func WriteFormatted(f Formatter, resp *domain.AgentValuationResponse, ext string) (string, error) {
	data, err := f.Format(resp)
	if err != nil {
		return "", err
	}
	filename := fmt.Sprintf("dcf_valuation_%s.%s", time.Now().Format("20060102_150405"), ext)
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return "", err
	}
	return filename, nil
}
