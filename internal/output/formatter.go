// Package output renders analysis results as terminal text, JSON, or CSV.
package output

import (
	"fmt"
	"io"

	"github.com/hal/prflow/internal/service"
)

// Format represents the output format
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name. An empty name means text.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatCSV:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text, json or csv)", s)
	}
}

// Formatter defines the interface for output formatters
type Formatter interface {
	Write(res *service.Result, w io.Writer) error
}

// NewFormatter creates a formatter for the specified format
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Pretty: true}
	case FormatCSV:
		return &CSVFormatter{}
	default:
		return &TextFormatter{}
	}
}
