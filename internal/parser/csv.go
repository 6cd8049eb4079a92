package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles CSV files, rendering each data row as header: value
// pairs so downstream prompts see labeled lines instead of bare cells.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return "", fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}

	// First row is headers.
	headers := records[0]

	var lines []string
	lines = append(lines, strings.Join(headers, ", "))
	for _, row := range records[1:] {
		var parts []string
		for j, cell := range row {
			if j < len(headers) && strings.TrimSpace(headers[j]) != "" {
				parts = append(parts, headers[j]+": "+cell)
			} else {
				parts = append(parts, cell)
			}
		}
		lines = append(lines, strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n"), nil
}
