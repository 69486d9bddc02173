package extractor

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/octorag/octorag/internal/document"
)

// CSV flattens tabular data into labeled rows so chunks stay
// self-describing.
type CSV struct{}

func (p *CSV) Extract(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return singlePage(titleFromFilename(filename), ""), nil
	}

	headers := records[0]
	var text strings.Builder
	text.WriteString("Headers: " + strings.Join(headers, ", "))
	for _, row := range records[1:] {
		text.WriteString("\n")
		for j, cell := range row {
			if j > 0 {
				text.WriteString(", ")
			}
			if j < len(headers) {
				text.WriteString(headers[j] + ": " + cell)
			} else {
				text.WriteString(cell)
			}
		}
	}

	return singlePage(titleFromFilename(filename), text.String()), nil
}
