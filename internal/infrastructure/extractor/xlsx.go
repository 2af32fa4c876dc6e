package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX renders every sheet row by row. Cells are tab separated so
// the sentence splitter keeps tabular lines intact, and sheets become
// separate paragraphs.
func extractXLSX(raw []byte) (string, error) {
	workbook, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer workbook.Close()

	var sheets []string
	for _, name := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("read xlsx sheet %q: %w", name, err)
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sheets = append(sheets, name+"\n"+strings.Join(lines, "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}
