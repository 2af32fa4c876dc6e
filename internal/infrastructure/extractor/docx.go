package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// extractDOCX reads the main document part of a DOCX archive. Text runs
// (w:t) are concatenated, paragraphs (w:p) become lines, and explicit
// tabs/breaks keep their whitespace meaning.
func extractDOCX(raw []byte) (string, error) {
	archive, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	var document *zip.File
	for _, file := range archive.File {
		if file.Name == "word/document.xml" {
			document = file
			break
		}
	}
	if document == nil {
		return "", errors.New("docx payload has no word/document.xml")
	}

	reader, err := document.Open()
	if err != nil {
		return "", fmt.Errorf("open docx document part: %w", err)
	}
	defer reader.Close()

	var b strings.Builder
	inRun := false
	decoder := xml.NewDecoder(reader)
	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx document part: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inRun = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}
