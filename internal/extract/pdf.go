package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// pdfText extracts selectable text from a PDF. When the document has no
// selectable text it falls back to OCR, and when OCR finds nothing either
// it returns a scanned-document diagnostic instead of failing.
func (e *Extractor) pdfText(ctx context.Context, name string, data []byte) string {
	text, err := readPDFPlainText(data)
	if err != nil {
		return fmt.Sprintf("[Error Processing PDF: %s]\n%v", name, err)
	}
	if text != "" {
		return text
	}

	if e.ocr != nil {
		ocrText, err := e.ocr.Recognize(ctx, "application/pdf", data)
		if err != nil {
			slog.Warn("PDF OCR fallback failed", "file", name, "error", err)
		} else if strings.TrimSpace(ocrText) != "" {
			return strings.TrimSpace(ocrText)
		}
	}

	return fmt.Sprintf("[PDF File: %s]\nNo selectable text was found. This PDF is likely scanned or image-based.", name)
}

func readPDFPlainText(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), nil
}
