// Package extract turns uploaded files into plain text for prompt assembly.
//
// Per-format decode failures degrade to bracketed diagnostic strings so the
// caller always has something to concatenate into a prompt; only a file of a
// type nobody supports is reported as an error.
package extract

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Gaziyo/tuutta-genie/internal/model"
)

// OCR recognizes text in an image. Kept behind an interface so the vision
// model implementation can be swapped out in tests.
type OCR interface {
	Recognize(ctx context.Context, mimeType string, data []byte) (string, error)
}

// Fetcher resolves a non-inline content reference (an object storage or
// remote URL) to raw bytes.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// ErrUnsupportedType is wrapped into the error returned for file types no
// decoder claims.
type ErrUnsupportedType struct {
	Name     string
	MimeType string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported file type: %s (%s)", e.Name, e.MimeType)
}

// Extractor dispatches a file to the right format decoder.
type Extractor struct {
	ocr     OCR
	fetcher Fetcher
}

// New creates an Extractor. Both dependencies may be nil: without OCR,
// image and scanned-PDF paths return their no-text diagnostics; without a
// Fetcher only data-URI content can be resolved.
func New(ocr OCR, fetcher Fetcher) *Extractor {
	return &Extractor{ocr: ocr, fetcher: fetcher}
}

// Extract returns the text content of an uploaded file, caching the result
// on the FileUpload. A second call with ExtractedText already set returns
// the cached value without re-decoding.
func (e *Extractor) Extract(ctx context.Context, f *model.FileUpload) (string, error) {
	if f.ExtractedText != "" {
		return f.ExtractedText, nil
	}

	data, err := e.resolve(ctx, f.ContentRef)
	if err != nil {
		return fmt.Sprintf("[Error Reading File: %s]\n%v", f.Name, err), nil
	}

	text, err := e.extractBytes(ctx, f.Name, f.MimeType, data)
	if err != nil {
		return "", err
	}

	f.ExtractedText = text
	return text, nil
}

// extractBytes runs the dispatch chain over already loaded bytes.
// Word, PDF, spreadsheet, plain text, presentation, HTML, image, then the
// audio/video placeholders; magic bytes override a mislabeled MIME type.
func (e *Extractor) extractBytes(ctx context.Context, name, mimeType string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mt := strings.ToLower(strings.TrimSpace(mimeType))

	if len(data) == 0 {
		return fmt.Sprintf("[Error Processing File: %s]\nthe file is empty", name), nil
	}

	switch {
	case isWord(mt, ext):
		return e.wordText(name, data), nil
	case isPDFType(mt, ext) || sniffPDF(data):
		return e.pdfText(ctx, name, data), nil
	case isSpreadsheet(mt, ext):
		return e.spreadsheetText(name, ext, data), nil
	case isPlainText(mt, ext):
		return collapseWhitespace(string(data)), nil
	case isPresentation(mt, ext):
		return e.slidesText(name, data), nil
	case isHTML(mt, ext) || sniffHTML(data):
		return stripHTML(string(data)), nil
	case isImage(mt, ext):
		return e.imageText(ctx, name, mt, data), nil
	case isAudio(mt, ext):
		return fmt.Sprintf("[Audio File: %s]\nAudio transcription is not available here. Describe the audio content in the text field if it matters for the assessment.", name), nil
	case isVideo(mt, ext):
		return fmt.Sprintf("[Video File: %s]\nVideo transcription is not available here. Describe the video content in the text field if it matters for the assessment.", name), nil
	case sniffText(data):
		return collapseWhitespace(string(data)), nil
	}

	return "", &ErrUnsupportedType{Name: name, MimeType: mimeType}
}

func (e *Extractor) imageText(ctx context.Context, name, mimeType string, data []byte) string {
	const invitation = "Consider the visual content of this image when generating questions."

	if e.ocr == nil {
		return fmt.Sprintf("[Image File: %s]\n%s", name, invitation)
	}

	text, err := e.ocr.Recognize(ctx, mimeType, data)
	if err != nil {
		slog.Warn("image OCR failed", "file", name, "error", err)
		text = ""
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Sprintf("[Image File: %s]\n%s", name, invitation)
	}
	return fmt.Sprintf("%s\n\n[Image File: %s]\n%s", text, name, invitation)
}

// resolve turns a content reference into bytes. Data URIs are decoded
// inline; anything else goes through the fetcher.
func (e *Extractor) resolve(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "data:") {
		idx := strings.Index(ref, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		meta, payload := ref[:idx], ref[idx+1:]
		if strings.HasSuffix(meta, ";base64") {
			return base64.StdEncoding.DecodeString(payload)
		}
		return []byte(payload), nil
	}
	if e.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for remote content")
	}
	return e.fetcher.Fetch(ctx, ref)
}

// ---- type detection ----

func isWord(mt, ext string) bool {
	return mt == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		mt == "application/msword" || ext == ".docx" || ext == ".doc"
}

func isPDFType(mt, ext string) bool {
	return mt == "application/pdf" || ext == ".pdf"
}

func isSpreadsheet(mt, ext string) bool {
	return mt == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" ||
		mt == "application/vnd.ms-excel" || mt == "text/csv" ||
		ext == ".xlsx" || ext == ".xls" || ext == ".csv"
}

var codeExts = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".json": true, ".yaml": true,
	".yml": true, ".go": true, ".py": true, ".js": true, ".ts": true,
	".java": true, ".c": true, ".cpp": true, ".rs": true, ".sh": true,
	".sql": true, ".xml": true,
}

func isPlainText(mt, ext string) bool {
	if strings.HasPrefix(mt, "text/") && mt != "text/html" && mt != "text/csv" {
		return true
	}
	return codeExts[ext]
}

func isPresentation(mt, ext string) bool {
	return mt == "application/vnd.openxmlformats-officedocument.presentationml.presentation" ||
		mt == "application/vnd.ms-powerpoint" || ext == ".pptx" || ext == ".ppt"
}

func isHTML(mt, ext string) bool {
	return mt == "text/html" || ext == ".html" || ext == ".htm"
}

func isImage(mt, ext string) bool {
	if strings.HasPrefix(mt, "image/") {
		return true
	}
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return true
	}
	return false
}

func isAudio(mt, ext string) bool {
	if strings.HasPrefix(mt, "audio/") {
		return true
	}
	switch ext {
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac":
		return true
	}
	return false
}

func isVideo(mt, ext string) bool {
	if strings.HasPrefix(mt, "video/") {
		return true
	}
	switch ext {
	case ".mp4", ".mov", ".avi", ".mkv", ".webm":
		return true
	}
	return false
}

// ---- byte sniffing ----

func sniffPDF(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

func sniffZip(b []byte) bool {
	return len(b) >= 4 && b[0] == 'P' && b[1] == 'K' && b[2] == 3 && b[3] == 4
}

func sniffHTML(b []byte) bool {
	s := strings.ToLower(strings.TrimSpace(string(b[:min(len(b), 2048)])))
	return strings.HasPrefix(s, "<!doctype") || strings.HasPrefix(s, "<html") ||
		(strings.Contains(s, "<html") && strings.Contains(s, "</html>"))
}

// sniffText reports whether the bytes look like printable text: no NUL
// bytes and largely printable or multi-byte characters.
func sniffText(b []byte) bool {
	sample := b[:min(len(b), 4096)]
	good := 0
	for _, c := range sample {
		if c == 0x00 {
			return false
		}
		if c == '\n' || c == '\r' || c == '\t' || (c >= 0x20 && c <= 0x7E) || c >= 0x80 {
			good++
		}
	}
	return float64(good)/float64(len(sample)) > 0.9
}

// ---- text cleanup ----

var htmlEntities = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`)

func stripHTML(s string) string {
	var out strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
			out.WriteByte(' ')
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	return collapseWhitespace(htmlEntities.Replace(out.String()))
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
