package extract

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// wordText extracts the running text of a DOCX (word/document.xml, <w:t>
// elements). Legacy .doc binaries are not parseable here and degrade to a
// diagnostic.
func (e *Extractor) wordText(name string, data []byte) string {
	if !sniffZip(data) {
		return fmt.Sprintf("[Error Processing Word Document: %s]\nnot a valid OpenXML container; legacy .doc files are not supported", name)
	}
	text, err := openXMLText(data, func(f string) bool { return f == "word/document.xml" })
	if err != nil {
		return fmt.Sprintf("[Error Processing Word Document: %s]\n%v", name, err)
	}
	return text
}

// slidesText extracts the text of every slide of a PPTX
// (ppt/slides/*.xml, <a:t> elements).
func (e *Extractor) slidesText(name string, data []byte) string {
	if !sniffZip(data) {
		return fmt.Sprintf("[Error Processing Presentation: %s]\nnot a valid OpenXML container", name)
	}
	text, err := openXMLText(data, func(f string) bool {
		return strings.HasPrefix(f, "ppt/slides/") && strings.HasSuffix(f, ".xml")
	})
	if err != nil {
		return fmt.Sprintf("[Error Processing Presentation: %s]\n%v", name, err)
	}
	return text
}

// spreadsheetText handles CSV directly and XLSX via the shared strings part.
func (e *Extractor) spreadsheetText(name, ext string, data []byte) string {
	if ext == ".csv" || !sniffZip(data) {
		text, err := csvText(data)
		if err != nil {
			return fmt.Sprintf("[Error Processing Spreadsheet: %s]\n%v", name, err)
		}
		return text
	}
	text, err := openXMLText(data, func(f string) bool { return f == "xl/sharedStrings.xml" })
	if err != nil {
		return fmt.Sprintf("[Error Processing Spreadsheet: %s]\n%v", name, err)
	}
	return text
}

// openXMLText walks the zip entries selected by keep and collects the
// character data of every <t> element (covers w:t, a:t, and the shared
// strings t, which all use the local name "t").
func openXMLText(zipBytes []byte, keep func(name string) bool) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(zipBytes), int64(len(zipBytes)))
	if err != nil {
		return "", fmt.Errorf("open container: %w", err)
	}

	var out strings.Builder
	matched := false
	for _, f := range zr.File {
		if !keep(f.Name) {
			continue
		}
		matched = true
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", f.Name, err)
		}
		part, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read %s: %w", f.Name, err)
		}
		out.WriteString(xmlTextElements(part))
		out.WriteString("\n")
	}
	if !matched {
		return "", fmt.Errorf("container holds no recognizable document parts")
	}

	s := collapseWhitespace(out.String())
	if s == "" {
		return "", fmt.Errorf("no text found in document")
	}
	return s, nil
}

func xmlTextElements(part []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(part))
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "t" {
			continue
		}
		var v string
		if err := dec.DecodeElement(&v, &se); err != nil {
			continue
		}
		if v != "" {
			out.WriteString(v)
			out.WriteString(" ")
		}
	}
	return out.String()
}

func csvText(data []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	var out strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		out.WriteString(strings.Join(record, " | "))
		out.WriteString("\n")
	}
	return collapseWhitespace(out.String()), nil
}
