package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/chiranSam/job-application-form/internal/models"
)

const (
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3

	mediaTypePDF  = "application/pdf"
	mediaTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	xmlTags       = regexp.MustCompile(`<[^>]+>`)
	inlineSpace   = regexp.MustCompile(`[ \t\r\f\v\x{00A0}]+`)
	errBinaryText = errors.New("extracted text looks like binary data")
)

// DocumentReader reads back stored documents by key
type DocumentReader interface {
	Open(key string) ([]byte, error)
}

// LocalExtractor reads text straight out of PDF and DOCX files without a
// remote service
type LocalExtractor struct {
	docs DocumentReader
}

// NewLocalExtractor creates an extractor reading documents from docs
func NewLocalExtractor(docs DocumentReader) *LocalExtractor {
	return &LocalExtractor{docs: docs}
}

// Extract returns the document's text, one non-empty line per line
func (e *LocalExtractor) Extract(ctx context.Context, ref models.DocumentRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := e.docs.Open(ref.Key)
	if err != nil {
		return "", err
	}

	text, err := ExtractText(ref.MediaType, data)
	if err != nil {
		return "", err
	}
	return JoinLines(LinesToBlocks(text)), nil
}

// ExtractText extracts raw text from PDF or DOCX bytes
func ExtractText(mediaType string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mediaType {
	case mediaTypePDF:
		text, err = extractPDF(data)
	case mediaTypeDOCX:
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, mediaType)
	}
	if err != nil {
		return "", err
	}

	if IsBinaryData(text) {
		return "", errBinaryText
	}
	return normalizeLines(text), nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("failed to read PDF page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		docXML, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}
		break
	}
	if len(docXML) == 0 {
		return "", errors.New("no document.xml found in docx")
	}

	xml := string(docXML)
	xml = strings.ReplaceAll(xml, "</w:p>", "\n")
	xml = strings.ReplaceAll(xml, "<w:br/>", "\n")
	xml = strings.ReplaceAll(xml, "<w:tab/>", "\t")
	text := xmlTags.ReplaceAllString(xml, "")
	return unescapeXML(text), nil
}

func unescapeXML(s string) string {
	return strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&apos;", "'",
	).Replace(s)
}

func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	// Check for PDF magic number
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// Check for ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	// Check for high proportion of non-printable characters
	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
