package decode

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/dl-alexandre/docloader/internal/logging"
	"github.com/ledongthuc/pdf"
)

const (
	reasonUnsupported   = "Unsupported file type"
	reasonUndecodedText = "Unsupported file type: Could not decode as text."
)

// UnsupportedFormatError is returned for extensions with no parser and for non-UTF-8 text
type UnsupportedFormatError struct {
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return e.Reason
}

// DecodeError is returned when a supported format fails to parse as a whole
type DecodeError struct {
	Filename string
	Format   string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("Error parsing %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsUnsupported reports whether err is an UnsupportedFormatError
func IsUnsupported(err error) bool {
	var target *UnsupportedFormatError
	return errors.As(err, &target)
}

// Decoder extracts plain text from document payloads
type Decoder struct {
	logger logging.Logger
}

// NewDecoder creates a decoder that logs through logger
func NewDecoder(logger logging.Logger) *Decoder {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Decoder{logger: logger}
}

var defaultDecoder = NewDecoder(nil)

// Decode extracts text using a decoder without logging
func Decode(filename string, data []byte) (string, error) {
	return defaultDecoder.Decode(filename, data)
}

// Decode dispatches on the lower-cased file extension
func (d *Decoder) Decode(filename string, data []byte) (text string, err error) {
	ext := strings.ToLower(filepath.Ext(filename))

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &DecodeError{Filename: filename, Format: formatName(ext), Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	switch ext {
	case ".pdf":
		d.logger.Debug("Parsing PDF", logging.F("file", filename), logging.F("bytes", len(data)))
		return d.decodePDF(filename, data)
	case ".docx":
		d.logger.Debug("Parsing DOCX", logging.F("file", filename), logging.F("bytes", len(data)))
		return decodeDOCX(filename, data)
	case ".txt":
		d.logger.Debug("Parsing TXT", logging.F("file", filename), logging.F("bytes", len(data)))
		if !utf8.Valid(data) {
			return "", &UnsupportedFormatError{Reason: reasonUndecodedText}
		}
		return string(data), nil
	default:
		d.logger.Debug("No parser for extension", logging.F("file", filename), logging.F("ext", ext))
		return "", &UnsupportedFormatError{Reason: reasonUnsupported}
	}
}

func (d *Decoder) decodePDF(filename string, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &DecodeError{Filename: filename, Format: "PDF", Err: err}
	}

	var sb strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		pageText, err := pageText(reader, i)
		if err != nil {
			d.logger.Warn("Skipping unreadable PDF page",
				logging.F("file", filename),
				logging.F("page", i),
				logging.F("error", err.Error()),
			)
			continue
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

func pageText(reader *pdf.Reader, num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

// docxMainPart holds the body; headers and footers live in their own parts
const docxMainPart = "word/document.xml"

var (
	docxTabRun  = []byte("<w:tab/>")
	docxTabText = []byte("<w:t>\t</w:t>")
	docxBreaks  = []string{"br", "cr"}
	docxSkipped = []string{"pPr", "rPr", "instrText", "delText"}
)

type docxDocument struct {
	Paragraphs []docxParagraph `xml:"body>p"`
}

type docxParagraph struct {
	Inner []byte `xml:",innerxml"`
}

// decodeDOCX joins the body's top-level paragraphs with newlines, empty ones included
func decodeDOCX(filename string, data []byte) (string, error) {
	fail := func(err error) (string, error) {
		return "", &DecodeError{Filename: filename, Format: "DOCX", Err: err}
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fail(err)
	}
	part, err := zr.Open(docxMainPart)
	if err != nil {
		return fail(fmt.Errorf("missing %s: %w", docxMainPart, err))
	}
	defer part.Close()

	var doc docxDocument
	if err := xml.NewDecoder(part).Decode(&doc); err != nil {
		return fail(fmt.Errorf("error parsing %s: %w", docxMainPart, err))
	}

	paragraphs := make([]string, len(doc.Paragraphs))
	for i, p := range doc.Paragraphs {
		inner := bytes.ReplaceAll(p.Inner, docxTabRun, docxTabText)
		text, err := docconv.XMLToText(bytes.NewReader(inner), docxBreaks, docxSkipped, false)
		if err != nil {
			return fail(fmt.Errorf("paragraph %d: %w", i+1, err))
		}
		paragraphs[i] = text
	}
	return strings.Join(paragraphs, "\n"), nil
}

func formatName(ext string) string {
	if ext == "" {
		return "file"
	}
	return strings.ToUpper(strings.TrimPrefix(ext, "."))
}
