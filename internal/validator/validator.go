// Package validator gates uploads into the ingestion pipeline. It enforces
// type, size and content constraints and extracts plain text plus a page
// count from the PDF.
package validator

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/ansa-core/internal/core/domain"
	"github.com/custodia-labs/ansa-core/internal/postprocessors"
)

// pdfMagic is the file-format signature every PDF starts with.
var pdfMagic = []byte("%PDF-")

// Config holds the upload validation thresholds.
type Config struct {
	// MaxFileBytes is the upload size ceiling. Default 10 MiB.
	MaxFileBytes int64

	// MinPages and MaxPages bound the accepted page-count window.
	// Defaults [1, 12].
	MinPages int
	MaxPages int

	// MinTextChars rejects image-only or scanned documents with no
	// extractable text. Default 100.
	MinTextChars int

	// MaxChunks caps the estimated fragment count for the configured
	// chunking parameters. Default 300.
	MaxChunks int

	// Chunking parameters used for the fragment-count estimate. These
	// must match the pipeline's actual chunker config.
	Chunking postprocessors.ChunkConfig
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxFileBytes: 10 << 20,
		MinPages:     1,
		MaxPages:     12,
		MinTextChars: 100,
		MaxChunks:    300,
		Chunking:     postprocessors.DefaultChunkConfig(),
	}
}

// Extraction is a validated upload ready for chunking. Raw keeps the
// original buffer for any re-parsing needs.
type Extraction struct {
	Text      string
	PageCount int
	Raw       []byte
}

// Validator enforces the upload contract.
type Validator struct {
	config Config

	// extract parses the raw bytes into text and a page count. Swapped
	// out in tests to drive post-parse branches without PDF fixtures.
	extract func(data []byte) (text string, pageCount int, err error)
}

// New creates a validator with the given config, filling zero values from
// the defaults.
func New(config Config) *Validator {
	defaults := DefaultConfig()
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = defaults.MaxFileBytes
	}
	if config.MinPages <= 0 {
		config.MinPages = defaults.MinPages
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaults.MaxPages
	}
	if config.MinTextChars <= 0 {
		config.MinTextChars = defaults.MinTextChars
	}
	if config.MaxChunks <= 0 {
		config.MaxChunks = defaults.MaxChunks
	}
	if config.Chunking.Size <= 0 {
		config.Chunking = defaults.Chunking
	}
	return &Validator{config: config, extract: extractText}
}

// Validate checks the upload against every configured constraint, in the
// cheapest-first order: declared type, declared size, magic header, parse,
// page window, text length, estimated chunk count. Size violations are
// rejected before any parsing happens.
func (v *Validator) Validate(upload domain.Upload) (*Extraction, error) {
	if mt := strings.ToLower(strings.TrimSpace(upload.MediaType)); mt != "application/pdf" {
		return nil, domain.NewValidationError(domain.CodeInvalidMediaType,
			"unsupported media type %q, only application/pdf is accepted", upload.MediaType)
	}

	size := upload.Size
	if size <= 0 {
		size = int64(len(upload.Data))
	}
	if size > v.config.MaxFileBytes {
		return nil, domain.NewValidationError(domain.CodeFileTooLarge,
			"file is %d bytes, limit is %d", size, v.config.MaxFileBytes)
	}

	if !bytes.HasPrefix(upload.Data, pdfMagic) {
		return nil, domain.NewValidationError(domain.CodeInvalidHeader,
			"file does not start with a PDF signature")
	}

	text, pageCount, err := v.extract(upload.Data)
	if err != nil {
		return nil, domain.NewValidationError(domain.CodeParseError,
			"could not parse PDF: %v", err)
	}

	if pageCount < v.config.MinPages {
		return nil, domain.NewValidationError(domain.CodeTooFewPages,
			"document has %d pages, minimum is %d", pageCount, v.config.MinPages)
	}
	if pageCount > v.config.MaxPages {
		return nil, domain.NewValidationError(domain.CodeTooManyPages,
			"document has %d pages, maximum is %d", pageCount, v.config.MaxPages)
	}

	if len(text) < v.config.MinTextChars {
		return nil, domain.NewValidationError(domain.CodeNoExtractableText,
			"extracted only %d characters of text; the document may be scanned or image-only", len(text))
	}

	if estimate := v.config.Chunking.EstimateChunks(len(text)); estimate > v.config.MaxChunks {
		return nil, domain.NewValidationError(domain.CodeTooManyChunks,
			"document would produce about %d fragments, limit is %d", estimate, v.config.MaxChunks)
	}

	return &Extraction{Text: text, PageCount: pageCount, Raw: upload.Data}, nil
}

// extractText parses the PDF into plain text and a page count. The pdf
// library panics on some malformed inputs, so parsing is fenced with a
// recover that converts the panic into a parse error.
func extractText(data []byte) (text string, pageCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	pageCount = reader.NumPage()

	var sb strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(content)
	}

	return strings.TrimSpace(sb.String()), pageCount, nil
}
