package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
)

// ErrNotText is returned by the text processor for binary uploads.
var ErrNotText = errors.New("mrz: upload is not MRZ text")

// MRZProcessor decodes the Machine Readable Zone of a travel document
// (ICAO 9303 TD1, TD2 and TD3).
//
// Without a text source it reads the upload as the MRZ text itself. With
// one it first runs OCR over the uploaded image.
type MRZProcessor struct {
	source ocr.TextSource
}

// NewMRZProcessor creates a processor for uploads that already are MRZ text
func NewMRZProcessor() *MRZProcessor {
	return &MRZProcessor{}
}

// NewOCRProcessor creates a processor that reads images through source
func NewOCRProcessor(source ocr.TextSource) *MRZProcessor {
	return &MRZProcessor{source: source}
}

func (p *MRZProcessor) Name() string {
	if p.source == nil {
		return "mrz"
	}
	return "mrz+" + p.source.Name()
}

func (p *MRZProcessor) CanProcess(docType domain.DocumentType) bool {
	return docType.Valid()
}

func (p *MRZProcessor) Process(ctx context.Context, data []byte, docType domain.DocumentType) (*domain.ExtractionResult, error) {
	start := time.Now()

	text, err := p.text(ctx, data)
	if err != nil {
		return nil, err
	}

	rec, err := mrz.DecodeText(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Name(), err)
	}

	result := domain.NewExtractionResult(docType, p.Name(), rec)
	result.Warnings = Warnings(rec, docType)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (p *MRZProcessor) text(ctx context.Context, data []byte) (string, error) {
	media := ocr.Sniff(data)
	if p.source == nil {
		if media != ocr.MediaText {
			return "", ErrNotText
		}
		return string(data), nil
	}
	if !media.IsImage() {
		return "", ocr.ErrUnsupportedImage
	}
	return p.source.Text(ctx, data)
}

// Warnings lists the non-fatal findings for rec. docType may be empty when
// the caller did not claim a document type.
func Warnings(rec mrz.Record, docType domain.DocumentType) []domain.Warning {
	var out []domain.Warning
	if failed := rec.FailedChecks(); len(failed) > 0 {
		out = append(out, domain.NewWarning("mrz.checksum_mismatch", map[string]string{
			"fields": strings.Join(failed, ","),
		}))
	}
	if n := len(rec.Corrections); n > 0 {
		out = append(out, domain.NewWarning("mrz.corrected_characters", map[string]string{
			"count": strconv.Itoa(n),
		}))
	}
	if docType != "" && !docType.Matches(rec.DocumentCode) {
		out = append(out, domain.NewWarning("mrz.document_type_mismatch", map[string]string{
			"code": rec.DocumentCode,
		}))
	}
	return out
}
