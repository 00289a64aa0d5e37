package processor

import (
	"context"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
)

// Processor defines the interface for document data extraction.
// Text and image inputs are handled by different implementations that
// share the same decoder, so new OCR sources need no change in the
// service or handler layer.
type Processor interface {
	// CanProcess returns true if this processor handles the given document type
	CanProcess(docType domain.DocumentType) bool

	// Process extracts the MRZ from the uploaded bytes.
	// The data should NOT be retained after processing.
	Process(ctx context.Context, data []byte, docType domain.DocumentType) (*domain.ExtractionResult, error)

	// Name returns the processor name for logging/audit
	Name() string
}

// Registry holds all registered processors and dispatches to the right one
type Registry struct {
	processors []Processor
}

// NewRegistry creates a new processor registry
func NewRegistry(processors ...Processor) *Registry {
	return &Registry{processors: processors}
}

// FindProcessor returns the first processor that can handle the given document type
func (r *Registry) FindProcessor(docType domain.DocumentType) Processor {
	for _, p := range r.processors {
		if p.CanProcess(docType) {
			return p
		}
	}
	return nil
}

// FindProcessors returns all processors that can handle the given document type,
// in registration order. This supports fallback: if the first processor fails
// (e.g. the text reader rejects an image, or one OCR engine misreads the
// MRZ), the next one can try.
func (r *Registry) FindProcessors(docType domain.DocumentType) []Processor {
	var result []Processor
	for _, p := range r.processors {
		if p.CanProcess(docType) {
			result = append(result, p)
		}
	}
	return result
}

// Names lists the registered processors in order
func (r *Registry) Names() []string {
	names := make([]string, len(r.processors))
	for i, p := range r.processors {
		names[i] = p.Name()
	}
	return names
}

// NewDefaultRegistry registers the text processor first, then one OCR
// processor per source in the given order.
func NewDefaultRegistry(sources []ocr.TextSource) *Registry {
	processors := []Processor{NewMRZProcessor()}
	for _, src := range sources {
		processors = append(processors, NewOCRProcessor(src))
	}
	return NewRegistry(processors...)
}
