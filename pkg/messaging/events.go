package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// EventOCRTextExtracted carries OCR output from an upstream scanner.
	EventOCRTextExtracted = "ocr.text.extracted"
	// EventMRZDecoded is published for every successful decode, valid or not.
	EventMRZDecoded = "mrz.decoded"
	// EventMRZDecodeFailed is published when no record could be produced.
	EventMRZDecodeFailed = "mrz.decode_failed"
	// EventExtractionCompleted closes an asynchronous upload job.
	EventExtractionCompleted = "document.extraction.completed"
)

// Exchange names
const (
	ExchangeDocumentEvents = "document.events"
	ExchangeDeadLetter     = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// OCRTextExtractedEvent is consumed by the decode worker.
type OCRTextExtractedEvent struct {
	DocumentID string   `json:"document_id"`
	Lines      []string `json:"lines,omitempty"`
	Text       string   `json:"text,omitempty"`
	// Format optionally pins the layout (TD1, TD2 or TD3).
	Format string `json:"format,omitempty"`
}

// MRZDecodedEvent reports a decoded MRZ. Valid is false when any check digit
// failed; Validity says which.
type MRZDecodedEvent struct {
	DocumentID   string            `json:"document_id"`
	Format       string            `json:"format"`
	Fields       map[string]string `json:"fields"`
	Validity     map[string]bool   `json:"validity"`
	Valid        bool              `json:"valid"`
	Corrections  int               `json:"corrections"`
	DocumentCode string            `json:"document_code"`
}

// MRZDecodeFailedEvent reports why no record could be produced.
type MRZDecodeFailedEvent struct {
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Stage      string `json:"stage,omitempty"`
	Message    string `json:"message"`
}

// ExtractionCompletedEvent is published when an upload job finishes. It
// never carries personal data, only the outcome.
type ExtractionCompletedEvent struct {
	JobID        string `json:"job_id"`
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
	Processor    string `json:"processor,omitempty"`
	Valid        bool   `json:"valid"`
}
