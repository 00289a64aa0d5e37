package domain

import (
	"time"

	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
)

// DocumentType is the kind of travel document the client claims to upload
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeIDCard         DocumentType = "id_card"
	DocumentTypeTravelDocument DocumentType = "travel_document"
)

// DocumentTypes lists every accepted document type
var DocumentTypes = []DocumentType{
	DocumentTypePassport,
	DocumentTypeIDCard,
	DocumentTypeTravelDocument,
}

// Valid reports whether t is one of DocumentTypes
func (t DocumentType) Valid() bool {
	for _, dt := range DocumentTypes {
		if t == dt {
			return true
		}
	}
	return false
}

// Matches reports whether an MRZ document code is plausible for t. Passports
// start with P; identity cards use I, A or C; other travel documents accept
// any code.
func (t DocumentType) Matches(documentCode string) bool {
	if documentCode == "" {
		return false
	}
	switch t {
	case DocumentTypePassport:
		return documentCode[0] == 'P'
	case DocumentTypeIDCard:
		switch documentCode[0] {
		case 'I', 'A', 'C':
			return true
		}
		return false
	default:
		return true
	}
}

// ExtractionStatus represents the processing state of an extraction job
type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "pending"
	StatusProcessing ExtractionStatus = "processing"
	StatusCompleted  ExtractionStatus = "completed"
	StatusFailed     ExtractionStatus = "failed"
)

// Warning is a non-fatal finding about a decoded document. Code is the i18n
// message key; Message is its English rendering.
type Warning struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Params  map[string]string `json:"params,omitempty"`
}

// NewWarning renders key in the default locale
func NewWarning(key string, params map[string]string) Warning {
	return Warning{Code: key, Message: i18n.T(key, params), Params: params}
}

// Localize renders the warning for l
func (w Warning) Localize(l *i18n.Localizer) string {
	return l.T(w.Code, w.Params)
}

// LocalizeWarnings renders every warning for l
func LocalizeWarnings(l *i18n.Localizer, warnings []Warning) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, len(warnings))
	for i, w := range warnings {
		out[i] = w.Localize(l)
	}
	return out
}

// ExtractionResult is the outcome of decoding one document
type ExtractionResult struct {
	DocumentType     DocumentType      `json:"document_type"`
	Processor        string            `json:"processor"`
	Record           mrz.Record        `json:"record"`
	Fields           map[string]string `json:"fields"`
	Validity         map[string]bool   `json:"validity"`
	Valid            bool              `json:"valid"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
}

// NewExtractionResult derives the flattened views of rec.
func NewExtractionResult(docType DocumentType, processor string, rec mrz.Record) *ExtractionResult {
	return &ExtractionResult{
		DocumentType: docType,
		Processor:    processor,
		Record:       rec,
		Fields:       rec.Fields(),
		Validity:     rec.Validity(),
		Valid:        rec.Valid(),
	}
}

// ExtractionJob represents a complete extraction job
type ExtractionJob struct {
	JobID        string            `json:"job_id"`
	DocumentType DocumentType      `json:"document_type"`
	Status       ExtractionStatus  `json:"status"`
	Result       *ExtractionResult `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
	ErrorCode    string            `json:"error_code,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// Done reports whether the job reached a terminal state
func (j *ExtractionJob) Done() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// AuditEntry records one processing event. It holds no personal data: only
// the outcome of the checks, never the decoded fields.
type AuditEntry struct {
	ID           string    `db:"id"`
	JobID        string    `db:"job_id"`
	Subject      string    `db:"subject"`
	DocumentType string    `db:"document_type"`
	Format       string    `db:"format"`
	Processor    string    `db:"processor"`
	Status       string    `db:"status"`
	ChecksPassed bool      `db:"checks_passed"`
	FailedChecks string    `db:"failed_checks"`
	Corrections  int       `db:"corrections"`
	ErrorKind    string    `db:"error_kind"`
	ConsentAt    time.Time `db:"consent_at"`
	CreatedAt    time.Time `db:"created_at"`
}
