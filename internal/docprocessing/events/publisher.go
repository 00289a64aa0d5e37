package events

import (
	"context"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/messaging"
)

// Publisher is the subset of messaging.Publisher used here
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// DocumentEventPublisher publishes decode and extraction events
type DocumentEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewDocumentEventPublisher creates a publisher on the document events exchange
func NewDocumentEventPublisher(rmq *messaging.RabbitMQ, source string, log *logger.Logger) (*DocumentEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeDocumentEvents, source, log)
	if err != nil {
		return nil, err
	}
	return NewWithPublisher(publisher, log), nil
}

// NewWithPublisher wraps an existing publisher
func NewWithPublisher(p Publisher, log *logger.Logger) *DocumentEventPublisher {
	return &DocumentEventPublisher{
		publisher: p,
		logger:    log,
	}
}

// PublishDecoded publishes a decoded MRZ
func (p *DocumentEventPublisher) PublishDecoded(ctx context.Context, documentID string, rec mrz.Record) error {
	data := messaging.MRZDecodedEvent{
		DocumentID:   documentID,
		Format:       string(rec.Format),
		Fields:       rec.Fields(),
		Validity:     rec.Validity(),
		Valid:        rec.Valid(),
		Corrections:  len(rec.Corrections),
		DocumentCode: rec.DocumentCode,
	}

	if err := p.publisher.Publish(ctx, messaging.EventMRZDecoded, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", documentID).Msg("failed to publish mrz decoded event")
		return err
	}
	return nil
}

// PublishDecodeFailed publishes why a document could not be decoded
func (p *DocumentEventPublisher) PublishDecodeFailed(ctx context.Context, documentID string, cause error) error {
	kind := domain.ErrorCode(cause)
	if kind == "" {
		kind = domain.CodeDecodeFailure
	}
	data := messaging.MRZDecodeFailedEvent{
		DocumentID: documentID,
		Kind:       kind,
		Stage:      domain.ErrorStage(cause),
		Message:    cause.Error(),
	}

	if err := p.publisher.Publish(ctx, messaging.EventMRZDecodeFailed, data); err != nil {
		p.logger.Error().Err(err).Str("document_id", documentID).Msg("failed to publish mrz decode failed event")
		return err
	}
	return nil
}

// PublishExtractionCompleted publishes the outcome of an upload job. Only
// status information leaves the service, never decoded fields.
func (p *DocumentEventPublisher) PublishExtractionCompleted(ctx context.Context, job *domain.ExtractionJob) {
	data := messaging.ExtractionCompletedEvent{
		JobID:        job.JobID,
		DocumentType: string(job.DocumentType),
		Status:       string(job.Status),
	}
	if job.Result != nil {
		data.Processor = job.Result.Processor
		data.Valid = job.Result.Valid
	}

	if err := p.publisher.Publish(ctx, messaging.EventExtractionCompleted, data); err != nil {
		p.logger.Error().Err(err).Str("job_id", job.JobID).Msg("failed to publish extraction completed event")
	}
}

