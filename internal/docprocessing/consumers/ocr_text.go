package consumers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/metrics"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/messaging"
)

// QueueOCRText is the worker queue bound to OCR output events
const QueueOCRText = "mrz-worker.ocr-text"

// ResultPublisher publishes decode outcomes
type ResultPublisher interface {
	PublishDecoded(ctx context.Context, documentID string, rec mrz.Record) error
	PublishDecodeFailed(ctx context.Context, documentID string, cause error) error
}

// OCRTextHandler decodes OCR output events (testable without RabbitMQ)
type OCRTextHandler struct {
	publisher ResultPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// NewOCRTextHandler creates a handler. m may be nil.
func NewOCRTextHandler(publisher ResultPublisher, m *metrics.Metrics, log *logger.Logger) *OCRTextHandler {
	return &OCRTextHandler{
		publisher: publisher,
		metrics:   m,
		logger:    log,
	}
}

// Register adds the handler to r
func (h *OCRTextHandler) Register(r *messaging.Router) {
	r.RegisterHandler(messaging.EventOCRTextExtracted, h.HandleOCRText)
}

// HandleOCRText decodes the MRZ carried by an ocr.text.extracted event and
// publishes either mrz.decoded or mrz.decode_failed. Unreadable input is a
// final answer, so only publish failures are returned for redelivery.
func (h *OCRTextHandler) HandleOCRText(ctx context.Context, event *messaging.Event) error {
	var data messaging.OCRTextExtractedEvent
	if err := event.UnmarshalData(&data); err != nil {
		h.logger.Error().Err(err).Msg("failed to unmarshal OCRTextExtractedEvent")
		return err
	}

	if data.DocumentID == "" {
		h.logger.Warn().Str("event_id", event.ID).Msg("ocr.text.extracted event missing document_id, skipping")
		return nil
	}

	log := h.logger.WithDocumentID(data.DocumentID)

	rec, err := decode(data)
	if err != nil {
		h.metrics.ObserveDecode(data.Format, "error")
		log.Info().Err(err).Msg("mrz decode failed")
		return h.publisher.PublishDecodeFailed(ctx, data.DocumentID, err)
	}

	result := "valid"
	if !rec.Valid() {
		result = "invalid"
	}
	h.metrics.ObserveDecode(string(rec.Format), result)
	h.metrics.ObserveChecksumFailures(rec.FailedChecks())
	h.metrics.AddCorrections(len(rec.Corrections))

	log.Info().
		Str("format", string(rec.Format)).
		Bool("valid", rec.Valid()).
		Int("corrections", len(rec.Corrections)).
		Msg("mrz decoded")

	return h.publisher.PublishDecoded(ctx, data.DocumentID, rec)
}

func decode(data messaging.OCRTextExtractedEvent) (mrz.Record, error) {
	lines := data.Lines
	if len(lines) == 0 {
		lines = mrz.SplitLines(data.Text)
	}
	if data.Format == "" {
		return mrz.Decode(lines)
	}
	f, ok := mrz.FormatByID(mrz.FormatID(strings.ToUpper(data.Format)))
	if !ok {
		return mrz.Record{}, &mrz.DecodeError{
			Stage:  mrz.StageClassifying,
			Kind:   mrz.ErrUnsupportedFormat,
			Detail: fmt.Sprintf("unknown format %q", data.Format),
		}
	}
	return mrz.DecodeAs(f, lines)
}

// OCRTextConsumer consumes OCR output from the document events exchange
type OCRTextConsumer struct {
	consumer *messaging.Consumer
	handler  *OCRTextHandler
}

// NewOCRTextConsumer declares the worker queue and binds it to OCR events
func NewOCRTextConsumer(rmq *messaging.RabbitMQ, handler *OCRTextHandler, log *logger.Logger) (*OCRTextConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, QueueOCRText, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeDocumentEvents, messaging.EventOCRTextExtracted); err != nil {
		return nil, err
	}

	handler.Register(consumer.Router)

	return &OCRTextConsumer{consumer: consumer, handler: handler}, nil
}

// Start starts consuming messages
func (c *OCRTextConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}
