package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/metrics"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/processor"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/report"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/storage"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	apperrors "github.com/mrzscan/mrzscan-backend/pkg/errors"
	"github.com/mrzscan/mrzscan-backend/pkg/httputil"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// AuditRecorder persists processing audit entries
type AuditRecorder interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
}

// EventPublisher announces finished extraction jobs
type EventPublisher interface {
	PublishExtractionCompleted(ctx context.Context, job *domain.ExtractionJob)
}

// Options holds the optional collaborators and limits of a Service
type Options struct {
	Audit            AuditRecorder
	Events           EventPublisher
	Metrics          *metrics.Metrics
	BatchConcurrency int
	MaxBatchSize     int
	ProcessTimeout   time.Duration
}

// Service orchestrates document processing: decode text directly, or
// detect type → dispatch → cleanup for uploads.
type Service struct {
	registry *processor.Registry
	storage  *storage.TempStorage
	renderer *report.Renderer
	opts     Options
	log      *logger.Logger

	wg sync.WaitGroup
}

// NewService creates a new document processing service
func NewService(registry *processor.Registry, store *storage.TempStorage, log *logger.Logger, opts Options) *Service {
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = 8
	}
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = 100
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = time.Minute
	}
	return &Service{
		registry: registry,
		storage:  store,
		renderer: report.NewRenderer(),
		opts:     opts,
		log:      log,
	}
}

// DecodeRequest is one MRZ given as lines or as raw OCR text. Format pins
// the layout (TD1, TD2 or TD3) and skips detection.
type DecodeRequest struct {
	Lines  []string `json:"lines,omitempty" validate:"required_without=Text,excluded_with=Text,max=8,dive,max=120"`
	Text   string   `json:"text,omitempty" validate:"max=4000"`
	Format string   `json:"format,omitempty" validate:"omitempty,mrz_format"`
}

func init() {
	err := httputil.RegisterCustomValidation("mrz_format", "must be TD1, TD2 or TD3", func(fl validator.FieldLevel) bool {
		_, ok := mrz.FormatByID(mrz.FormatID(strings.ToUpper(fl.Field().String())))
		return ok
	})
	if err != nil {
		panic(err)
	}
}

func (r DecodeRequest) lines() []string {
	if len(r.Lines) > 0 {
		return r.Lines
	}
	return mrz.SplitLines(r.Text)
}

// Decode decodes one MRZ synchronously. Checksum mismatches are reported as
// warnings on the result, never as an error.
func (s *Service) Decode(ctx context.Context, req DecodeRequest) (*domain.ExtractionResult, error) {
	start := time.Now()

	rec, err := s.decode(req)
	if err != nil {
		appErr := toAppError(err)
		s.opts.Metrics.ObserveDecode(req.Format, appErr.Code)
		return nil, appErr
	}
	s.observeRecord(rec)

	result := domain.NewExtractionResult("", "mrz", rec)
	result.Warnings = processor.Warnings(rec, "")
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (s *Service) decode(req DecodeRequest) (mrz.Record, error) {
	if req.Format == "" {
		return mrz.Decode(req.lines())
	}
	f, ok := mrz.FormatByID(mrz.FormatID(strings.ToUpper(req.Format)))
	if !ok {
		return mrz.Record{}, apperrors.BadRequest(fmt.Sprintf("unknown format %q", req.Format)).
			WithDetails(map[string]string{"format": req.Format, "supported": "TD1,TD2,TD3"})
	}
	return mrz.DecodeAs(f, req.lines())
}

func (s *Service) observeRecord(rec mrz.Record) {
	result := "valid"
	if !rec.Valid() {
		result = "invalid"
	}
	s.opts.Metrics.ObserveDecode(string(rec.Format), result)
	s.opts.Metrics.ObserveChecksumFailures(rec.FailedChecks())
	s.opts.Metrics.AddCorrections(len(rec.Corrections))
}

// BatchItem is the outcome for one document of a batch, in request order
type BatchItem struct {
	Result *domain.ExtractionResult
	Err    *apperrors.AppError
}

// DecodeBatch decodes documents concurrently, at most BatchConcurrency at a
// time. A failing document does not fail the batch; only cancellation does.
func (s *Service) DecodeBatch(ctx context.Context, reqs []DecodeRequest) ([]BatchItem, error) {
	if len(reqs) == 0 {
		return nil, apperrors.BadRequest("batch is empty")
	}
	if len(reqs) > s.opts.MaxBatchSize {
		return nil, apperrors.BadRequest(fmt.Sprintf("batch exceeds %d documents", s.opts.MaxBatchSize))
	}
	s.opts.Metrics.ObserveBatchSize(len(reqs))

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BatchConcurrency)

	for i, req := range reqs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.Decode(gctx, req)
			if err != nil {
				items[i] = BatchItem{Err: toAppError(err)}
				return nil
			}
			items[i] = BatchItem{Result: result}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

// StartExtraction creates a new extraction job and processes the document asynchronously.
// Returns the job immediately so the caller can poll for results.
// The upload bytes are zeroed as soon as processing ends.
func (s *Service) StartExtraction(ctx context.Context, data []byte, docType domain.DocumentType, consentAt time.Time, subject string) (*domain.ExtractionJob, error) {
	if media := ocr.Sniff(data); media == ocr.MediaUnknown {
		storage.ZeroBytes(data)
		return nil, apperrors.UnsupportedMediaType(string(media))
	}

	// Find all processors that can handle this document type (supports fallback)
	processors := s.registry.FindProcessors(docType)
	if len(processors) == 0 {
		storage.ZeroBytes(data)
		return nil, apperrors.BadRequest(fmt.Sprintf("no processor available for document type: %s", docType))
	}

	jobID := storage.GenerateJobID()

	// Create job in processing state
	job := &domain.ExtractionJob{
		JobID:        jobID,
		DocumentType: docType,
		Status:       domain.StatusProcessing,
		CreatedAt:    time.Now().UTC(),
	}
	s.storage.StoreJob(job)
	snapshot := s.storage.GetJob(jobID)

	// Process asynchronously; the caller polls with the job ID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processAsync(ctx, jobID, data, docType, processors, consentAt, subject)
	}()

	return snapshot, nil
}

// processAsync runs extraction in a background goroutine.
func (s *Service) processAsync(ctx context.Context, jobID string, data []byte, docType domain.DocumentType, processors []processor.Processor, consentAt time.Time, subject string) {
	// Detach from the request so its cancellation doesn't kill processing
	bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ProcessTimeout)
	defer cancel()
	log := s.log.WithJobID(jobID)

	// Try processors in order; if one fails, fall through to the next
	var (
		result *domain.ExtractionResult
		errs   []error
	)
	for _, proc := range processors {
		log.Debug().
			Str("processor", proc.Name()).
			Str("doc_type", string(docType)).
			Msg("trying document extraction")

		start := time.Now()
		res, err := proc.Process(bgCtx, data, docType)
		s.opts.Metrics.ObserveOCRLatency(proc.Name(), time.Since(start))
		if err == nil {
			result = res
			log.Info().Str("processor", proc.Name()).Msg("processor succeeded")
			break
		}
		errs = append(errs, err)
		log.Debug().Err(err).Str("processor", proc.Name()).Msg("processor failed, trying next")
	}

	// Zero upload data immediately after processing
	storage.ZeroBytes(data)

	entry := &domain.AuditEntry{
		JobID:        jobID,
		Subject:      subject,
		DocumentType: string(docType),
		ConsentAt:    consentAt,
	}

	if result == nil {
		appErr := toAppError(pickError(errs))
		s.finish(jobID, func(j *domain.ExtractionJob) {
			j.Status = domain.StatusFailed
			j.Error = appErr.Message
			j.ErrorCode = appErr.Code
		})
		log.Warn().Err(appErr).Str("code", appErr.Code).Msg("all processors failed")

		s.opts.Metrics.ObserveDecode("", appErr.Code)
		entry.Status = string(domain.StatusFailed)
		entry.ErrorKind = appErr.Code
		s.writeAuditLog(bgCtx, entry)
		s.publish(bgCtx, jobID)
		return
	}

	s.observeRecord(result.Record)
	s.finish(jobID, func(j *domain.ExtractionJob) {
		j.Status = domain.StatusCompleted
		j.Result = result
	})

	entry.Status = string(domain.StatusCompleted)
	entry.Format = string(result.Record.Format)
	entry.Processor = result.Processor
	entry.ChecksPassed = result.Valid
	entry.FailedChecks = strings.Join(result.Record.FailedChecks(), ",")
	entry.Corrections = len(result.Record.Corrections)
	s.writeAuditLog(bgCtx, entry)
	s.publish(bgCtx, jobID)

	log.Info().
		Str("format", entry.Format).
		Bool("valid", result.Valid).
		Int64("duration_ms", result.ProcessingTimeMs).
		Msg("document extraction completed")
}

func (s *Service) finish(jobID string, update func(*domain.ExtractionJob)) {
	now := time.Now().UTC()
	s.storage.UpdateJob(jobID, func(j *domain.ExtractionJob) {
		update(j)
		j.CompletedAt = &now
		s.opts.Metrics.IncrementJob(string(j.Status))
	})
}

func (s *Service) publish(ctx context.Context, jobID string) {
	if s.opts.Events == nil {
		return
	}
	if job := s.storage.GetJob(jobID); job != nil {
		s.opts.Events.PublishExtractionCompleted(ctx, job)
	}
}

// writeAuditLog records the processing event. Failures are logged, not
// returned: the extraction result stands either way.
func (s *Service) writeAuditLog(ctx context.Context, entry *domain.AuditEntry) {
	if s.opts.Audit == nil {
		return
	}
	if err := s.opts.Audit.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("job_id", entry.JobID).Msg("failed to write document processing audit log")
	}
}

// GetJob retrieves an extraction job by ID
func (s *Service) GetJob(jobID string) (*domain.ExtractionJob, error) {
	job := s.storage.GetJob(jobID)
	if job == nil {
		return nil, apperrors.NotFound(i18n.T("resources.job"))
	}
	return job, nil
}

// Report renders the PDF report of a completed job
func (s *Service) Report(jobID string, l *i18n.Localizer) ([]byte, error) {
	job, err := s.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusCompleted || job.Result == nil {
		return nil, apperrors.NotFound(l.T("resources.report"))
	}
	return s.renderer.RenderBytes(job.Result, l)
}

// RenderReport renders the PDF report of a result obtained from Decode
func (s *Service) RenderReport(result *domain.ExtractionResult, l *i18n.Localizer) ([]byte, error) {
	return s.renderer.RenderBytes(result, l)
}

// Wait blocks until every background extraction has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
