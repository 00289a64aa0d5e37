package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/events"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/metrics"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/processor"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/storage"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	apperrors "github.com/mrzscan/mrzscan-backend/pkg/errors"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/mrzscan/mrzscan-backend/pkg/logger"
	"github.com/mrzscan/mrzscan-backend/pkg/messaging"
	"github.com/mrzscan/mrzscan-backend/pkg/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name string
	text string
	err  error
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Text(ctx context.Context, image []byte) (string, error) {
	return f.text, f.err
}

type memAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (m *memAudit) Create(ctx context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return m.err
}

func (m *memAudit) all() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AuditEntry(nil), m.entries...)
}

type fixture struct {
	svc     *Service
	store   *storage.TempStorage
	audit   *memAudit
	pub     *testutil.MockPublisher
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, sources ...ocr.TextSource) *fixture {
	t.Helper()

	procs := []processor.Processor{processor.NewMRZProcessor()}
	for _, src := range sources {
		procs = append(procs, processor.NewOCRProcessor(src))
	}

	store := storage.NewTempStorage(time.Minute)
	t.Cleanup(store.Close)

	f := &fixture{
		store:   store,
		audit:   &memAudit{},
		pub:     testutil.NewMockPublisher(),
		metrics: metrics.New(prometheus.NewRegistry()),
	}
	f.svc = NewService(processor.NewRegistry(procs...), store, logger.Nop(), Options{
		Audit:            f.audit,
		Events:           events.NewWithPublisher(f.pub, logger.Nop()),
		Metrics:          f.metrics,
		BatchConcurrency: 2,
		MaxBatchSize:     3,
		ProcessTimeout:   5 * time.Second,
	})
	return f
}

func (f *fixture) await(t *testing.T, jobID string) *domain.ExtractionJob {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Wait(ctx))

	job, err := f.svc.GetJob(jobID)
	require.NoError(t, err)
	require.True(t, job.Done(), "job still %s", job.Status)
	return job
}

func appError(t *testing.T, err error) *apperrors.AppError {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr
}

func TestDecode(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Decode(context.Background(), DecodeRequest{Lines: testutil.TD3Lines})
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Equal(t, "mrz", result.Processor)
	assert.Equal(t, "L898902C3", result.Fields[mrz.FieldDocumentNumber])
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Decodes.WithLabelValues("TD3", "valid")))
}

func TestDecode_Text(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Decode(context.Background(), DecodeRequest{Text: testutil.TD3Text})
	require.NoError(t, err)
	assert.Equal(t, mrz.FormatID("TD3"), result.Record.Format)
}

func TestDecode_ChecksumMismatchIsWarning(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Decode(context.Background(), DecodeRequest{Lines: testutil.TD3WithBadDocumentNumber})
	require.NoError(t, err)

	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Warnings)
	assert.Equal(t, "mrz.checksum_mismatch", result.Warnings[0].Code)
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.ChecksumFailures.WithLabelValues(mrz.FieldDocumentNumber)))
}

func TestDecode_WithFormat(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.Decode(context.Background(), DecodeRequest{Lines: testutil.TD2Lines, Format: "td2"})
	require.NoError(t, err)
	assert.Equal(t, mrz.FormatID("TD2"), result.Record.Format)

	_, err = f.svc.Decode(context.Background(), DecodeRequest{Lines: testutil.TD3Lines, Format: "TD1"})
	appErr := appError(t, err)
	assert.Equal(t, domain.CodeMalformedInput, appErr.Code)

	_, err = f.svc.Decode(context.Background(), DecodeRequest{Lines: testutil.TD3Lines, Format: "TD9"})
	appErr = appError(t, err)
	assert.Equal(t, http.StatusBadRequest, appErr.StatusCode)
	assert.Equal(t, map[string]string{"format": "TD9", "supported": "TD1,TD2,TD3"}, appErr.Details)
}

func TestDecode_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		lines []string
		code  string
	}{
		{"no lines", nil, domain.CodeMalformedInput},
		{"unknown layout", []string{strings.Repeat("A", 20), strings.Repeat("B", 20)}, domain.CodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Decode(context.Background(), DecodeRequest{Lines: tt.lines})
			appErr := appError(t, err)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode)
		})
	}
}

func TestDecodeBatch(t *testing.T) {
	f := newFixture(t)

	items, err := f.svc.DecodeBatch(context.Background(), []DecodeRequest{
		{Lines: testutil.TD3Lines},
		{Lines: []string{"garbage"}},
		{Lines: testutil.TD1Lines},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	require.NotNil(t, items[0].Result)
	assert.Equal(t, mrz.FormatID("TD3"), items[0].Result.Record.Format)

	require.NotNil(t, items[1].Err)
	assert.Nil(t, items[1].Result)

	require.NotNil(t, items[2].Result)
	assert.Equal(t, mrz.FormatID("TD1"), items[2].Result.Record.Format)

	assert.Equal(t, 1, promtest.CollectAndCount(f.metrics.BatchSize))
}

func TestDecodeBatch_Limits(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.DecodeBatch(context.Background(), nil)
	assert.Equal(t, http.StatusBadRequest, appError(t, err).StatusCode)

	reqs := make([]DecodeRequest, 4)
	_, err = f.svc.DecodeBatch(context.Background(), reqs)
	assert.Equal(t, http.StatusBadRequest, appError(t, err).StatusCode)
}

func TestDecodeBatch_Cancelled(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.DecodeBatch(ctx, []DecodeRequest{{Lines: testutil.TD3Lines}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStartExtraction_Text(t *testing.T) {
	f := newFixture(t)
	consent := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	data := []byte(testutil.TD3Text)

	job, err := f.svc.StartExtraction(context.Background(), data, domain.DocumentTypePassport, consent, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, job.Status)

	done := f.await(t, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, "mrz", done.Result.Processor)
	assert.Equal(t, domain.DocumentTypePassport, done.Result.DocumentType)
	assert.NotNil(t, done.CompletedAt)

	for _, b := range data {
		require.Zero(t, b, "upload must be zeroed")
	}

	entries := f.audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].Subject)
	assert.Equal(t, "completed", entries[0].Status)
	assert.Equal(t, "TD3", entries[0].Format)
	assert.True(t, entries[0].ChecksPassed)
	assert.Equal(t, consent, entries[0].ConsentAt)

	payload := f.pub.AssertEventPublished(t, messaging.EventExtractionCompleted)
	evt, ok := payload.(messaging.ExtractionCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, job.JobID, evt.JobID)
	assert.True(t, evt.Valid)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.Jobs.WithLabelValues("completed")))
}

func TestStartExtraction_OCRFallback(t *testing.T) {
	broken := fakeSource{name: "broken", err: errors.New("connection refused")}
	good := fakeSource{name: "good", text: testutil.TD3Text}
	f := newFixture(t, broken, good)

	job, err := f.svc.StartExtraction(context.Background(), append([]byte(nil), testutil.PNGHeader...), domain.DocumentTypePassport, time.Now(), "")
	require.NoError(t, err)

	done := f.await(t, job.JobID)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	assert.Equal(t, "mrz+good", done.Result.Processor)
}

func TestStartExtraction_Failed(t *testing.T) {
	tests := []struct {
		name    string
		sources []ocr.TextSource
		code    string
	}{
		{"ocr down", []ocr.TextSource{fakeSource{name: "down", err: errors.New("timeout")}}, CodeOCRUnavailable},
		{"no text", []ocr.TextSource{fakeSource{name: "blank", err: ocr.ErrNoText}}, domain.CodeMalformedInput},
		{"no ocr configured", nil, domain.CodeMalformedInput},
		{"unreadable mrz", []ocr.TextSource{
			fakeSource{name: "down", err: errors.New("timeout")},
			fakeSource{name: "noise", text: strings.Repeat("A", 20) + "\n" + strings.Repeat("B", 20)},
		}, domain.CodeUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.sources...)

			job, err := f.svc.StartExtraction(context.Background(), append([]byte(nil), testutil.JPEGHeader...), domain.DocumentTypeIDCard, time.Now(), "")
			require.NoError(t, err)

			done := f.await(t, job.JobID)
			assert.Equal(t, domain.StatusFailed, done.Status)
			assert.Equal(t, tt.code, done.ErrorCode)
			assert.NotEmpty(t, done.Error)
			assert.Nil(t, done.Result)

			entries := f.audit.all()
			require.Len(t, entries, 1)
			assert.Equal(t, "failed", entries[0].Status)
			assert.Equal(t, tt.code, entries[0].ErrorKind)

			f.pub.AssertEventPublished(t, messaging.EventExtractionCompleted)
		})
	}
}

func TestStartExtraction_Rejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.StartExtraction(context.Background(), []byte{0x00, 0x01, 0x02}, domain.DocumentTypePassport, time.Now(), "")
	assert.Equal(t, http.StatusUnsupportedMediaType, appError(t, err).StatusCode)

	_, err = f.svc.StartExtraction(context.Background(), []byte(testutil.TD3Text), domain.DocumentType("visa"), time.Now(), "")
	assert.Equal(t, http.StatusBadRequest, appError(t, err).StatusCode)

	assert.Zero(t, f.store.Len())
	f.pub.AssertNoEventsPublished(t)
}

func TestStartExtraction_AuditFailureKeepsResult(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("db down")

	job, err := f.svc.StartExtraction(context.Background(), []byte(testutil.TD3Text), domain.DocumentTypePassport, time.Now(), "")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, f.await(t, job.JobID).Status)
}

func TestGetJob_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetJob("missing")
	assert.Equal(t, http.StatusNotFound, appError(t, err).StatusCode)
}

func TestReport(t *testing.T) {
	f := newFixture(t, fakeSource{name: "down", err: errors.New("timeout")})
	l := i18n.NewLocalizer(i18n.LocaleEnglish)

	job, err := f.svc.StartExtraction(context.Background(), []byte(testutil.TD3Text), domain.DocumentTypePassport, time.Now(), "")
	require.NoError(t, err)
	f.await(t, job.JobID)

	pdf, err := f.svc.Report(job.JobID, l)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(pdf), "%PDF-"))

	failed, err := f.svc.StartExtraction(context.Background(), append([]byte(nil), testutil.PNGHeader...), domain.DocumentTypePassport, time.Now(), "")
	require.NoError(t, err)
	f.await(t, failed.JobID)

	_, err = f.svc.Report(failed.JobID, l)
	assert.Equal(t, http.StatusNotFound, appError(t, err).StatusCode)

	_, err = f.svc.Report("missing", l)
	assert.Equal(t, http.StatusNotFound, appError(t, err).StatusCode)
}
