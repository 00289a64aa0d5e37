package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for MRZ decoding and document extraction.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Decode outcomes by format and result
	Decodes *prometheus.CounterVec

	// Failed check digits by field
	ChecksumFailures *prometheus.CounterVec

	// Characters replaced during OCR normalization
	Corrections prometheus.Counter

	// OCR latency by source
	OCRLatency *prometheus.HistogramVec

	// Extraction jobs by final status
	Jobs *prometheus.CounterVec

	// Documents per batch request
	BatchSize prometheus.Histogram
}

// New registers every metric with reg. Pass prometheus.DefaultRegisterer in
// binaries and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decodes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mrzscan_decodes_total",
			Help: "MRZ decode attempts by detected format and result",
		}, []string{"format", "result"}), // result: "valid", "invalid", or an error code

		ChecksumFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mrzscan_checksum_failures_total",
			Help: "Check digits that did not match, by field",
		}, []string{"field"}),

		Corrections: f.NewCounter(prometheus.CounterOpts{
			Name: "mrzscan_ocr_corrections_total",
			Help: "Confusable characters replaced by digits during normalization",
		}),

		OCRLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mrzscan_ocr_duration_seconds",
			Help:    "Duration of text recognition by source",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}, []string{"source"}),

		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mrzscan_extraction_jobs_total",
			Help: "Extraction jobs by final status",
		}, []string{"status"}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mrzscan_batch_documents",
			Help:    "Number of documents per batch decode request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

// ObserveDecode records one decode outcome.
func (m *Metrics) ObserveDecode(format, result string) {
	if m != nil {
		m.Decodes.WithLabelValues(format, result).Inc()
	}
}

// ObserveChecksumFailures records each failed check digit.
func (m *Metrics) ObserveChecksumFailures(fields []string) {
	if m == nil {
		return
	}
	for _, f := range fields {
		m.ChecksumFailures.WithLabelValues(f).Inc()
	}
}

// AddCorrections records corrected characters.
func (m *Metrics) AddCorrections(n int) {
	if m != nil && n > 0 {
		m.Corrections.Add(float64(n))
	}
}

// ObserveOCRLatency records the duration of one recognition call.
func (m *Metrics) ObserveOCRLatency(source string, d time.Duration) {
	if m != nil {
		m.OCRLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementJob records a finished extraction job.
func (m *Metrics) IncrementJob(status string) {
	if m != nil {
		m.Jobs.WithLabelValues(status).Inc()
	}
}

// ObserveBatchSize records the size of a batch request.
func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}
