package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Table labels used by the row counters.
const (
	TableSamples  = "samples"
	TableWeekend  = "weekend"
	TableMetadata = "metadata"
)

// Manager owns the Prometheus collectors of the pipeline and the explorer.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Ingestion
	rowsLoaded       *prometheus.CounterVec
	rowsDropped      *prometheus.CounterVec
	filesDiscovered  prometheus.Gauge
	gamesSkipped     prometheus.Counter
	missingRelease   prometheus.Counter
	loadDuration     prometheus.Histogram
	featureRowsBuilt *prometheus.CounterVec
	genreColumns     prometheus.Gauge

	// Model
	fitDuration   prometheus.Histogram
	fitsTotal     *prometheus.CounterVec
	modelR2       prometheus.Gauge
	modelFeatures prometheus.Gauge
	modelRows     prometheus.Gauge
	predictions   *prometheus.CounterVec

	// Explorer
	selections          *prometheus.CounterVec
	chartsRendered      *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge
	gcPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served by /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// collectors are registered on the default registerer.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "crowdcast",
		subsystem:        "pipeline",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.rowsLoaded = auto.NewCounterVec(
		m.counterOpts("rows_loaded_total", "Rows accepted from input tables"),
		[]string{"table"},
	)
	m.rowsDropped = auto.NewCounterVec(
		m.counterOpts("rows_dropped_total", "Rows dropped because a field could not be parsed"),
		[]string{"table"},
	)
	m.filesDiscovered = auto.NewGauge(m.gaugeOpts("files_discovered", "Sample files found in the data directory"))
	m.gamesSkipped = auto.NewCounter(m.counterOpts("games_skipped_total", "Games left out of a feature table for lack of metadata"))
	m.missingRelease = auto.NewCounter(m.counterOpts("missing_release_rows_total", "Feature rows whose game has no release date"))
	m.loadDuration = auto.NewHistogram(m.histogramOpts("load_duration_milliseconds", "Time spent loading one sample file"))
	m.featureRowsBuilt = auto.NewCounterVec(
		m.counterOpts("feature_rows_total", "Feature rows produced by grain"),
		[]string{"grain"},
	)
	m.genreColumns = auto.NewGauge(m.gaugeOpts("genre_columns", "One-hot genre columns in the last feature table"))

	m.fitDuration = auto.NewHistogram(m.histogramOpts("fit_duration_milliseconds", "Time spent fitting the regression"))
	m.fitsTotal = auto.NewCounterVec(
		m.counterOpts("fits_total", "Regression fits by outcome"),
		[]string{"result"},
	)
	m.modelR2 = auto.NewGauge(m.gaugeOpts("model_r2", "In-sample coefficient of determination of the last fit"))
	m.modelFeatures = auto.NewGauge(m.gaugeOpts("model_features", "Number of features of the last fit"))
	m.modelRows = auto.NewGauge(m.gaugeOpts("model_rows", "Training rows of the last fit"))
	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Point predictions by outcome"),
		[]string{"result"},
	)

	m.selections = auto.NewCounterVec(
		m.counterOpts("selections_total", "Explorer file selections by outcome"),
		[]string{"result"},
	)
	m.chartsRendered = auto.NewCounterVec(
		m.counterOpts("charts_rendered_total", "PNG charts rendered by kind"),
		[]string{"kind"},
	)
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Explorer HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "Explorer HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpErrors = auto.NewCounterVec(
		m.counterOpts("http_errors_total", "Explorer HTTP error responses by endpoint, method, type and severity"),
		[]string{"endpoint", "method", "error_type", "severity"},
	)

	m.memoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.goroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Number of goroutines"))
	m.gcPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"))
}

// RecordRowsLoaded adds n accepted rows for table.
func RecordRowsLoaded(table string, n int) {
	globalManager.rowsLoaded.WithLabelValues(table).Add(float64(n))
}

// RecordRowsDropped adds n dropped rows for table.
func RecordRowsDropped(table string, n int) {
	globalManager.rowsDropped.WithLabelValues(table).Add(float64(n))
}

// UpdateFilesDiscovered sets the discovered sample file count.
func UpdateFilesDiscovered(n int) {
	globalManager.filesDiscovered.Set(float64(n))
}

// RecordGameSkipped counts a game excluded for missing metadata.
func RecordGameSkipped() {
	globalManager.gamesSkipped.Inc()
}

// RecordMissingRelease adds n rows built without a release date.
func RecordMissingRelease(n int) {
	globalManager.missingRelease.Add(float64(n))
}

// RecordLoadDuration observes the time taken to load one file.
func RecordLoadDuration(ms float64) {
	globalManager.loadDuration.Observe(ms)
}

// RecordFeatureRows adds n rows built for grain.
func RecordFeatureRows(grain string, n int) {
	globalManager.featureRowsBuilt.WithLabelValues(grain).Add(float64(n))
}

// UpdateGenreColumns sets the number of one-hot genre columns.
func UpdateGenreColumns(n int) {
	globalManager.genreColumns.Set(float64(n))
}

// RecordFit records a fit outcome and, on success, the model gauges.
func RecordFit(durationMs float64, err error, r2 float64, features, rows int) {
	globalManager.fitDuration.Observe(durationMs)
	if err != nil {
		globalManager.fitsTotal.WithLabelValues("error").Inc()
		return
	}
	globalManager.fitsTotal.WithLabelValues("ok").Inc()
	globalManager.modelR2.Set(r2)
	globalManager.modelFeatures.Set(float64(features))
	globalManager.modelRows.Set(float64(rows))
}

// RecordPrediction counts a point prediction by outcome.
func RecordPrediction(err error) {
	if err != nil {
		globalManager.predictions.WithLabelValues("error").Inc()
		return
	}
	globalManager.predictions.WithLabelValues("ok").Inc()
}

// RecordSelection counts an explorer selection by outcome.
func RecordSelection(valid bool) {
	if valid {
		globalManager.selections.WithLabelValues("ok").Inc()
		return
	}
	globalManager.selections.WithLabelValues("invalid").Inc()
}

// RecordChartRendered counts a rendered chart of the given kind.
func RecordChartRendered(kind string) {
	globalManager.chartsRendered.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response.
func RecordHTTPError(endpoint, method, errorType, severity string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType, severity).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap size.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.memoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(n int) {
	globalManager.goroutineCount.Set(float64(n))
}

// RecordSystemGCPauseTime observes an average GC pause.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.gcPauseTime.Observe(ms)
}

// GetRegistry returns the registry holding the global collectors.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
