package metrics

import (
	"sync"
	"time"
)

// MetricsCollector provides a centralized way to collect and retrieve metrics
type MetricsCollector struct {
	mutex               sync.RWMutex
	counters            map[string]int64
	gauges              map[string]float64
	requestLatencies    map[string][]time.Duration
	syncLatencies       map[string][]time.Duration
	databaseLatencies   map[string][]time.Duration
	errorCounts         map[string]int64
	startTime           time.Time
	maxHistogramSamples int
}

// Counter metrics
const (
	CounterHTTPRequests        = "http_requests_total"
	CounterHTTPRequestsSuccess = "http_requests_success_total"
	CounterHTTPRequestsError   = "http_requests_error_total"
	CounterDeliveriesLoaded    = "deliveries_loaded_total"
	CounterDeliveriesCreated   = "deliveries_created_total"
	CounterDeliveriesUpdated   = "deliveries_updated_total"
	CounterDeliveriesDeleted   = "deliveries_deleted_total"
	CounterDeliveriesImported  = "deliveries_imported_total"
	CounterCacheFallbacks      = "cache_fallbacks_total"
	CounterOpsQueued           = "operations_queued_total"
	CounterOpsReplayed         = "operations_replayed_total"
	CounterOpsDropped          = "operations_dropped_total"
	CounterDBQueriesTotal      = "db_queries_total"
	CounterDBQueriesError      = "db_queries_error_total"
	CounterErrorsTotal         = "errors_total"
)

// Gauge metrics
const (
	GaugeActiveDeliveries  = "active_deliveries"
	GaugeHistoryDeliveries = "history_deliveries"
	GaugePendingOperations = "pending_operations"
)

// Sync operation types for latency metrics
const (
	SyncTypeLoad   = "load"
	SyncTypeCreate = "create"
	SyncTypeUpdate = "update"
	SyncTypeDelete = "delete"
	SyncTypeImport = "import"
	SyncTypeReplay = "replay"
)

// DB query types for database metrics
const (
	DBQueryTypeSelect = "select"
	DBQueryTypeInsert = "insert"
	DBQueryTypeUpdate = "update"
	DBQueryTypeDelete = "delete"
)

// Message bus operation types
const (
	MessageBusOperationSend     = "send"
	MessageBusOperationReceive  = "receive"
	MessageBusOperationComplete = "complete"
	MessageBusOperationReject   = "reject"
)

// Message bus counters and gauges
const (
	CounterMessageBusOps      = "messagebus_operations_total"
	CounterMessageBusOpsError = "messagebus_operations_error_total"
	GaugePendingMessages      = "pending_messages"
)

// Error types for error metrics
const (
	ErrorTypeDatabase   = "database"
	ErrorTypeCache      = "cache"
	ErrorTypeValidation = "validation"
	ErrorTypeConflict   = "conflict"
	ErrorTypeInternal   = "internal"
)

var (
	collector     *MetricsCollector
	collectorOnce sync.Once
)

// GetMetricsCollector returns the singleton metrics collector
func GetMetricsCollector() *MetricsCollector {
	collectorOnce.Do(func() {
		collector = &MetricsCollector{
			counters:            make(map[string]int64),
			gauges:              make(map[string]float64),
			requestLatencies:    make(map[string][]time.Duration),
			syncLatencies:       make(map[string][]time.Duration),
			databaseLatencies:   make(map[string][]time.Duration),
			errorCounts:         make(map[string]int64),
			startTime:           time.Now(),
			maxHistogramSamples: 1000,
		}
	})
	return collector
}

// IncrementCounter increments a counter by 1
func (m *MetricsCollector) IncrementCounter(name string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[name]++
}

// SetGauge sets a gauge to a value
func (m *MetricsCollector) SetGauge(name string, value float64) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[name] = value
}

// RecordHTTPRequest records an HTTP request with its latency
func (m *MetricsCollector) RecordHTTPRequest(path string, success bool, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterHTTPRequests]++
	if success {
		m.counters[CounterHTTPRequestsSuccess]++
	} else {
		m.counters[CounterHTTPRequestsError]++
	}
	m.appendSample(m.requestLatencies, path, duration)
}

// RecordSyncOperation records a sync operation with its latency
func (m *MetricsCollector) RecordSyncOperation(opType string, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.appendSample(m.syncLatencies, opType, duration)
}

// RecordDatabaseQuery records a database query with its latency
func (m *MetricsCollector) RecordDatabaseQuery(queryType string, success bool, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterDBQueriesTotal]++
	if !success {
		m.counters[CounterDBQueriesError]++
	}
	m.appendSample(m.databaseLatencies, queryType, duration)
}

// RecordError records an error by type
func (m *MetricsCollector) RecordError(errorType string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.counters[CounterErrorsTotal]++
	m.errorCounts[errorType]++
}

// SetBucketSizes updates the active/history gauges
func (m *MetricsCollector) SetBucketSizes(active, history int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[GaugeActiveDeliveries] = float64(active)
	m.gauges[GaugeHistoryDeliveries] = float64(history)
}

// SetPendingOperations updates the retry-queue depth gauge
func (m *MetricsCollector) SetPendingOperations(count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[GaugePendingOperations] = float64(count)
}

// RecordMessageBusOperation records a message bus operation with its latency
func (m *MetricsCollector) RecordMessageBusOperation(operation string, success bool, duration time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.counters[CounterMessageBusOps]++
	if !success {
		m.counters[CounterMessageBusOpsError]++
	}
	m.appendSample(m.syncLatencies, "messagebus_"+operation, duration)
}

// SetPendingMessages updates the in-flight message gauge
func (m *MetricsCollector) SetPendingMessages(count int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.gauges[GaugePendingMessages] = float64(count)
}

// appendSample appends a latency sample, capping the series length. Callers
// must hold the mutex.
func (m *MetricsCollector) appendSample(series map[string][]time.Duration, key string, d time.Duration) {
	samples := append(series[key], d)
	if len(samples) > m.maxHistogramSamples {
		samples = samples[len(samples)-m.maxHistogramSamples:]
	}
	series[key] = samples
}

// Snapshot is a point-in-time view of all metrics
type Snapshot struct {
	UptimeSeconds float64                `json:"uptime_seconds"`
	Counters      map[string]int64       `json:"counters"`
	Gauges        map[string]float64     `json:"gauges"`
	Errors        map[string]int64       `json:"errors"`
	LatenciesMS   map[string]LatencyInfo `json:"latencies_ms"`
}

// LatencyInfo summarizes a latency series
type LatencyInfo struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg"`
	Max   float64 `json:"max"`
}

// GetSnapshot returns a copy of the current metrics
func (m *MetricsCollector) GetSnapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Counters:      make(map[string]int64, len(m.counters)),
		Gauges:        make(map[string]float64, len(m.gauges)),
		Errors:        make(map[string]int64, len(m.errorCounts)),
		LatenciesMS:   make(map[string]LatencyInfo),
	}

	for name, value := range m.counters {
		snap.Counters[name] = value
	}
	for name, value := range m.gauges {
		snap.Gauges[name] = value
	}
	for name, value := range m.errorCounts {
		snap.Errors[name] = value
	}

	for prefix, series := range map[string]map[string][]time.Duration{
		"http_": m.requestLatencies,
		"sync_": m.syncLatencies,
		"db_":   m.databaseLatencies,
	} {
		for key, samples := range series {
			snap.LatenciesMS[prefix+key] = summarize(samples)
		}
	}

	return snap
}

func summarize(samples []time.Duration) LatencyInfo {
	info := LatencyInfo{Count: len(samples)}
	if len(samples) == 0 {
		return info
	}

	var total, max time.Duration
	for _, s := range samples {
		total += s
		if s > max {
			max = s
		}
	}
	info.Avg = float64(total.Milliseconds()) / float64(len(samples))
	info.Max = float64(max.Milliseconds())
	return info
}
