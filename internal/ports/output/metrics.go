package output

import "time"

// MetricsCollector defines the interface for recording pipeline metrics.
// Implementations must be safe for concurrent use.
type MetricsCollector interface {
	// RecordTileFetch counts one tile fetch outcome for a server.
	RecordTileFetch(server string, success bool)

	// ObserveFetchDuration records how long one tile fetch took,
	// including retries.
	ObserveFetchDuration(server string, d time.Duration)

	// ObserveBuildDuration records the time spent assembling a mosaic.
	ObserveBuildDuration(d time.Duration)

	// RecordJob counts a finished job by terminal status.
	RecordJob(status string)

	// SetActiveJobs sets the number of jobs currently running.
	SetActiveJobs(n int)

	// RecordHTTPRequest counts an API request by method, path and code.
	RecordHTTPRequest(method, path string, statusCode int, d time.Duration)
}

// NoOpMetrics is a metrics collector that does nothing. Used when
// metrics are disabled.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op metrics collector.
func NewNoOpMetrics() *NoOpMetrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) RecordTileFetch(string, bool)                        {}
func (n *NoOpMetrics) ObserveFetchDuration(string, time.Duration)          {}
func (n *NoOpMetrics) ObserveBuildDuration(time.Duration)                  {}
func (n *NoOpMetrics) RecordJob(string)                                    {}
func (n *NoOpMetrics) SetActiveJobs(int)                                   {}
func (n *NoOpMetrics) RecordHTTPRequest(string, string, int, time.Duration) {}
