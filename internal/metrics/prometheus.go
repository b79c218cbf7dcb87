package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeserver_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeserver_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Exchange metrics
	ExchangeAPICalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_exchange_api_calls_total",
			Help: "Total number of exchange API calls",
		},
		[]string{"exchange", "endpoint", "status"}, // status: success|error
	)

	ExchangeAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeserver_exchange_api_latency_seconds",
			Help:    "Exchange API latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"exchange", "endpoint"},
	)

	// Position metrics
	PositionsOpened = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_positions_opened_total",
			Help: "Total number of positions opened",
		},
		[]string{"table", "side"},
	)

	PositionsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_positions_closed_total",
			Help: "Total number of positions closed",
		},
		[]string{"table", "side"},
	)

	ProfitSweepUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_profit_sweep_updates_total",
			Help: "Total number of positions whose profit extrema advanced",
		},
		[]string{"table"},
	)

	// HTTP metrics
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeserver_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeserver_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	prometheus.MustRegister(ExchangeAPICalls)
	prometheus.MustRegister(ExchangeAPILatency)

	prometheus.MustRegister(PositionsOpened)
	prometheus.MustRegister(PositionsClosed)
	prometheus.MustRegister(ProfitSweepUpdates)

	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordExchangeAPICall records an exchange API call
func RecordExchangeAPICall(exchange, endpoint string, latency time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ExchangeAPICalls.WithLabelValues(exchange, endpoint, status).Inc()
	ExchangeAPILatency.WithLabelValues(exchange, endpoint).Observe(latency.Seconds())
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(route, method string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(route, method, httpStatusClass(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

func httpStatusClass(status int) string {
	switch {
	case status < 300:
		return "2xx"
	case status < 400:
		return "3xx"
	case status < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
