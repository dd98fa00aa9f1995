package metrics

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const (
	MetricsNamespace = "picofuzz"

	ResultOK    = "ok"
	ResultError = "error"
)

var (
	Debug                bool = true
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	// Registry holds every picofuzz metric and is what the metrics server exposes.
	Registry = opmetrics.NewRegistry()
	factory  = promauto.With(Registry)

	errorsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	messagesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "messages_total",
		Help:      "Count of messages sent to the node under test",
	}, []string{
		"run_id",
		"result",
	})

	messageDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "message_duration_seconds",
		Help:      "Round trip time of measured messages",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 18),
	}, []string{
		"run_id",
	})

	runResult = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_result",
		Help:      "Result of a fuzzing run",
	}, []string{
		"peer",
		"run_id",
		"result",
	})

	runDuration = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of a fuzzing run",
	}, []string{
		"peer",
		"run_id",
	})

	targetExits = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "target_exits_total",
		Help:      "Count of managed target exits",
	}, []string{
		"clean",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordMessage counts one message and, when it was measured, its latency.
func RecordMessage(runID string, measured bool, took time.Duration, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	messagesTotal.WithLabelValues(runID, result).Inc()
	if measured && err == nil {
		messageDuration.WithLabelValues(runID).Observe(took.Seconds())
	}
}

func RecordRun(peer string, runID string, result string, duration time.Duration) {
	if Debug {
		log.Debug("metric set",
			"m", "run_result",
			"peer", peer,
			"run_id", runID,
			"result", result)
	}
	runResult.WithLabelValues(peer, runID, result).Set(1)
	runDuration.WithLabelValues(peer, runID).Set(duration.Seconds())
}

func RecordTargetExit(clean bool) {
	targetExits.WithLabelValues(fmt.Sprint(clean)).Inc()
}
