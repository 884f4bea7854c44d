package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// namespace prefixes every metric exported by this package.
const namespace = "logwarden"

// Prometheus is a Collector backed by a dedicated Prometheus registry.
//
// Each instance owns its own registry, so tests can create collectors
// freely without duplicate registration panics.
type Prometheus struct {
	registry *prometheus.Registry

	logsReceived    *prometheus.CounterVec
	logsParsed      *prometheus.CounterVec
	logsFailed      *prometheus.CounterVec
	analysisResults *prometheus.CounterVec
	commandsPublished prometheus.Counter
	commandsBlocked   prometheus.Counter
	queueDepth        *prometheus.GaugeVec
}

// NewPrometheus creates a Prometheus collector with all pipeline metrics
// registered against a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		logsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_received_total",
			Help:      "Raw log messages received, by MQTT topic.",
		}, []string{"topic"}),
		logsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_parsed_total",
			Help:      "Log lines successfully parsed, by matching rule.",
		}, []string{"rule"}),
		logsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_failed_total",
			Help:      "Log lines dropped, by failure reason.",
		}, []string{"reason"}),
		analysisResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_results_total",
			Help:      "Action results produced, by analyzer.",
		}, []string{"analyzer"}),
		commandsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_published_total",
			Help:      "Commands published to device command topics.",
		}),
		commandsBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_blocked_total",
			Help:      "Command batches rejected by the allow-list gate.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Current depth of internal pipeline queues.",
		}, []string{"queue"}),
	}

	p.registry.MustRegister(
		p.logsReceived,
		p.logsParsed,
		p.logsFailed,
		p.analysisResults,
		p.commandsPublished,
		p.commandsBlocked,
		p.queueDepth,
	)

	return p
}

// Registry returns the registry holding this collector's metrics,
// for exposure via the monitoring server.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) LogReceived(topic string) {
	p.logsReceived.WithLabelValues(topic).Inc()
}

func (p *Prometheus) LogParsed(rule string) {
	p.logsParsed.WithLabelValues(rule).Inc()
}

func (p *Prometheus) LogFailed(reason string) {
	p.logsFailed.WithLabelValues(reason).Inc()
}

func (p *Prometheus) AnalysisResult(analyzer string) {
	p.analysisResults.WithLabelValues(analyzer).Inc()
}

func (p *Prometheus) CommandPublished() {
	p.commandsPublished.Inc()
}

func (p *Prometheus) CommandBlocked() {
	p.commandsBlocked.Inc()
}

func (p *Prometheus) QueueDepth(queue string, depth int) {
	p.queueDepth.WithLabelValues(queue).Set(float64(depth))
}
