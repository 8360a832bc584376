package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "docflow"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	runDuration      prom.Histogram
	runOutcome       *prom.CounterVec
	pipelineDuration *prom.HistogramVec
	pipelineResults  *prom.CounterVec
	phaseDuration    *prom.HistogramVec
	moduleDuration   *prom.HistogramVec
	documents        *prom.CounterVec
	running          prom.Gauge
	retries          *prom.CounterVec
	retriesExhausted *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them with reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total duration of a pipeline run",
			Buckets:   prom.DefBuckets,
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Run outcomes by final status",
		}, []string{"outcome"}),
		pipelineDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of individual pipelines",
			Buckets:   prom.DefBuckets,
		}, []string{"pipeline"}),
		pipelineResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_results_total",
			Help:      "Pipeline terminal states",
		}, []string{"pipeline", "result"}),
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of pipeline phases",
			Buckets:   prom.DefBuckets,
		}, []string{"pipeline", "phase"}),
		moduleDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "module_duration_seconds",
			Help:      "Duration of individual module executions",
			Buckets:   prom.DefBuckets,
		}, []string{"module", "result"}),
		documents: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "phase_documents_total",
			Help:      "Documents produced per pipeline phase",
		}, []string{"pipeline", "phase"}),
		running: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "running_pipelines",
			Help:      "Pipelines currently executing",
		}),
		retries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_retries_total",
			Help:      "Module retries after transient failures",
		}, []string{"module"}),
		retriesExhausted: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_retry_exhausted_total",
			Help:      "Modules whose retries were exhausted",
		}, []string{"module"}),
	}
	reg.MustRegister(pr.runDuration, pr.runOutcome, pr.pipelineDuration, pr.pipelineResults,
		pr.phaseDuration, pr.moduleDuration, pr.documents, pr.running, pr.retries, pr.retriesExhausted)
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	if p == nil {
		return
	}
	p.runOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObservePipelineDuration(pipeline string, d time.Duration) {
	if p == nil {
		return
	}
	p.pipelineDuration.WithLabelValues(pipeline).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncPipelineResult(pipeline string, result ResultLabel) {
	if p == nil {
		return
	}
	p.pipelineResults.WithLabelValues(pipeline, string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePhaseDuration(pipeline, phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(pipeline, phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveModuleDuration(module string, d time.Duration, success bool) {
	if p == nil {
		return
	}
	res := "failed"
	if success {
		res = "success"
	}
	p.moduleDuration.WithLabelValues(module, res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddDocuments(pipeline, phase string, n int) {
	if p == nil {
		return
	}
	p.documents.WithLabelValues(pipeline, phase).Add(float64(n))
}

func (p *PrometheusRecorder) SetRunningPipelines(n int) {
	if p == nil {
		return
	}
	p.running.Set(float64(n))
}

func (p *PrometheusRecorder) IncModuleRetry(module string) {
	if p == nil {
		return
	}
	p.retries.WithLabelValues(module).Inc()
}

func (p *PrometheusRecorder) IncModuleRetryExhausted(module string) {
	if p == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(module).Inc()
}
