package metrics

import "time"

// ResultLabel enumerates terminal pipeline states for counters.
type ResultLabel string

const (
	ResultCompleted ResultLabel = "completed"
	ResultSkipped   ResultLabel = "skipped"
	ResultFailed    ResultLabel = "failed"
	ResultCanceled  ResultLabel = "canceled"
)

// RunOutcomeLabel is the final status of a whole run.
type RunOutcomeLabel string

const (
	RunSuccess  RunOutcomeLabel = "success"
	RunFailed   RunOutcomeLabel = "failed"
	RunCanceled RunOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for runs, pipelines, phases and modules.
// Implementations must be safe for concurrent use: independent pipelines report
// from their own goroutines.
type Recorder interface {
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
	ObservePipelineDuration(pipeline string, d time.Duration)
	IncPipelineResult(pipeline string, result ResultLabel)
	ObservePhaseDuration(pipeline, phase string, d time.Duration)
	ObserveModuleDuration(module string, d time.Duration, success bool)
	AddDocuments(pipeline, phase string, n int)
	SetRunningPipelines(n int)
	IncModuleRetry(module string)
	IncModuleRetryExhausted(module string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRunDuration(time.Duration)                   {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)                      {}
func (NoopRecorder) ObservePipelineDuration(string, time.Duration)      {}
func (NoopRecorder) IncPipelineResult(string, ResultLabel)              {}
func (NoopRecorder) ObservePhaseDuration(string, string, time.Duration) {}
func (NoopRecorder) ObserveModuleDuration(string, time.Duration, bool)  {}
func (NoopRecorder) AddDocuments(string, string, int)                   {}
func (NoopRecorder) SetRunningPipelines(int)                            {}
func (NoopRecorder) IncModuleRetry(string)                              {}
func (NoopRecorder) IncModuleRetryExhausted(string)                     {}
