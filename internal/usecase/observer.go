package usecase

import "time"

// PipelineObserver receives timings and outcomes from the chat and ingestion pipelines.
type PipelineObserver interface {
	ObserveStage(stage string, elapsed time.Duration, err error)
	ObserveChat(status string)
	ObserveIngestedChunks(n int)
}

// NopObserver discards all observations.
type NopObserver struct{}

func (NopObserver) ObserveStage(string, time.Duration, error) {}
func (NopObserver) ObserveChat(string)                         {}
func (NopObserver) ObserveIngestedChunks(int)                  {}

// Chat pipeline stage names, used for spans, metrics and log fields.
const (
	StageRewrite  = "rewrite"
	StageEmbed    = "embed"
	StageRetrieve = "retrieve"
	StageAssemble = "assemble"
	StageHistory  = "load_history"
	StageGenerate = "generate"
	StagePersist  = "persist_history"
)

// Chat outcome labels.
const (
	ChatStatusOK      = "ok"
	ChatStatusInvalid = "invalid"
	ChatStatusError   = "error"
)
