package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// PipelineState stores per-invocation state for the inference graph.
// Concurrency model:
//   - This struct is registered as Graph Local State via compose.WithGenLocalState.
//   - All reads/writes happen only inside state handlers
//     (WithStatePreHandler, WithStatePostHandler) or compose.ProcessState.
//   - Eino serializes access to state within these handlers, so no additional
//     mutex is required as long as it is never touched outside handlers.
type PipelineState struct {
	Request      InferenceRequest
	SystemPrompt string            // effective prompt after override resolution
	CacheKey     string            // derived once during the probe
	Retrieved    []RankedResult    // catalog grounding for this turn
	Prompt       []*schema.Message // messages actually sent to the model
	StartedAt    time.Time
	TokensUsed   int
	CircuitOpen  bool // the generation call was short-circuited
}
