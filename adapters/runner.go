package adapters

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// missingRequiredFieldsDelay is applied when a source's required fields
// haven't been supplied yet — the adapter is skipped rather than invoked.
const missingRequiredFieldsDelay = 24 * time.Hour

// Run is the generic per-source invocation the Scheduler drives: it decodes
// the stored task state, guards against missing required fields, calls the
// adapter's Step, and on any error re-emits a Step that keeps the same
// stage and applies the fixed backoff ladder. This mirrors the reference
// coordinator's shared step-wrapping logic, implemented once here instead
// of duplicated per adapter.
func Run(ctx context.Context, a Adapter, client *http.Client, values map[string]string, taskJSON []byte) (*Step, error) {
	for field := range a.Fields() {
		if values[field] == "" {
			return &Step{Delay: missingRequiredFieldsDelay, Stage: nil}, nil
		}
	}

	stage, errorCount, err := DecodeTaskState(taskJSON, a.InitialStage(), a.NewStage)
	if err != nil {
		return nil, fmt.Errorf("adapters: decode task state: %w", err)
	}

	step, stepErr := a.Step(ctx, client, values, stage)
	if stepErr != nil {
		if errorCount >= len(ERRORDelays) {
			errorCount = len(ERRORDelays) - 1
		}
		delay := ERRORDelays[errorCount]
		return &Step{
			Delay: delay,
			Stage: stage, // unmutated: Step's purity contract guarantees this is safe to retry
			Error: errorCount + 1,
		}, nil
	}

	step.fixAuthors()
	return step, nil
}
