package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/Bill1907/prepup/internal/llm"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

const llmRetryBaseDelay = 300 * time.Millisecond

// retryingLLM gives AnalyzeResume one more attempt after a transient failure.
type retryingLLM struct {
	llm.Client
	delay      time.Duration
	requestID  string
	analysisID string
}

func newRetryingLLM(base llm.Client, delay time.Duration, analysisID, requestID string) llm.Client {
	if base == nil {
		return nil
	}
	if delay <= 0 {
		delay = llmRetryBaseDelay
	}
	return retryingLLM{Client: base, delay: delay, requestID: requestID, analysisID: analysisID}
}

func (r retryingLLM) AnalyzeResume(ctx context.Context, input llm.AnalyzeInput) (json.RawMessage, error) {
	resp, err := r.Client.AnalyzeResume(ctx, input)
	if err == nil || !shouldRetryLLM(err) {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt":     1,
		"request_id":  r.requestID,
		"analysis_id": r.analysisID,
		"error":       sanitizeError(err),
	})
	timer := time.NewTimer(r.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Client.AnalyzeResume(ctx, input)
}

func shouldRetryLLM(err error) bool {
	if llm.IsTransient(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
