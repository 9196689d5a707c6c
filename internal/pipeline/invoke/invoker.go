// internal/pipeline/invoke/invoker.go
package invoke

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"time"
	"unicode/utf8"

	"bedrock-router/internal/common/config"
	apperrors "bedrock-router/internal/common/errors"
	"bedrock-router/internal/common/logger"
	"bedrock-router/internal/common/metrics"
	"bedrock-router/internal/pipeline/route"
)

// Invoker executes streaming inference calls with a per-call timeout and
// bounded retries. The timeout covers the whole call including retries, so a
// slow backend cannot hold a pipeline slot indefinitely.
type Invoker struct {
	agent          AgentAPI
	timeout        time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         logger.Logger
}

func NewInvoker(agent AgentAPI, cfg config.PipelineConfig, log logger.Logger) *Invoker {
	return &Invoker{
		agent:          agent,
		timeout:        time.Duration(cfg.InvokeTimeout) * time.Millisecond,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: time.Duration(cfg.InitialBackoff) * time.Millisecond,
		maxBackoff:     time.Duration(cfg.MaxBackoff) * time.Millisecond,
		logger:         log.WithFields(map[string]interface{}{"component": "invoker"}),
	}
}

// Invoke dispatches a request and assembles the chunked response into a
// single string. Transient failures are retried with exponential backoff and
// jitter; validation-style backend rejections and decode failures are
// terminal on the first occurrence.
func (i *Invoker) Invoke(ctx context.Context, ref route.ResourceRef, sessionID, inputText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	backoff := i.initialBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		body, err := i.invokeOnce(ctx, ref, sessionID, inputText)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, context.DeadlineExceeded) {
			return "", apperrors.NewInvokeTimeout(err)
		}
		if errors.Is(err, context.Canceled) {
			return "", apperrors.NewInvokeCanceled(err)
		}
		if !apperrors.IsRetryable(err) || attempt >= i.maxRetries {
			return "", err
		}

		metrics.InvokeRetries.Inc()
		i.logger.Warn("retrying backend invocation", map[string]interface{}{
			"agent_id": ref.AgentID,
			"attempt":  attempt + 1,
			"backoff":  backoff.String(),
			"error":    err.Error(),
		})

		select {
		case <-time.After(jitter(backoff)):
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return "", apperrors.NewInvokeCanceled(lastErr)
			}
			return "", apperrors.NewInvokeTimeout(lastErr)
		}

		backoff *= 2
		if backoff > i.maxBackoff {
			backoff = i.maxBackoff
		}
	}
}

func (i *Invoker) invokeOnce(ctx context.Context, ref route.ResourceRef, sessionID, inputText string) (string, error) {
	stream, err := i.agent.InvokeAgent(ctx, ref, sessionID, inputText)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var buf bytes.Buffer
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		buf.Write(chunk)
	}

	// Validate the assembled buffer, not individual chunks: a rune split
	// across a chunk boundary is fine, a malformed final result is not.
	if !utf8.Valid(buf.Bytes()) {
		return "", apperrors.NewInvokeDecode()
	}

	return buf.String(), nil
}

// jitter spreads retries over [d/2, d) so concurrent failures do not
// resynchronize against a recovering backend.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
