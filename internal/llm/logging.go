package llm

import (
	"context"
	"time"

	"github.com/abhisek/lessonpath/internal/logger"
)

// LoggingProvider is a decorator that logs every request through zap.
type LoggingProvider struct {
	inner    Provider
	provider string
	log      *logger.Logger
}

// WithLogging wraps p so that each call is logged with its purpose,
// latency, token usage and estimated cost.
func WithLogging(p Provider, providerName string, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingProvider{inner: p, provider: providerName, log: log.With("component", "llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)

	kv := []any{
		"provider", l.provider,
		"model", l.inner.ModelID(),
		"purpose", PurposeFrom(ctx),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		kv = append(kv,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
		)
		if c := LookupCost(resp.Model); c != nil {
			kv = append(kv, "cost_usd", c.Cost(resp.Usage.InputTokens, resp.Usage.OutputTokens))
		}
	}
	if err != nil {
		l.log.Warn("llm request failed", append(kv, "error", err.Error())...)
		return nil, err
	}
	l.log.Info("llm request", kv...)
	return resp, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
