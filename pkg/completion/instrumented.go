package completion

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/trvlai/lawyerai/internal/observability"
	"github.com/trvlai/lawyerai/internal/tracing"
)

// Instrumented wraps a Provider with a tracing span and completion metrics
type Instrumented struct {
	next Provider
}

// Instrument returns p wrapped with span and metric recording
func Instrument(p Provider) *Instrumented {
	return &Instrumented{next: p}
}

// Provider returns the wrapped provider's name
func (i *Instrumented) Provider() string {
	return i.next.Provider()
}

// Call forwards to the wrapped provider
func (i *Instrumented) Call(ctx context.Context, request Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "lawyerai.completion", "completion.call",
		attribute.String("completion.provider", i.next.Provider()),
		attribute.String("completion.model", request.Model),
		attribute.Int("completion.messages", len(request.Messages)),
	)
	defer span.End()

	start := time.Now()
	resp, err := i.next.Call(ctx, request)
	observability.RecordCompletion(i.next.Provider(), time.Since(start), err == nil)
	if err != nil {
		tracing.FailSpan(span, err)
		return nil, err
	}

	if resp != nil && resp.Usage != nil {
		span.SetAttributes(
			attribute.Int("completion.input_tokens", resp.Usage.InputTokens),
			attribute.Int("completion.output_tokens", resp.Usage.OutputTokens),
		)
	}
	return resp, nil
}
