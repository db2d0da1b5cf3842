package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trvlai/lawyerai/internal/observability"
	"github.com/trvlai/lawyerai/internal/tracing"
	"github.com/trvlai/lawyerai/pkg/completion"
	"github.com/trvlai/lawyerai/pkg/detect"
	"github.com/trvlai/lawyerai/pkg/prompt"
	"github.com/trvlai/lawyerai/pkg/session"
)

// DefaultTimeout bounds a single provider call
const DefaultTimeout = 60 * time.Second

// Config holds orchestrator dependencies and behavior
type Config struct {
	Store      *session.Store
	Provider   completion.Provider
	Classifier detect.TextClassifier
	Assembler  *prompt.Assembler
	Logger     zerolog.Logger

	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	GreetingMode  GreetingMode
	DetectionMode DetectionMode
	Greeting      string
	FollowUp      string
}

// Orchestrator runs chat turns
type Orchestrator struct {
	store      *session.Store
	provider   completion.Provider
	classifier detect.TextClassifier
	assembler  *prompt.Assembler
	logger     zerolog.Logger

	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration

	greetingMode  GreetingMode
	detectionMode DetectionMode
	greeting      string
	followUp      string
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	observability.EnsureRegistered()

	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("completion provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	greetingMode, err := ParseGreetingMode(string(cfg.GreetingMode))
	if err != nil {
		return nil, err
	}
	detectionMode, err := ParseDetectionMode(string(cfg.DetectionMode))
	if err != nil {
		return nil, err
	}

	classifier := cfg.Classifier
	if classifier == nil {
		classifier = detect.NewKeywordClassifier()
	}
	assembler := cfg.Assembler
	if assembler == nil {
		assembler = prompt.NewAssembler(classifier)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	greeting := cfg.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	followUp := cfg.FollowUp
	if followUp == "" {
		followUp = DefaultFollowUp
	}

	return &Orchestrator{
		store:         cfg.Store,
		provider:      cfg.Provider,
		classifier:    classifier,
		assembler:     assembler,
		logger:        cfg.Logger.With().Str("component", "chat").Logger(),
		model:         cfg.Model,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		timeout:       timeout,
		greetingMode:  greetingMode,
		detectionMode: detectionMode,
		greeting:      greeting,
		followUp:      followUp,
	}, nil
}

// Handle runs one turn for req
func (o *Orchestrator) Handle(ctx context.Context, req Request) (Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.UserID) == "" {
		observability.RecordTurn(observability.OutcomeInvalidInput)
		return Response{}, fmt.Errorf("%w: message and userId are required", ErrInvalidInput)
	}

	ctx = tracing.WithUserID(ctx, req.UserID)
	ctx, span := tracing.StartSpan(ctx, "lawyerai.chat", "chat.turn",
		attribute.String("user_id", req.UserID),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, o.logger)

	s, created := o.store.GetOrCreate(req.UserID)

	s.Lock()
	if o.greetingMode == GreetingModeGreet && !s.Greeted() {
		o.store.AppendUser(s, req.Message)
		o.store.AppendAssistant(s, o.greeting)
		o.store.MarkGreeted(s)
		s.Unlock()

		span.SetAttributes(attribute.String("chat.outcome", observability.OutcomeGreeting))
		observability.RecordTurn(observability.OutcomeGreeting)
		observability.RecordTurnAudit(ctx, req.UserID, observability.OutcomeGreeting, nil)
		logger.Info().Bool("new_session", created).Msg("Greeting sent")
		return Response{Reply: o.greeting}, nil
	}

	// In ask mode the first turn may end with the follow-up question.
	askFollowUp := o.greetingMode == GreetingModeAsk && !s.Greeted()
	if askFollowUp {
		o.store.MarkGreeted(s)
	}

	o.detect(ctx, s, req.Message, askFollowUp, logger)

	o.store.AppendUser(s, req.Message)
	sub := o.assembler.Assemble(s.Snapshot(), req.Message)
	s.Unlock()

	if sub.Transliterated {
		observability.RecordTransliteration()
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.provider.Call(callCtx, completion.Request{
		Model:       o.model,
		Messages:    sub.Messages,
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		tracing.FailSpan(span, err)
		observability.RecordTurn(observability.OutcomeProviderFailed)
		observability.RecordTurnAudit(ctx, req.UserID, observability.OutcomeProviderFailed, map[string]any{
			"provider": o.provider.Provider(),
		})
		logger.Error().
			Err(err).
			Str("provider", o.provider.Provider()).
			Str("model", o.model).
			Msg("Completion call failed")
		return Response{}, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	reply := ""
	if resp != nil {
		reply = strings.TrimSpace(resp.Content)
	}
	if reply == "" {
		span.SetAttributes(attribute.String("chat.outcome", observability.OutcomeFallback))
		observability.RecordTurn(observability.OutcomeFallback)
		observability.RecordTurnAudit(ctx, req.UserID, observability.OutcomeFallback, nil)
		logger.Warn().Str("provider", o.provider.Provider()).Msg("Empty completion, returning fallback")
		return Response{Reply: FallbackReply}, nil
	}

	s.Lock()
	if askFollowUp {
		if _, known := s.Jurisdiction(); !known {
			reply = reply + "\n\n" + o.followUp
		}
	}
	o.store.AppendAssistant(s, reply)
	s.Unlock()

	span.SetAttributes(attribute.String("chat.outcome", observability.OutcomeReply))
	observability.RecordTurn(observability.OutcomeReply)
	observability.RecordTurnAudit(ctx, req.UserID, observability.OutcomeReply, map[string]any{
		"reply_len":      len(reply),
		"transliterated": sub.Transliterated,
	})
	logger.Debug().Int("reply_len", len(reply)).Msg("Turn completed")

	return Response{Reply: reply}, nil
}

// detect runs jurisdiction detection while the window is open. Caller holds
// the session lock. When the follow-up question is about to be asked, a miss
// keeps the window open so the answer to the question is checked.
func (o *Orchestrator) detect(ctx context.Context, s *session.Session, message string, askFollowUp bool, logger zerolog.Logger) {
	if !s.AwaitingJurisdiction() {
		return
	}

	label, found := o.classifier.Jurisdiction(message)
	observability.RecordJurisdictionDetection(found)

	if found {
		o.store.SetJurisdiction(s, label)
		observability.RecordJurisdictionAudit(ctx, s.UserID, label)
		logger.Info().Str("jurisdiction", label).Msg("Jurisdiction detected")
	} else {
		logger.Debug().Msg("No jurisdiction found in message")
	}

	if found || (o.detectionMode == DetectionModeOnce && !askFollowUp) {
		o.store.ResolveAwaiting(s)
	}
}
