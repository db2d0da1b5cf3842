package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/trvlai/lawyerai/internal/observability"
	"github.com/trvlai/lawyerai/pkg/completion"
	"github.com/trvlai/lawyerai/pkg/session"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Call(ctx context.Context, request completion.Request) (*completion.Response, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*completion.Response)
	return resp, args.Error(1)
}

func (m *mockProvider) Provider() string {
	return "mock"
}

// lastRequest returns the request of the most recent Call.
func (m *mockProvider) lastRequest(t *testing.T) completion.Request {
	t.Helper()
	var last completion.Request
	found := false
	for _, c := range m.Calls {
		if c.Method == "Call" {
			last = c.Arguments.Get(1).(completion.Request)
			found = true
		}
	}
	require.True(t, found, "provider was not called")
	return last
}

func newTestOrchestrator(t *testing.T, p completion.Provider, mutate func(*Config)) (*Orchestrator, *session.Store) {
	t.Helper()
	store := session.NewStore(zerolog.Nop())
	cfg := Config{
		Store:    store,
		Provider: p,
		Model:    "gpt-4",
		Logger:   zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	o, err := NewOrchestrator(cfg)
	require.NoError(t, err)
	return o, store
}

func snapshotOf(t *testing.T, store *session.Store, userID string) session.Snapshot {
	t.Helper()
	s, ok := store.Get(userID)
	require.True(t, ok, "session %q not found", userID)
	s.Lock()
	defer s.Unlock()
	return s.Snapshot()
}

func TestNewOrchestrator_Validation(t *testing.T) {
	store := session.NewStore(zerolog.Nop())
	p := &mockProvider{}

	_, err := NewOrchestrator(Config{Provider: p, Model: "m"})
	assert.ErrorContains(t, err, "session store is required")

	_, err = NewOrchestrator(Config{Store: store, Model: "m"})
	assert.ErrorContains(t, err, "completion provider is required")

	_, err = NewOrchestrator(Config{Store: store, Provider: p})
	assert.ErrorContains(t, err, "model is required")

	_, err = NewOrchestrator(Config{Store: store, Provider: p, Model: "m", GreetingMode: "shout"})
	assert.ErrorContains(t, err, "unknown greeting mode")

	_, err = NewOrchestrator(Config{Store: store, Provider: p, Model: "m", DetectionMode: "always"})
	assert.ErrorContains(t, err, "unknown detection mode")

	o, err := NewOrchestrator(Config{Store: store, Provider: p, Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, o.timeout)
	assert.Equal(t, DefaultGreeting, o.greeting)
	assert.Equal(t, GreetingModeGreet, o.greetingMode)
	assert.Equal(t, DetectionModeOnce, o.detectionMode)
}

func TestHandle_FirstRequestGreets(t *testing.T) {
	p := &mockProvider{}
	o, store := newTestOrchestrator(t, p, nil)

	resp, err := o.Handle(context.Background(), Request{Message: "Hi", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultGreeting, resp.Reply)
	p.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)

	assert.Equal(t, 1, store.Len())
	snap := snapshotOf(t, store, "u1")
	assert.True(t, snap.AwaitingJurisdiction)
	assert.False(t, snap.HasJurisdiction())
	require.Len(t, snap.History, 2)
	assert.Equal(t, session.RoleUser, snap.History[0].Role)
	assert.Equal(t, "Hi", snap.History[0].Content)
	assert.Equal(t, session.RoleAssistant, snap.History[1].Role)
	assert.Equal(t, DefaultGreeting, snap.History[1].Content)
}

func TestHandle_CustomGreeting(t *testing.T) {
	o, _ := newTestOrchestrator(t, &mockProvider{}, func(c *Config) { c.Greeting = "Where are you based?" })

	resp, err := o.Handle(context.Background(), Request{Message: "Hi", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Where are you based?", resp.Reply)
}

func TestHandle_SecondRequestDetectsJurisdiction(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Happy to help with German law."}, nil)
	o, store := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	_, err := o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})
	require.NoError(t, err)

	resp, err := o.Handle(ctx, Request{Message: "I live in Germany", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Happy to help with German law.", resp.Reply)

	snap := snapshotOf(t, store, "u1")
	assert.Equal(t, "Germany", snap.Jurisdiction)
	assert.False(t, snap.AwaitingJurisdiction)

	req := p.lastRequest(t)
	assert.Equal(t, "gpt-4", req.Model)
	require.NotEmpty(t, req.Messages)
	assert.Equal(t, completion.RoleSystem, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "located in Germany")

	// greeting exchange, detection message
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "I live in Germany", req.Messages[3].Content)

	require.Len(t, snap.History, 4)
	assert.Equal(t, "Happy to help with German law.", snap.History[3].Content)
}

func TestHandle_DetectionMissIsNeverRetried(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Sure."}, nil)
	o, store := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	for _, msg := range []string{"Hi", "Hello", "Actually I'm in France"} {
		_, err := o.Handle(ctx, Request{Message: msg, UserID: "u1"})
		require.NoError(t, err)
	}

	snap := snapshotOf(t, store, "u1")
	assert.False(t, snap.HasJurisdiction())
	assert.False(t, snap.AwaitingJurisdiction)
	assert.NotContains(t, p.lastRequest(t).Messages[0].Content, "France")
}

func TestHandle_JurisdictionNeverChanges(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Okay."}, nil)
	o, store := newTestOrchestrator(t, p, func(c *Config) { c.DetectionMode = DetectionModeUntilFound })
	ctx := context.Background()

	for _, msg := range []string{"Hi", "I'm in Texas", "Now I moved to California"} {
		_, err := o.Handle(ctx, Request{Message: msg, UserID: "u1"})
		require.NoError(t, err)
	}

	snap := snapshotOf(t, store, "u1")
	assert.Equal(t, "Texas", snap.Jurisdiction)
	assert.Contains(t, p.lastRequest(t).Messages[0].Content, "located in Texas")
}

func TestHandle_UntilFoundKeepsDetecting(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Okay."}, nil)
	o, store := newTestOrchestrator(t, p, func(c *Config) { c.DetectionMode = DetectionModeUntilFound })
	ctx := context.Background()

	_, _ = o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})
	_, _ = o.Handle(ctx, Request{Message: "Hello", UserID: "u1"})

	snap := snapshotOf(t, store, "u1")
	assert.True(t, snap.AwaitingJurisdiction)

	_, err := o.Handle(ctx, Request{Message: "I'm in Canada", UserID: "u1"})
	require.NoError(t, err)

	snap = snapshotOf(t, store, "u1")
	assert.Equal(t, "Canada", snap.Jurisdiction)
	assert.False(t, snap.AwaitingJurisdiction)
}

func TestHandle_AskMode(t *testing.T) {
	t.Run("appends follow-up when jurisdiction unknown", func(t *testing.T) {
		p := &mockProvider{}
		p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "A deposit must be returned."}, nil)
		o, store := newTestOrchestrator(t, p, func(c *Config) { c.GreetingMode = GreetingModeAsk })
		ctx := context.Background()

		resp, err := o.Handle(ctx, Request{Message: "Can my landlord keep my deposit?", UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "A deposit must be returned.\n\n"+DefaultFollowUp, resp.Reply)
		p.AssertNumberOfCalls(t, "Call", 1)

		snap := snapshotOf(t, store, "u1")
		assert.True(t, snap.AwaitingJurisdiction, "the answer to the follow-up is still checked")
		require.Len(t, snap.History, 2)
		assert.Equal(t, resp.Reply, snap.History[1].Content)

		resp, err = o.Handle(ctx, Request{Message: "New York", UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "A deposit must be returned.", resp.Reply)

		snap = snapshotOf(t, store, "u1")
		assert.Equal(t, "New York", snap.Jurisdiction)
		assert.False(t, snap.AwaitingJurisdiction)
	})

	t.Run("no follow-up when first message names jurisdiction", func(t *testing.T) {
		p := &mockProvider{}
		p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "In Florida, yes."}, nil)
		o, _ := newTestOrchestrator(t, p, func(c *Config) { c.GreetingMode = GreetingModeAsk })

		resp, err := o.Handle(context.Background(), Request{Message: "I'm in Florida, can I be evicted?", UserID: "u1"})
		require.NoError(t, err)
		assert.Equal(t, "In Florida, yes.", resp.Reply)
		assert.Contains(t, p.lastRequest(t).Messages[0].Content, "located in Florida")
	})
}

func TestHandle_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "missing user", req: Request{Message: "Hi"}},
		{name: "missing message", req: Request{UserID: "u1"}},
		{name: "blank user", req: Request{Message: "Hi", UserID: "   "}},
		{name: "blank message", req: Request{Message: "\n\t", UserID: "u1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{}
			o, store := newTestOrchestrator(t, p, nil)

			_, err := o.Handle(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0, store.Len())
			p.AssertNotCalled(t, "Call", mock.Anything, mock.Anything)
		})
	}
}

func TestHandle_ProviderFailureKeepsUserTurn(t *testing.T) {
	p := &mockProvider{}
	upstream := errors.New("503 service unavailable")
	p.On("Call", mock.Anything, mock.Anything).Return(nil, upstream)
	o, store := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	_, err := o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})
	require.NoError(t, err)

	_, err = o.Handle(ctx, Request{Message: "What is adverse possession?", UserID: "u1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.ErrorIs(t, err, upstream)

	snap := snapshotOf(t, store, "u1")
	require.Len(t, snap.History, 3)
	assert.Equal(t, session.RoleUser, snap.History[2].Role)
	assert.Equal(t, "What is adverse possession?", snap.History[2].Content)
	p.AssertNumberOfCalls(t, "Call", 1)
}

func TestHandle_ProviderTimeout(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded)
	o, _ := newTestOrchestrator(t, p, func(c *Config) { c.Timeout = 20 * time.Millisecond })
	ctx := context.Background()

	_, _ = o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})

	start := time.Now()
	_, err := o.Handle(ctx, Request{Message: "Hello?", UserID: "u1"})
	assert.ErrorIs(t, err, ErrProviderFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestHandle_EmptyReplyFallsBack(t *testing.T) {
	tests := []struct {
		name string
		resp *completion.Response
	}{
		{name: "empty content", resp: &completion.Response{}},
		{name: "whitespace content", resp: &completion.Response{Content: "  \n "}},
		{name: "nil response", resp: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{}
			p.On("Call", mock.Anything, mock.Anything).Return(tt.resp, nil)
			o, store := newTestOrchestrator(t, p, nil)
			ctx := context.Background()

			_, _ = o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})
			resp, err := o.Handle(ctx, Request{Message: "Question", UserID: "u1"})
			require.NoError(t, err)
			assert.Equal(t, FallbackReply, resp.Reply)

			snap := snapshotOf(t, store, "u1")
			require.Len(t, snap.History, 3, "fallback is not stored")
			assert.Equal(t, "Question", snap.History[2].Content)
		})
	}
}

func TestHandle_ReplyIsTrimmed(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "\n  Yes, you can.  \n"}, nil)
	o, _ := newTestOrchestrator(t, p, nil)

	_, _ = o.Handle(context.Background(), Request{Message: "Hi", UserID: "u1"})
	resp, err := o.Handle(context.Background(), Request{Message: "Can I?", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, "Yes, you can.", resp.Reply)
}

func TestHandle_HistoryRoundTrip(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Noted."}, nil)
	o, _ := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	messages := []string{"Hi", "I'm in Ohio", "My employer withheld pay", "It was two weeks ago"}
	for _, msg := range messages {
		_, err := o.Handle(ctx, Request{Message: msg, UserID: "u1"})
		require.NoError(t, err)
	}

	var userTurns []string
	for _, m := range p.lastRequest(t).Messages {
		if m.Role == completion.RoleUser {
			userTurns = append(userTurns, m.Content)
		}
	}
	assert.Equal(t, messages, userTurns)
}

func TestHandle_TransliterationClause(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "ok"}, nil)
	o, _ := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	_, _ = o.Handle(ctx, Request{Message: "Hi", UserID: "u1"})
	_, err := o.Handle(ctx, Request{Message: "mera naam kya hai", UserID: "u1"})
	require.NoError(t, err)

	assert.Contains(t, p.lastRequest(t).Messages[0].Content, "native script")
}

func TestHandle_UsersAreIsolated(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "ok"}, nil)
	o, store := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	_, _ = o.Handle(ctx, Request{Message: "Hi", UserID: "alice"})
	_, _ = o.Handle(ctx, Request{Message: "I'm in Spain", UserID: "alice"})

	resp, err := o.Handle(ctx, Request{Message: "Hi", UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, DefaultGreeting, resp.Reply)

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "Spain", snapshotOf(t, store, "alice").Jurisdiction)
	assert.False(t, snapshotOf(t, store, "bob").HasJurisdiction())
}

func TestHandle_ConcurrentFirstRequestsGreetOnce(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "ok"}, nil)
	o, store := newTestOrchestrator(t, p, nil)

	const n = 16
	var wg sync.WaitGroup
	replies := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := o.Handle(context.Background(), Request{Message: fmt.Sprintf("msg %d", i), UserID: "same"})
			assert.NoError(t, err)
			replies[i] = resp.Reply
		}(i)
	}
	wg.Wait()

	greetings := 0
	for _, r := range replies {
		if r == DefaultGreeting {
			greetings++
		}
	}
	assert.Equal(t, 1, greetings)
	assert.Equal(t, 1, store.Len())

	snap := snapshotOf(t, store, "same")
	assert.False(t, snap.AwaitingJurisdiction)

	users := 0
	for _, turn := range snap.History {
		if turn.Role == session.RoleUser {
			users++
			assert.True(t, strings.HasPrefix(turn.Content, "msg "))
		}
	}
	assert.Equal(t, n, users)
}

func TestHandle_ConcurrentUsers(t *testing.T) {
	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "ok"}, nil)
	o, store := newTestOrchestrator(t, p, nil)

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			_, err := o.Handle(context.Background(), Request{Message: "Hi", UserID: id})
			assert.NoError(t, err)
			_, err = o.Handle(context.Background(), Request{Message: "I'm in Italy", UserID: id})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, users, store.Len())
	for i := 0; i < users; i++ {
		assert.Equal(t, "Italy", snapshotOf(t, store, fmt.Sprintf("user-%d", i)).Jurisdiction)
	}
}

func TestParseModes(t *testing.T) {
	g, err := ParseGreetingMode(" ASK ")
	require.NoError(t, err)
	assert.Equal(t, GreetingModeAsk, g)

	d, err := ParseDetectionMode("")
	require.NoError(t, err)
	assert.Equal(t, DetectionModeOnce, d)

	d, err = ParseDetectionMode("until_found")
	require.NoError(t, err)
	assert.Equal(t, DetectionModeUntilFound, d)
}

func TestHandle_AuditTrail(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := observability.SetAuditLogger(observability.NewAuditLogger(buf))
	defer observability.SetAuditLogger(prev)

	p := &mockProvider{}
	p.On("Call", mock.Anything, mock.Anything).Return(&completion.Response{Content: "Under Kenyan law the notice period is one month."}, nil)
	o, _ := newTestOrchestrator(t, p, nil)
	ctx := context.Background()

	_, err := o.Handle(ctx, Request{Message: "hello there", UserID: "audited"})
	require.NoError(t, err)
	_, err = o.Handle(ctx, Request{Message: "my landlord in Kenya wants me out", UserID: "audited"})
	require.NoError(t, err)

	trail := buf.String()
	assert.Contains(t, trail, `"action":"turn:greeting"`)
	assert.Contains(t, trail, `"action":"jurisdiction:detected"`)
	assert.Contains(t, trail, `"jurisdiction":"Kenya"`)
	assert.Contains(t, trail, `"action":"turn:reply"`)
	assert.Contains(t, trail, `"actor":"audited"`)
	assert.NotContains(t, trail, "landlord")
	assert.NotContains(t, trail, "notice period")
}
