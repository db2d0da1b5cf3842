package chat

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is returned when message or userId is missing or blank.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderFailure is returned when the completion call fails or times out.
	ErrProviderFailure = errors.New("completion provider failure")
)

// FallbackReply is returned when the provider answers with no text. It is
// not stored in history.
const FallbackReply = "No response generated."

// DefaultGreeting is the canned reply to a user's first message.
const DefaultGreeting = "Hi! I'm your legal assistant. Before we dive in, which country or state are you in? " +
	"That helps me tailor my answers to the laws that apply to you."

// DefaultFollowUp is appended to the first model reply in ask mode when the
// jurisdiction is still unknown.
const DefaultFollowUp = "By the way, which country or state are you in? The answer can depend a lot on local law."

// GreetingMode selects how a new conversation opens
type GreetingMode string

const (
	// GreetingModeGreet answers the first message with the canned greeting and
	// makes no provider call.
	GreetingModeGreet GreetingMode = "greet"
	// GreetingModeAsk answers the first message with a model reply and appends
	// the follow-up question when the jurisdiction is unknown.
	GreetingModeAsk GreetingMode = "ask"
)

// DetectionMode selects how often jurisdiction detection runs
type DetectionMode string

const (
	// DetectionModeOnce runs detection on a single message, hit or miss.
	DetectionModeOnce DetectionMode = "once"
	// DetectionModeUntilFound runs detection on every message until a match.
	DetectionModeUntilFound DetectionMode = "until_found"
)

// ParseGreetingMode validates s. Empty selects GreetingModeGreet.
func ParseGreetingMode(s string) (GreetingMode, error) {
	switch GreetingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GreetingModeGreet:
		return GreetingModeGreet, nil
	case GreetingModeAsk:
		return GreetingModeAsk, nil
	default:
		return "", fmt.Errorf("unknown greeting mode %q (want greet or ask)", s)
	}
}

// ParseDetectionMode validates s. Empty selects DetectionModeOnce.
func ParseDetectionMode(s string) (DetectionMode, error) {
	switch DetectionMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", DetectionModeOnce:
		return DetectionModeOnce, nil
	case DetectionModeUntilFound:
		return DetectionModeUntilFound, nil
	default:
		return "", fmt.Errorf("unknown detection mode %q (want once or until_found)", s)
	}
}

// Request is one inbound chat message
type Request struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// Response is the reply for one turn
type Response struct {
	Reply string `json:"reply"`
}
