// Package prompt builds the conversation submitted to the completion
// provider: a persona system instruction, optional jurisdiction and
// transliteration clauses, and the stored history.
package prompt

import (
	"fmt"
	"strings"

	"github.com/trvlai/lawyerai/pkg/completion"
	"github.com/trvlai/lawyerai/pkg/detect"
	"github.com/trvlai/lawyerai/pkg/session"
)

// BaseInstruction is the persona contract sent on every model turn.
const BaseInstruction = "You are a confident, experienced legal professional helping people understand their legal situation. " +
	"Speak like a real person: never say or imply that you are an AI, a bot, a language model, or anything other than a human professional. " +
	"Keep a concise, conversational tone. " +
	"When a question is ambiguous or you are missing facts, ask a short clarifying follow-up question instead of guessing. " +
	"Do not add disclaimers or suggestions to consult a lawyer unless the user asks for them. " +
	"Keep replies short and split them into brief paragraphs."

const jurisdictionClause = "The user is located in %s. Tailor substantive answers to the laws, regulations, and common legal practices of %s."

const transliterationClause = "The user's latest message is written in a non-English language using Latin letters. " +
	"Interpret it as that language and reply in the same language using its native script."

// Submission is the assembled provider input
type Submission struct {
	SystemText string
	// Messages holds the system message followed by the full history.
	Messages []completion.Message
	// Transliterated reports whether the transliteration clause was added.
	Transliterated bool
}

// Assembler turns session state into a Submission
type Assembler struct {
	classifier detect.TextClassifier
	base       string
}

// NewAssembler creates an assembler using classifier for transliteration checks.
// A nil classifier falls back to the keyword classifier.
func NewAssembler(classifier detect.TextClassifier) *Assembler {
	if classifier == nil {
		classifier = detect.NewKeywordClassifier()
	}
	return &Assembler{
		classifier: classifier,
		base:       BaseInstruction,
	}
}

// Assemble builds the submission for snap. incoming is the current user
// message; snap.History is expected to already end with it.
func (a *Assembler) Assemble(snap session.Snapshot, incoming string) Submission {
	var sb strings.Builder
	sb.WriteString(a.base)

	if snap.HasJurisdiction() {
		sb.WriteString("\n\n")
		fmt.Fprintf(&sb, jurisdictionClause, snap.Jurisdiction, snap.Jurisdiction)
	}

	translit := a.classifier.Transliterated(incoming)
	if translit {
		sb.WriteString("\n\n")
		sb.WriteString(transliterationClause)
	}

	system := sb.String()

	messages := make([]completion.Message, 0, len(snap.History)+1)
	messages = append(messages, completion.Message{Role: completion.RoleSystem, Content: system})
	for _, turn := range snap.History {
		messages = append(messages, completion.Message{Role: string(turn.Role), Content: turn.Content})
	}

	return Submission{
		SystemText:     system,
		Messages:       messages,
		Transliterated: translit,
	}
}
