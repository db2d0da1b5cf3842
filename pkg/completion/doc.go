// Package completion adapts hosted chat-completion APIs (OpenAI, Anthropic,
// Gemini) to a single Provider interface: an ordered list of role/content
// messages and a model id go in, reply text comes out.
//
// Providers do not retry. Callers bound each call with a context deadline.
package completion
