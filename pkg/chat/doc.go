// Package chat runs one conversational turn per inbound request.
//
// A turn validates the request, finds or creates the user's session,
// emits the opening greeting or runs jurisdiction detection, assembles the
// prompt, calls the completion provider, and records the reply.
//
// Per-session state is mutated under the session lock. The lock is released
// while the provider call is in flight, so two concurrent requests for the
// same user may interleave their turns in history. No ordering is promised
// across concurrent same-user requests.
package chat
