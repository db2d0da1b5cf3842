// Package detect infers conversation metadata from free-text user messages.
//
// Invariants:
// - Detection is a pure function of the message text: no I/O, no session state.
// - Jurisdiction matching is first-match in list order; the list label is returned verbatim.
// - Transliteration detection is a cheap local heuristic and is approximate by nature.
//
// Usage:
//
//	c := detect.NewKeywordClassifier()
//	if label, ok := c.Jurisdiction("I live in Germany"); ok {
//		_ = label // "Germany"
//	}
//	_ = c.Transliterated("kya haal hai")
package detect
