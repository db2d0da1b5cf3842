package detect

import (
	"regexp"
	"strings"
)

// TextClassifier maps message text to optional conversation metadata.
// Implementations must be pure and safe for concurrent use.
type TextClassifier interface {
	// Jurisdiction returns the first jurisdiction label mentioned in text.
	Jurisdiction(text string) (string, bool)

	// Transliterated reports whether text looks like a non-Latin-script
	// language spelled phonetically with Latin letters.
	Transliterated(text string) bool
}

// DefaultJurisdictions is the ordered keyword list used by the default classifier.
// Names that contain a shorter entry as a whole word come first.
var DefaultJurisdictions = []string{
	"United States",
	"USA",
	"U.S.",
	"United Kingdom",
	"UK",
	"England",
	"Scotland",
	"Northern Ireland",
	"New South Wales",
	"Wales",
	"West Virginia",
	"Virginia",
	"New Mexico",
	"New York",
	"New Jersey",
	"North Carolina",
	"California",
	"Texas",
	"Florida",
	"Illinois",
	"Washington",
	"Massachusetts",
	"Pennsylvania",
	"Ohio",
	"Michigan",
	"Georgia",
	"Arizona",
	"Colorado",
	"Oregon",
	"Nevada",
	"Indiana",
	"Canada",
	"Australia",
	"New Zealand",
	"Germany",
	"France",
	"Spain",
	"Italy",
	"Netherlands",
	"Belgium",
	"Switzerland",
	"Austria",
	"Sweden",
	"Norway",
	"Denmark",
	"Finland",
	"Poland",
	"Portugal",
	"Ireland",
	"Greece",
	"Turkey",
	"Mexico",
	"Brazil",
	"Argentina",
	"Chile",
	"Colombia",
	"South Africa",
	"Nigeria",
	"Kenya",
	"Egypt",
	"Israel",
	"Saudi Arabia",
	"United Arab Emirates",
	"UAE",
	"Qatar",
	"Pakistan",
	"Bangladesh",
	"India",
	"Sri Lanka",
	"Nepal",
	"China",
	"Japan",
	"South Korea",
	"Korea",
	"Singapore",
	"Malaysia",
	"Indonesia",
	"Philippines",
	"Vietnam",
	"Thailand",
	"Russia",
	"Ukraine",
}

type keyword struct {
	label   string
	pattern *regexp.Regexp
}

// KeywordClassifier is the default TextClassifier backed by a keyword list
// and the transliteration heuristic in translit.go.
type KeywordClassifier struct {
	keywords []keyword
}

// NewKeywordClassifier creates a classifier over DefaultJurisdictions.
func NewKeywordClassifier() *KeywordClassifier {
	return NewKeywordClassifierWith(DefaultJurisdictions)
}

// NewKeywordClassifierWith creates a classifier over a custom ordered label list.
// Empty labels are ignored.
func NewKeywordClassifierWith(labels []string) *KeywordClassifier {
	c := &KeywordClassifier{keywords: make([]keyword, 0, len(labels))}
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		// Letters and digits on either side disqualify a match, so "US" never
		// fires inside "just" and "U.S." still matches at end of input.
		pattern := regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])` + regexp.QuoteMeta(label) + `(?:$|[^\p{L}\p{N}])`)
		c.keywords = append(c.keywords, keyword{label: label, pattern: pattern})
	}
	return c
}

// Jurisdiction returns the first label in list order that occurs in text.
func (c *KeywordClassifier) Jurisdiction(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	for _, kw := range c.keywords {
		if kw.pattern.MatchString(text) {
			return kw.label, true
		}
	}
	return "", false
}

// Transliterated reports whether text looks transliterated.
func (c *KeywordClassifier) Transliterated(text string) bool {
	return DetectTransliteration(text)
}

// Labels returns the ordered keyword labels.
func (c *KeywordClassifier) Labels() []string {
	labels := make([]string, len(c.keywords))
	for i, kw := range c.keywords {
		labels[i] = kw.label
	}
	return labels
}

// NewClassifier returns a classifier over labels, or over
// DefaultJurisdictions when labels is empty.
func NewClassifier(labels []string) *KeywordClassifier {
	if len(labels) == 0 {
		return NewKeywordClassifier()
	}
	return NewKeywordClassifierWith(labels)
}
