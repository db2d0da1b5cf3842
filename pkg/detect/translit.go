package detect

import (
	"regexp"
	"strings"
	"unicode"
)

// clusterRun matches two adjacent phonetic clusters (consonant+h digraphs or
// doubled vowels), e.g. "bhaa" or "khoo". English text rarely produces these
// back to back, romanized Hindi, Urdu and Arabic often do.
var clusterRun = regexp.MustCompile(`(?i)(?:[bcdfghjklmnpqrstvwxyz]h|aa|ee|ii|oo|uu){2}`)

// lexicon holds common romanized words
var lexicon = map[string]struct{}{
	// Hindi / Urdu
	"hai": {}, "hain": {}, "kya": {}, "nahi": {}, "nahin": {}, "aap": {},
	"mera": {}, "meri": {}, "mujhe": {}, "kaise": {}, "kaisa": {}, "kyun": {},
	"acha": {}, "accha": {}, "theek": {}, "haan": {}, "bhai": {}, "yaar": {},
	"shukriya": {}, "kripya": {}, "kaun": {}, "kab": {},
	// Arabic
	"habibi": {}, "shukran": {}, "inshallah": {}, "wallah": {}, "kaifa": {},
	"enta": {}, "anta": {}, "marhaba": {}, "ahlan": {}, "keefak": {}, "salam": {},
	// Russian
	"privet": {}, "spasibo": {}, "pozhaluista": {}, "kak": {}, "dela": {},
}

// englishClusterStems are everyday English words that contain a cluster run.
// Tokens starting with one of them never count as a cluster signal.
var englishClusterStems = []string{
	"school", "choos", "chees", "cheek", "cheer", "sheet", "sheep", "sheer",
	"wheel", "wheez", "shoot", "shook", "whoo", "ghoul", "cheetah",
}

// minSignals is the number of distinct tokens that must look romanized
const minSignals = 2

// DetectTransliteration is an approximate heuristic. It is true when text is
// Latin-only, has at least one vowel, and at least two distinct tokens look
// romanized: a token counts when it is a lexicon word or contains a
// four-character cluster run and is not a common English word. Expect misses
// on short romanized messages.
func DetectTransliteration(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	lower := strings.ToLower(text)
	if !strings.ContainsAny(lower, "aeiou") {
		return false
	}
	for _, r := range text {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}

	seen := make(map[string]struct{})
	for _, token := range strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if _, dup := seen[token]; dup || !romanized(token) {
			continue
		}
		seen[token] = struct{}{}
		if len(seen) >= minSignals {
			return true
		}
	}
	return false
}

func romanized(token string) bool {
	if _, ok := lexicon[token]; ok {
		return true
	}
	if !clusterRun.MatchString(token) {
		return false
	}
	for _, stem := range englishClusterStems {
		if strings.HasPrefix(token, stem) {
			return false
		}
	}
	return true
}
