package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTransliteration(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"cluster run", "Mujhe bhaai se baat karni hai", true},
		{"two cluster words", "bhaai khoob", true},
		{"cluster word and lexicon word", "bhaai kaise", true},
		{"single cluster word is not enough", "bhaai", false},
		{"repeated lexicon word counts once", "hai hai hai", false},
		{"two lexicon words", "kya haal hai", true},
		{"romanized russian", "spasibo privet kak dela", true},
		{"single lexicon word is not enough", "Is it okay, bhai?", false},
		{"plain english", "I live in Germany", false},
		{"english question", "What are my rights as a tenant?", false},
		{"english with doubled vowels", "Hello there, I need help with my lease agreement", false},
		{"school", "My son was suspended from school", false},
		{"choose", "Which option should I choose?", false},
		{"sheet", "I signed a sheet at work", false},
		{"wheel", "Who pays for a broken wheel?", false},
		{"several english cluster words", "Which school should I choose for my kids with cheerful teachers?", false},
		{"native script", "Привет, как дела", false},
		{"no vowels", "brr hmm", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectTransliteration(tt.text))
		})
	}
}

func TestDetectTransliteration_Deterministic(t *testing.T) {
	for _, text := range []string{"kya haal hai", "I live in Germany"} {
		first := DetectTransliteration(text)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, DetectTransliteration(text))
		}
	}
}
