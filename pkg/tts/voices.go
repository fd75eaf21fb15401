package tts

import (
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Provider names.
const (
	ProviderOpenAI  = "openai"
	ProviderDoubao  = "doubao"
	ProviderMinimax = "minimax"
)

var openaiVoices = []string{"alloy", "ash", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer"}

var minimaxVoices = []string{
	"male-qn-qingse", "male-qn-jingying", "male-qn-badao", "male-qn-daxuesheng",
	"female-shaonv", "female-yujie", "female-chengshu", "female-tianmei",
	"presenter_male", "presenter_female", "audiobook_male_1", "audiobook_female_1",
}

// IsDoubaoVoice matches Volcengine speaker ids such as
// "zh_female_wanqudashu_moon_bigtts".
func IsDoubaoVoice(voice string) bool {
	for _, marker := range []string{"bigtts", "_mars_", "_moon_", "volcano", "S_"} {
		if strings.Contains(voice, marker) {
			return true
		}
	}
	return false
}

// Catalog maps user supplied voice names onto known voices.
type Catalog struct {
	voices map[string][]string
}

func NewCatalog() *Catalog {
	return &Catalog{voices: map[string][]string{
		ProviderOpenAI:  openaiVoices,
		ProviderMinimax: minimaxVoices,
	}}
}

// ProviderFor returns the provider owning voice, or "" when unknown.
func (c *Catalog) ProviderFor(voice string) string {
	if voice == "" {
		return ""
	}
	if IsDoubaoVoice(voice) {
		return ProviderDoubao
	}
	for provider, voices := range c.voices {
		for _, v := range voices {
			if strings.EqualFold(v, voice) {
				return provider
			}
		}
	}
	return ""
}

// Resolve corrects a misspelled voice name to the closest voice of provider.
// Names further than maxDistance edits from every voice are returned as is.
func (c *Catalog) Resolve(provider, voice string, maxDistance int) string {
	voices := c.voices[provider]
	if voice == "" || len(voices) == 0 {
		return voice
	}
	best, bestDist := voice, maxDistance+1
	needle := []rune(strings.ToLower(voice))
	for _, v := range voices {
		d := levenshtein.DistanceForStrings(needle, []rune(strings.ToLower(v)), levenshtein.DefaultOptions)
		if d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}
