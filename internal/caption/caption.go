// Package caption assigns display windows to the words of a narration.
//
// Timing is a proportional heuristic: each word gets a share of the audio
// duration proportional to its character count. It is not forced alignment
// against the audio and drifts for words that are spoken faster or slower
// than their length suggests.
package caption

import (
	"fmt"
	"math"
	"reels-generator/internal/types"
	"strings"
	"unicode/utf8"
)

// Tolerance is the allowed floating point drift at the end of a caption run.
const Tolerance = 1e-3

// ComputeCaptionTimings splits scriptText on whitespace and returns one
// contiguous token per word covering [0, totalDuration].
func ComputeCaptionTimings(scriptText string, totalDuration float64) []types.CaptionToken {
	words := strings.Fields(scriptText)
	if len(words) == 0 || totalDuration <= 0 || math.IsNaN(totalDuration) || math.IsInf(totalDuration, 0) {
		return []types.CaptionToken{}
	}

	totalChars := 0
	for _, w := range words {
		totalChars += utf8.RuneCountInString(w)
	}
	if totalChars == 0 {
		return []types.CaptionToken{}
	}

	timePerChar := totalDuration / float64(totalChars)
	tokens := make([]types.CaptionToken, 0, len(words))
	chars := 0
	start := 0.0
	for i, w := range words {
		chars += utf8.RuneCountInString(w)
		end := float64(chars) * timePerChar
		if i == len(words)-1 {
			end = totalDuration
		}
		tokens = append(tokens, types.CaptionToken{Text: w, Start: start, End: end})
		start = end
	}
	return tokens
}

// Validate checks that tokens are ordered, contiguous, non-empty windows that
// end within Tolerance of totalDuration.
func Validate(tokens []types.CaptionToken, totalDuration float64) error {
	if len(tokens) == 0 {
		return nil
	}
	if tokens[0].Start != 0 {
		return fmt.Errorf("first token starts at %.4f, want 0", tokens[0].Start)
	}
	for i, tok := range tokens {
		if tok.End <= tok.Start {
			return fmt.Errorf("token %d %q has empty window [%.4f, %.4f)", i, tok.Text, tok.Start, tok.End)
		}
		if i > 0 && tokens[i-1].End != tok.Start {
			return fmt.Errorf("gap between token %d and %d: %.6f != %.6f", i-1, i, tokens[i-1].End, tok.Start)
		}
	}
	last := tokens[len(tokens)-1].End
	if last > totalDuration+Tolerance {
		return fmt.Errorf("last token ends at %.4f past duration %.4f", last, totalDuration)
	}
	return nil
}
