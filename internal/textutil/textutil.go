// Package textutil holds the text heuristics applied to OCR output and
// narration text: coherence filtering, display-duration estimation and
// sanitizing for speech services.
package textutil

import (
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Duration estimation constants.
const (
	// SecondsPerWord approximates reading speed.
	SecondsPerWord = 0.3
	// BufferSeconds is added to every textual estimate.
	BufferSeconds = 0.3
	// Increment is the granularity durations are rounded up to.
	Increment = 0.5
	// MinDuration is the floor for any segment.
	MinDuration = 1.0
)

// IsCoherent reports whether text looks like human-readable content rather
// than OCR noise. All of the following must hold:
//   - trimmed length >= 2
//   - at least half of the trimmed characters are letters or digits
//   - strings longer than 4 characters contain a vowel
func IsCoherent(text string) bool {
	trimmed := []rune(strings.TrimSpace(text))
	n := len(trimmed)
	if n < 2 {
		return false
	}

	alnum := 0
	vowel := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
		switch unicode.ToLower(r) {
		case 'a', 'e', 'i', 'o', 'u':
			vowel = true
		}
	}

	if float64(alnum)/float64(n) < 0.5 {
		return false
	}
	if n > 4 && !vowel {
		return false
	}
	return true
}

// EstimateDuration maps display text to seconds on screen. Empty or
// incoherent text gets MinDuration; otherwise words x 0.3s + 0.3s, rounded
// up to the next 0.5s and floored at 1.0s.
func EstimateDuration(text string) float64 {
	if !IsCoherent(text) {
		return MinDuration
	}
	words := len(strings.Fields(text))
	raw := float64(words)*SecondsPerWord + BufferSeconds
	// 4*0.3+0.3 is 1.5000000000000002 in float64; strip the noise so an
	// exact increment is not pushed up a step.
	raw = math.Round(raw*1e6) / 1e6
	d := math.Ceil(raw/Increment) * Increment
	return math.Max(MinDuration, d)
}

var (
	disallowed = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?'\-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Sanitize prepares text for a free speech endpoint: characters outside
// letters, digits and basic punctuation are removed and whitespace runs
// collapse to single spaces.
func Sanitize(text string) string {
	text = disallowed.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
