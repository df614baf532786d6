// Package filter provides the name-profanity predicate used when
// players pick a display name. The four filtering levels map onto
// progressively more aggressive go-away detector configurations.
package filter

import (
	goaway "github.com/TwiN/go-away"

	"github.com/jacobtread/Quizler/internal/types"
)

var (
	// lowDetector only catches blatant profanity: obfuscation
	// sanitizers are disabled so mild lookalikes pass
	lowDetector = goaway.NewProfanityDetector().
			WithSanitizeLeetSpeak(false).
			WithSanitizeSpecialCharacters(false).
			WithSanitizeAccents(false)

	// mediumDetector is the stock detector
	mediumDetector = goaway.NewProfanityDetector()

	// highDetector normalizes leet speak, special characters and
	// accents before matching so disguised names are caught
	highDetector = goaway.NewProfanityDetector().
			WithSanitizeLeetSpeak(true).
			WithSanitizeSpecialCharacters(true).
			WithSanitizeAccents(true)
)

// Inappropriate reports whether the provided name fails the filtering
// level. FilteringNone never rejects.
func Inappropriate(level types.NameFiltering, name string) bool {
	switch level {
	case types.FilteringLow:
		return lowDetector.IsProfane(name)
	case types.FilteringMedium:
		return mediumDetector.IsProfane(name)
	case types.FilteringHigh:
		return highDetector.IsProfane(name)
	default:
		return false
	}
}
