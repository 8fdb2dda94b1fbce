package callflow

import "strings"

// maxOfferedSlots bounds how many slots are read to the caller.
const maxOfferedSlots = 3

var ordinalWords = [maxOfferedSlots][]string{
	{"1", "one", "first"},
	{"2", "two", "second"},
	{"3", "three", "third"},
}

// selectSlot maps a caller utterance to a slot index among the first
// min(available, 3) offered slots. Matching is whole-word so "none" does not
// hit "one"; anything that doesn't clearly name an offered option is no
// selection, the flow never guesses.
func selectSlot(utterance string, available int) (int, bool) {
	tokens := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	if available > maxOfferedSlots {
		available = maxOfferedSlots
	}
	for _, tok := range tokens {
		for i := 0; i < available; i++ {
			for _, word := range ordinalWords[i] {
				if tok == word {
					return i, true
				}
			}
		}
	}
	return 0, false
}
