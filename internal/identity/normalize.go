package identity

import (
	"strings"
	"unicode"
)

// Spoken numbers arrive as words more often than digits. Values below 100 are
// enough for phone numbers, SSN fragments and date parts read digit-group by
// digit-group ("eleven ten nineteen eighty six").
var unitWords = map[string]int{
	"zero": 0, "oh": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
}

var teenWords = map[string]int{
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
}

var tensWords = map[string]int{
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
}

// NormalizeDigits reduces free-form spoken input to a digit string. Literal
// digits pass through, number words are converted group by group, and a tens
// word followed by a unit word is paired ("eighty six" becomes 86).
// Everything else is dropped.
func NormalizeDigits(input string) string {
	var out strings.Builder
	tokens := tokenize(input)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if isDigits(tok) {
			out.WriteString(tok)
			continue
		}
		if unit, ok := unitWords[tok]; ok {
			out.WriteByte(byte('0' + unit))
			continue
		}
		if teen, ok := teenWords[tok]; ok {
			out.WriteString(itoa2(teen))
			continue
		}
		if tens, ok := tensWords[tok]; ok {
			if i+1 < len(tokens) {
				if unit, ok := unitWords[tokens[i+1]]; ok && unit != 0 {
					tens += unit
					i++
				}
			}
			out.WriteString(itoa2(tens))
		}
	}
	return out.String()
}

// NormalizeDOB turns spoken or typed date-of-birth input into MM/DD/YYYY when
// exactly eight digits can be recovered, otherwise the trimmed input is
// returned as-is for an exact-match comparison.
func NormalizeDOB(input string) string {
	digits := NormalizeDigits(input)
	if len(digits) == 8 {
		return digits[0:2] + "/" + digits[2:4] + "/" + digits[4:8]
	}
	return strings.TrimSpace(input)
}

// NormalizePhone keeps the last ten recovered digits so "+1 (555) 123-4567"
// and "five five five one two three four five six seven" compare equal.
func NormalizePhone(input string) string {
	digits := NormalizeDigits(input)
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// NormalizeLast4 keeps the last four recovered digits.
func NormalizeLast4(input string) string {
	digits := NormalizeDigits(input)
	if len(digits) > 4 {
		return digits[len(digits)-4:]
	}
	return digits
}

func tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func itoa2(v int) string {
	return string([]byte{byte('0' + v/10), byte('0' + v%10)})
}
