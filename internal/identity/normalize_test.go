package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDigits(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"literal digits", "555-123-4567", "5551234567"},
		{"spoken digits", "five five five one two three", "555123"},
		{"teens as pairs", "eleven ten nineteen eighty six", "11101986"},
		{"tens plus unit", "ninety eight", "98"},
		{"bare tens", "twenty", "20"},
		{"oh as zero", "oh one", "01"},
		{"mixed words and digits", "area code 555 then one two", "55512"},
		{"noise only", "um, hello?", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeDigits(tc.input))
		})
	}
}

func TestNormalizeDOB(t *testing.T) {
	assert.Equal(t, "11/10/1986", NormalizeDOB("eleven ten nineteen eighty six"))
	assert.Equal(t, "11/10/1986", NormalizeDOB("11101986"))
	assert.Equal(t, "11/10/1986", NormalizeDOB("11 slash 10 slash 1986"))
	// Not eight digits: pass through untouched for an exact match.
	assert.Equal(t, "March 5th", NormalizeDOB(" March 5th "))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5551234567", NormalizePhone("+1 (555) 123-4567"))
	assert.Equal(t, "5551234567", NormalizePhone("555-123-4567"))
	assert.Equal(t, "123", NormalizePhone("one two three"))
}

func TestNormalizeLast4(t *testing.T) {
	assert.Equal(t, "9876", NormalizeLast4("nine eight seven six"))
	assert.Equal(t, "9876", NormalizeLast4("it's 9876"))
	assert.Equal(t, "76", NormalizeLast4("76"))
}
