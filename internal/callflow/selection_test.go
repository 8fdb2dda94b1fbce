package callflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectSlot(t *testing.T) {
	cases := []struct {
		utterance string
		available int
		wantIdx   int
		wantOK    bool
	}{
		{"one", 3, 0, true},
		{"two", 3, 1, true},
		{"option two please", 3, 1, true},
		{"3", 3, 2, true},
		{"the third one works", 3, 2, true},
		{"first", 1, 0, true},
		// Out of range for what was offered.
		{"three", 2, 0, false},
		// Whole-word matching: "none" must not hit "one".
		{"none", 3, 0, false},
		{"no thanks", 3, 0, false},
		{"", 3, 0, false},
		{"maybe later", 3, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.utterance, func(t *testing.T) {
			idx, ok := selectSlot(tc.utterance, tc.available)
			assert.Equal(t, tc.wantOK, ok)
			if tc.wantOK {
				assert.Equal(t, tc.wantIdx, idx)
			}
		})
	}
}

func TestKeywordClassifier(t *testing.T) {
	c := KeywordClassifier{}
	assert.Equal(t, IntentBenefitEligibility, c.Classify("am I eligible for coverage?"))
	assert.Equal(t, IntentDoctorSchedule, c.Classify("I need a doctor appointment"))
	assert.Equal(t, IntentPasswordReset, c.Classify("reset my password"))
	assert.Equal(t, IntentGeneral, c.Classify("just calling to chat"))
	assert.Equal(t, IntentGeneral, c.Classify(""))
}
