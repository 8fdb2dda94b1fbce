package callflow

import "strings"

// Intent is the caller's detected reason for calling.
type Intent string

const (
	IntentBenefitEligibility Intent = "benefit_eligibility"
	IntentDoctorSchedule     Intent = "doctor_schedule"
	IntentPasswordReset      Intent = "password_reset"
	IntentGeneral            Intent = "general"
)

// Classifier maps a caller utterance to an intent.
type Classifier interface {
	Classify(utterance string) Intent
}

// KeywordClassifier is the default classifier: first keyword family that
// matches wins, anything else is general.
type KeywordClassifier struct{}

func (KeywordClassifier) Classify(utterance string) Intent {
	txt := strings.ToLower(utterance)
	if containsAny(txt, "benefit", "eligible", "eligibility", "coverage") {
		return IntentBenefitEligibility
	}
	if containsAny(txt, "doctor", "appointment", "schedule", "book") {
		return IntentDoctorSchedule
	}
	if containsAny(txt, "password", "reset", "sign in", "login") {
		return IntentPasswordReset
	}
	return IntentGeneral
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
