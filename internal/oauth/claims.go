package oauth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// epicPatientKeys are non-standard token response fields Epic uses to surface
// the patient FHIR id directly, checked before falling back to the id_token.
var epicPatientKeys = []string{"__epic.dstu2.patient", "patient"}

// derivePatientID resolves the external patient FHIR id from a token response.
// The extras map holds non-standard top-level token fields; idToken is the raw
// OIDC id_token, if any. Returns "" when no id can be derived — absence is not
// an error, the caller simply leaves the session unlinked.
func derivePatientID(extras map[string]any, idToken string) string {
	for _, key := range epicPatientKeys {
		if v, ok := extras[key].(string); ok && v != "" {
			return v
		}
	}
	return patientIDFromIDToken(idToken)
}

// patientIDFromIDToken extracts the patient id from a fhirUser claim of the
// form ".../Patient/{id}". The token signature is deliberately not verified:
// the id_token arrives over the provider's TLS token endpoint and is used only
// as a hint for the linked patient. Malformed tokens yield "".
func patientIDFromIDToken(idToken string) string {
	if idToken == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return ""
	}
	fhirUser, _ := claims["fhirUser"].(string)
	const marker = "/Patient/"
	idx := strings.LastIndex(fhirUser, marker)
	if idx < 0 {
		return ""
	}
	return fhirUser[idx+len(marker):]
}
