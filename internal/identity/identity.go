package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrValidationFailed means no customer record matched the caller's answers.
// One attempt per call, the caller is not offered a retry.
var ErrValidationFailed = errors.New("identity: validation failed")

// CustomerRecord is the stored identity of a caller. It is immutable once
// loaded for a call.
type CustomerRecord struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Last4SSN  string `json:"last4_ssn"`
	DOB       string `json:"dob"` // MM/DD/YYYY
	ZipCode   string `json:"zip_code"`
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	Email     string `json:"email"`
}

// Name returns the customer's display name.
func (c CustomerRecord) Name() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Repository looks up customer records by already-normalized credentials.
// A miss is (nil, nil), not an error.
type Repository interface {
	FindCustomer(ctx context.Context, phoneLast10, last4, dob string) (*CustomerRecord, error)
}

// Validator checks a caller's spoken answers against stored customer records.
type Validator struct {
	repo Repository
}

// NewValidator creates a validator over the given repository.
func NewValidator(repo Repository) *Validator {
	return &Validator{repo: repo}
}

// Validate normalizes the three spoken answers and looks the caller up.
// Returns ErrValidationFailed when nothing matches.
func (v *Validator) Validate(ctx context.Context, phoneSpoken, last4Spoken, dobSpoken string) (*CustomerRecord, error) {
	phone := NormalizePhone(phoneSpoken)
	last4 := NormalizeLast4(last4Spoken)
	dob := NormalizeDOB(dobSpoken)

	record, err := v.repo.FindCustomer(ctx, phone, last4, dob)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrValidationFailed
	}
	return record, nil
}
