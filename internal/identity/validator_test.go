package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededRepo() *MemoryRepository {
	return NewMemoryRepository(CustomerRecord{
		ID:        42,
		FirstName: "Maria",
		LastName:  "Santos",
		Phone:     "5551234567",
		Last4SSN:  "9876",
		DOB:       "11/10/1986",
		Plan:      "Gold",
		Status:    "Silver",
		Email:     "maria@example.com",
	})
}

func TestValidateSpokenAnswers(t *testing.T) {
	v := NewValidator(seededRepo())

	record, err := v.Validate(context.Background(),
		"555-123-4567", "9876", "eleven ten nineteen eighty six")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, int64(42), record.ID)
	assert.Equal(t, "Maria Santos", record.Name())
}

func TestValidateCountryCodeIgnored(t *testing.T) {
	v := NewValidator(seededRepo())

	record, err := v.Validate(context.Background(),
		"+1 (555) 123-4567", "nine eight seven six", "11101986")
	require.NoError(t, err)
	assert.Equal(t, "maria@example.com", record.Email)
}

func TestValidateNoMatch(t *testing.T) {
	v := NewValidator(seededRepo())

	record, err := v.Validate(context.Background(),
		"555-123-4567", "0000", "eleven ten nineteen eighty six")
	require.ErrorIs(t, err, ErrValidationFailed)
	assert.Nil(t, record)
}

func TestValidateEmptyAnswers(t *testing.T) {
	v := NewValidator(seededRepo())

	_, err := v.Validate(context.Background(), "", "", "")
	require.ErrorIs(t, err, ErrValidationFailed)
}
