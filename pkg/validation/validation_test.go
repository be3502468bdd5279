package validation

import (
	"testing"

	dErrors "accountopen/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applicant struct {
	FirstName   string `json:"firstName" validate:"required,notblank,max=100"`
	Email       string `json:"email" validate:"required,email"`
	SSN         string `json:"ssn" validate:"required,ssn"`
	DateOfBirth string `json:"dateOfBirth" validate:"required,isodate"`
	State       string `json:"state" validate:"omitempty,len=2"`
}

func validApplicant() applicant {
	return applicant{
		FirstName:   "Jane",
		Email:       "jane@example.com",
		SSN:         "123-45-6789",
		DateOfBirth: "1990-04-12",
		State:       "CA",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(a *applicant)
		wantMsg string
	}{
		{name: "valid", mutate: func(a *applicant) {}},
		{name: "ssn without dashes", mutate: func(a *applicant) { a.SSN = "123456789" }},
		{name: "missing first name", mutate: func(a *applicant) { a.FirstName = "" }, wantMsg: "first_name is required"},
		{name: "blank first name", mutate: func(a *applicant) { a.FirstName = "   " }, wantMsg: "first_name must not be blank"},
		{name: "bad email", mutate: func(a *applicant) { a.Email = "jane" }, wantMsg: "email must be a valid email"},
		{name: "bad ssn", mutate: func(a *applicant) { a.SSN = "12-345-678" }, wantMsg: "ssn must look like 123-45-6789"},
		{name: "bad dob", mutate: func(a *applicant) { a.DateOfBirth = "04/12/1990" }, wantMsg: "date_of_birth must be formatted YYYY-MM-DD"},
		{name: "bad state", mutate: func(a *applicant) { a.State = "Cal" }, wantMsg: "state must be 2 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validApplicant()
			tt.mutate(&a)

			err := Validate(a)
			if tt.wantMsg == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

type envelope struct {
	Applicant applicant `json:"mailingApplicant"`
	ZipCode   string    `json:"zipCode" validate:"max=5"`
}

func TestValidate_NestedAndMultipleFields(t *testing.T) {
	e := envelope{Applicant: validApplicant(), ZipCode: "1234567"}
	e.Applicant.Email = "nope"

	err := Validate(e)

	require.Error(t, err)
	assert.Equal(t,
		"mailing_applicant.email must be a valid email; zip_code must be at most 5",
		err.Error())
}

func TestErrorMessage_NonValidatorError(t *testing.T) {
	assert.Equal(t, "invalid request body", ErrorMessage(assert.AnError))
}
