package domain

import (
	"strings"

	dErrors "accountopen/pkg/domain-errors"
)

// PersonalInfo is the applicant record a verification is run against.
// The scorer reads names and email; the remaining fields are carried for
// parity with a real provider request.
type PersonalInfo struct {
	FirstName      string         `json:"firstName"`
	LastName       string         `json:"lastName"`
	DateOfBirth    string         `json:"dateOfBirth"`
	SSN            string         `json:"ssn"`
	Phone          string         `json:"phone"`
	Email          string         `json:"email"`
	MailingAddress MailingAddress `json:"mailingAddress"`
}

type MailingAddress struct {
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country,omitempty"`
}

// FullName joins first and last name with a single space, as screened.
func (p PersonalInfo) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Validate checks the fields scoring depends on. An empty value counts as missing.
func (p PersonalInfo) Validate() error {
	switch {
	case p.FirstName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "firstName is required")
	case p.LastName == "":
		return dErrors.New(dErrors.CodeInvalidInput, "lastName is required")
	case p.Email == "":
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	return nil
}

// Normalize trims surrounding whitespace from every string field.
func (p *PersonalInfo) Normalize() {
	for _, f := range []*string{
		&p.FirstName, &p.LastName, &p.DateOfBirth, &p.SSN, &p.Phone, &p.Email,
		&p.MailingAddress.Street1, &p.MailingAddress.Street2, &p.MailingAddress.City,
		&p.MailingAddress.State, &p.MailingAddress.ZipCode, &p.MailingAddress.Country,
	} {
		*f = strings.TrimSpace(*f)
	}
}
