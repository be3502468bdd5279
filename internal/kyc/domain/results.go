package domain

// IdentityResult is the identity-document check verdict.
type IdentityResult struct {
	Passed     bool            `json:"passed"`
	Confidence float64         `json:"confidence"`
	Details    IdentityDetails `json:"details"`
}

type IdentityDetails struct {
	NameMatch        bool     `json:"nameMatch"`
	SSNMatch         bool     `json:"ssnMatch"`
	DateOfBirthMatch bool     `json:"dateOfBirthMatch"`
	Issues           []string `json:"issues,omitempty"`
}

type AddressResult struct {
	Passed     bool           `json:"passed"`
	Confidence float64        `json:"confidence"`
	Details    AddressDetails `json:"details"`
}

type AddressDetails struct {
	AddressVerified  bool     `json:"addressVerified"`
	UtilityBillMatch bool     `json:"utilityBillMatch"`
	Issues           []string `json:"issues,omitempty"`
}

type PhoneResult struct {
	Passed     bool         `json:"passed"`
	Confidence float64      `json:"confidence"`
	Details    PhoneDetails `json:"details"`
}

type PhoneDetails struct {
	PhoneVerified   bool     `json:"phoneVerified"`
	CarrierVerified bool     `json:"carrierVerified"`
	Issues          []string `json:"issues,omitempty"`
}

type EmailResult struct {
	Passed     bool         `json:"passed"`
	Confidence float64      `json:"confidence"`
	Details    EmailDetails `json:"details"`
}

type EmailDetails struct {
	EmailVerified  bool     `json:"emailVerified"`
	DomainVerified bool     `json:"domainVerified"`
	Issues         []string `json:"issues,omitempty"`
}

// OfacResult is the sanctions screening verdict. It carries match records
// instead of a confidence; Matches is non-empty exactly when Passed is false.
type OfacResult struct {
	Passed  bool        `json:"passed"`
	Matches []OfacMatch `json:"matches"`
}

type OfacMatch struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	ListType   string  `json:"listType"`
	Details    string  `json:"details"`
}

// Sanctions list names used in match records.
const (
	ListSDN          = "SDN List"
	ListConsolidated = "Consolidated List"
)

// VerificationResults holds exactly one verdict per check.
type VerificationResults struct {
	Identity IdentityResult `json:"identity"`
	Address  AddressResult  `json:"address"`
	Phone    PhoneResult    `json:"phone"`
	Email    EmailResult    `json:"email"`
	Ofac     OfacResult     `json:"ofac"`
}

// HasIssues reports whether any non-sanctions check flagged an issue.
func (r VerificationResults) HasIssues() bool {
	return len(r.Identity.Details.Issues) > 0 ||
		len(r.Address.Details.Issues) > 0 ||
		len(r.Phone.Details.Issues) > 0 ||
		len(r.Email.Details.Issues) > 0
}

// FailedComponents lists the checks that did not pass, in a fixed order.
func (r VerificationResults) FailedComponents() []string {
	var failed []string
	if !r.Identity.Passed {
		failed = append(failed, ComponentIdentity)
	}
	if !r.Address.Passed {
		failed = append(failed, ComponentAddress)
	}
	if !r.Phone.Passed {
		failed = append(failed, ComponentPhone)
	}
	if !r.Email.Passed {
		failed = append(failed, ComponentEmail)
	}
	if !r.Ofac.Passed {
		failed = append(failed, ComponentOfac)
	}
	return failed
}

// Component names, used as metric labels and in logs.
const (
	ComponentIdentity = "identity"
	ComponentAddress  = "address"
	ComponentPhone    = "phone"
	ComponentEmail    = "email"
	ComponentOfac     = "ofac"
)
