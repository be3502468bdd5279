package scorer

import (
	"strings"

	"accountopen/internal/kyc/domain"
)

var suspiciousNamePatterns = []string{"sanchez", "mohammed", "vladimir", "suspicious"}

var disposableEmailMarkers = []string{"tempmail", "10min"}

const (
	sdnMatchDetails          = "Potential match on OFAC SDN list - requires manual review"
	consolidatedMatchDetails = "Low confidence partial name match on consolidated sanctions list"
)

// Every check draws its branch value first, then the confidence, then any
// sub-flag. Tests script the source in that order.

func (s *Scorer) checkIdentity(info domain.PersonalInfo) domain.IdentityResult {
	r := s.rng.Float64()
	switch {
	case strings.Contains(strings.ToLower(info.LastName), "test") || r < 0.05:
		conf := between(s.rng, 0.2, 0.5)
		return domain.IdentityResult{
			Passed:     false,
			Confidence: conf,
			Details: domain.IdentityDetails{
				DateOfBirthMatch: chance(s.rng, 0.5),
				Issues:           []string{"SSN not found in records", "Name mismatch with government records"},
			},
		}
	case r < 0.15:
		conf := between(s.rng, 0.6, 0.8)
		return domain.IdentityResult{
			Passed:     true,
			Confidence: conf,
			Details: domain.IdentityDetails{
				NameMatch:        true,
				SSNMatch:         true,
				DateOfBirthMatch: chance(s.rng, 0.7),
				Issues:           []string{"Middle name discrepancy", "Minor address variation in records"},
			},
		}
	default:
		return domain.IdentityResult{
			Passed:     true,
			Confidence: between(s.rng, 0.85, 1.0),
			Details:    domain.IdentityDetails{NameMatch: true, SSNMatch: true, DateOfBirthMatch: true},
		}
	}
}

func (s *Scorer) checkAddress() domain.AddressResult {
	r := s.rng.Float64()
	switch {
	case r < 0.08:
		return domain.AddressResult{
			Confidence: between(s.rng, 0.3, 0.6),
			Details: domain.AddressDetails{
				Issues: []string{"Address not found in postal database", "No utility records at this address"},
			},
		}
	case r < 0.20:
		conf := between(s.rng, 0.7, 0.85)
		return domain.AddressResult{
			Passed:     true,
			Confidence: conf,
			Details: domain.AddressDetails{
				AddressVerified:  true,
				UtilityBillMatch: chance(s.rng, 0.5),
				Issues:           []string{"Address format inconsistency", "Recent address change detected"},
			},
		}
	default:
		return domain.AddressResult{
			Passed:     true,
			Confidence: between(s.rng, 0.85, 1.0),
			Details:    domain.AddressDetails{AddressVerified: true, UtilityBillMatch: true},
		}
	}
}

func (s *Scorer) checkPhone() domain.PhoneResult {
	r := s.rng.Float64()
	switch {
	case r < 0.06:
		return domain.PhoneResult{
			Confidence: between(s.rng, 0.2, 0.6),
			Details: domain.PhoneDetails{
				Issues: []string{"Phone number not registered to applicant", "Carrier lookup failed"},
			},
		}
	case r < 0.15:
		conf := between(s.rng, 0.6, 0.8)
		return domain.PhoneResult{
			Passed:     true,
			Confidence: conf,
			Details: domain.PhoneDetails{
				PhoneVerified:   true,
				CarrierVerified: chance(s.rng, 0.7),
				Issues:          []string{"Prepaid phone number", "Number recently ported"},
			},
		}
	default:
		return domain.PhoneResult{
			Passed:     true,
			Confidence: between(s.rng, 0.8, 1.0),
			Details:    domain.PhoneDetails{PhoneVerified: true, CarrierVerified: true},
		}
	}
}

func (s *Scorer) checkEmail(info domain.PersonalInfo) domain.EmailResult {
	r := s.rng.Float64()
	switch {
	case isDisposableEmail(info.Email) || r < 0.03:
		return domain.EmailResult{
			Confidence: between(s.rng, 0.1, 0.4),
			Details: domain.EmailDetails{
				Issues: []string{"Disposable email address detected", "Email domain not verified"},
			},
		}
	case r < 0.10:
		conf := between(s.rng, 0.7, 0.9)
		return domain.EmailResult{
			Passed:     true,
			Confidence: conf,
			Details: domain.EmailDetails{
				EmailVerified:  true,
				DomainVerified: chance(s.rng, 0.7),
				Issues:         []string{"Email recently created", "Low domain reputation"},
			},
		}
	default:
		return domain.EmailResult{
			Passed:     true,
			Confidence: between(s.rng, 0.85, 1.0),
			Details:    domain.EmailDetails{EmailVerified: true, DomainVerified: true},
		}
	}
}

// screenOfac draws r1 only for suspicious names. When no SDN match fires it
// always draws r2, which can only match a name that is not suspicious.
func (s *Scorer) screenOfac(info domain.PersonalInfo) domain.OfacResult {
	name := info.FullName()
	suspicious := isSuspiciousName(name)

	if suspicious && s.rng.Float64() < 0.3 {
		return failedScreening(domain.OfacMatch{
			Name:       name,
			Confidence: between(s.rng, 0.7, 0.95),
			ListType:   domain.ListSDN,
			Details:    sdnMatchDetails,
		})
	}
	if r2 := s.rng.Float64(); !suspicious && r2 < 0.02 {
		return failedScreening(domain.OfacMatch{
			Name:       name,
			Confidence: between(s.rng, 0.4, 0.7),
			ListType:   domain.ListConsolidated,
			Details:    consolidatedMatchDetails,
		})
	}
	return domain.OfacResult{Passed: true, Matches: []domain.OfacMatch{}}
}

func failedScreening(m domain.OfacMatch) domain.OfacResult {
	return domain.OfacResult{Passed: false, Matches: []domain.OfacMatch{m}}
}

func isSuspiciousName(fullName string) bool {
	lower := strings.ToLower(fullName)
	for _, p := range suspiciousNamePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isDisposableEmail(email string) bool {
	for _, m := range disposableEmailMarkers {
		if strings.Contains(email, m) {
			return true
		}
	}
	return false
}
