// Package privacy reduces personally identifiable information to forms that are
// safe to write to logs, audit trails and metrics labels.
package privacy

import (
	"fmt"
	"net"
	"strings"
)

// AnonymizeIP truncates an IP address to its network prefix.
//
// IPv4 addresses keep the /24 ("192.168.1.47" -> "192.168.1.0"); IPv6 addresses keep
// the /48 ("2001:db8:85a3::8a2e:370:7334" -> "2001:0db8:85a3::").
// Returns "unknown" for empty input and "invalid" for unparseable input.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "invalid"
	}

	if v4 := parsed.To4(); v4 != nil {
		return fmt.Sprintf("%d.%d.%d.0", v4[0], v4[1], v4[2])
	}

	return fmt.Sprintf("%02x%02x:%02x%02x:%02x%02x::",
		parsed[0], parsed[1],
		parsed[2], parsed[3],
		parsed[4], parsed[5])
}

// LastFour returns the last four digits of an identifier such as an SSN, ignoring
// separators. Identifiers with fewer than four digits are fully masked.
func LastFour(id string) string {
	var digits []byte
	for i := 0; i < len(id); i++ {
		if id[i] >= '0' && id[i] <= '9' {
			digits = append(digits, id[i])
		}
	}
	if len(digits) < 4 {
		return "****"
	}
	return string(digits[len(digits)-4:])
}

// MaskEmail keeps the first character of the local part and the full domain.
// "jane.doe@example.com" -> "j***@example.com".
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
