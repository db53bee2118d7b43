package util

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// validNameChars matches only alphanumeric characters, hyphens, and periods.
var validNameChars = regexp.MustCompile(`^[a-zA-Z0-9.\-]+$`)

// maxServerName is the hostname label limit Nova applies when it derives
// the guest hostname from the server name.
const maxServerName = 63

// maxResourceName is Neutron's and Octavia's limit on the name attribute.
const maxResourceName = 255

// ValidateServerName checks that a server name is usable as a guest hostname:
//   - Between 2 and 63 characters
//   - Only alphanumeric characters (a-z, A-Z, 0-9), hyphens (-), and periods (.)
//   - First character must be alphanumeric
//   - Last character must not be a hyphen or period
func ValidateServerName(name string) error {
	if len(name) < 2 {
		return fmt.Errorf("server name must be at least 2 characters, got %d", len(name))
	}
	if len(name) > maxServerName {
		return fmt.Errorf("server name must be at most %d characters, got %d", maxServerName, len(name))
	}

	if !validNameChars.MatchString(name) {
		return fmt.Errorf("server name %q contains invalid characters (only a-z, A-Z, 0-9, hyphens, and periods are allowed)", name)
	}

	first := name[0]
	if !isAlphanumeric(first) {
		return fmt.Errorf("server name must start with an alphanumeric character, got %q", string(first))
	}

	last := name[len(name)-1]
	if last == '-' || last == '.' {
		return fmt.Errorf("server name must not end with a hyphen or period, got %q", string(last))
	}

	return nil
}

// ValidateResourceName checks a network, router, subnet or load balancer
// name: non-blank, at most 255 bytes, no control characters and no
// surrounding whitespace.
func ValidateResourceName(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name must not be empty", kind)
	}
	if len(name) > maxResourceName {
		return fmt.Errorf("%s name must be at most %d characters, got %d", kind, maxResourceName, len(name))
	}
	if strings.TrimSpace(name) != name {
		return fmt.Errorf("%s name %q must not start or end with whitespace", kind, name)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s name %q contains control characters", kind, name)
		}
	}
	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
