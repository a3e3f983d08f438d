// Package domain validates and normalizes RFC 1035 domain names used as
// record identifiers throughout the daemon. Validation is grounded on
// github.com/miekg/dns's dns.IsDomainName, with the additional length and
// hyphen-placement checks the specification calls out explicitly.
package domain

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// maxNameLength is the presentation-format limit (no trailing dot) that
// corresponds to RFC 1035's 255-octet wire-format limit.
const maxNameLength = 253

// maxLabelLength is the RFC 1035 limit on a single label.
const maxLabelLength = 63

// Name is a validated, normalized domain name: lower-cased, with any
// trailing root dot stripped, suitable for use as a map key.
type Name string

// Parse validates raw against RFC 1035 and returns its normalized form.
// Validation rules: total length <= 253, 1-63 octets per label, ASCII
// alphanumerics and hyphens only, labels do not start or end with a
// hyphen, no empty labels.
func Parse(raw string) (Name, error) {
	trimmed := strings.TrimSuffix(raw, ".")
	if trimmed == "" {
		return "", fmt.Errorf("domain name is empty")
	}
	if len(trimmed) > maxNameLength {
		return "", fmt.Errorf("domain name %q exceeds %d octets", raw, maxNameLength)
	}
	if _, ok := dns.IsDomainName(trimmed); !ok {
		return "", fmt.Errorf("domain name %q is not a valid RFC 1035 name", raw)
	}

	labels := strings.Split(trimmed, ".")
	for _, label := range labels {
		if err := validateLabel(label); err != nil {
			return "", fmt.Errorf("domain name %q: %w", raw, err)
		}
	}

	return Name(strings.ToLower(trimmed)), nil
}

// MustParse panics on an invalid name. Reserved for tests and literal
// constants; production code paths must use Parse and propagate the error
// as a KindConfig error.
func MustParse(raw string) Name {
	n, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return n
}

func validateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	if len(label) > maxLabelLength {
		return fmt.Errorf("label %q exceeds %d octets", label, maxLabelLength)
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return fmt.Errorf("label %q starts or ends with a hyphen", label)
	}
	for _, r := range label {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' {
			return fmt.Errorf("label %q contains %q, only ASCII alphanumerics and hyphens are allowed", label, r)
		}
	}
	return nil
}

// Apex returns the registrable parent of n: its last two labels. This is
// a documented simplification (no public-suffix-list lookup) appropriate
// for a daemon that manages an operator-specified, small record set; see
// SPEC_FULL.md §4.3.
func (n Name) Apex() Name {
	labels := strings.Split(string(n), ".")
	if len(labels) <= 2 {
		return n
	}
	return Name(strings.Join(labels[len(labels)-2:], "."))
}

// String implements fmt.Stringer.
func (n Name) String() string { return string(n) }
