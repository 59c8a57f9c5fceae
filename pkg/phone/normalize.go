// Package phone turns user-entered phone strings into an E.164-like canonical form.
//
// Normalization is best-effort, not validation: a bare 10-digit number is assumed
// to be national to the configured default region, anything else without a plus is
// assumed to already carry its country code. "4155550100" is therefore always read
// as a default-region number even when the user meant a US number.
package phone

import (
	"errors"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

var ErrEmpty = errors.New("phone: no digits")

const nationalLen = 10

// Normalizer is immutable once constructed and safe for concurrent use.
type Normalizer struct {
	callingCode string
}

// NewNormalizer builds a normalizer for a default region (ISO 3166 alpha-2, e.g. "IN").
// A non-empty callingCode ("91" or "+91") takes precedence over the region.
func NewNormalizer(region, callingCode string) (*Normalizer, error) {
	code := strings.TrimPrefix(strings.TrimSpace(callingCode), "+")
	if code == "" {
		n := phonenumbers.GetCountryCodeForRegion(strings.ToUpper(strings.TrimSpace(region)))
		if n == 0 {
			return nil, errors.New("phone: unknown default region " + region)
		}
		code = strconv.Itoa(n)
	}
	if _, err := strconv.Atoi(code); err != nil {
		return nil, errors.New("phone: invalid calling code " + callingCode)
	}
	return &Normalizer{callingCode: code}, nil
}

// CallingCode returns the default country calling code without the plus.
func (n *Normalizer) CallingCode() string { return n.callingCode }

// Normalize strips everything except digits and a leading plus, then applies
// the default calling code to 10-digit national numbers.
func (n *Normalizer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	plus := strings.HasPrefix(raw, "+")

	var b strings.Builder
	b.Grow(len(raw) + 4)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", ErrEmpty
	}

	switch {
	case plus:
		return "+" + digits, nil
	case len(digits) == nationalLen:
		return "+" + n.callingCode + digits, nil
	default:
		return "+" + digits, nil
	}
}

// Canonical is Normalize for callers that need a total function, such as
// the PII vault canonicalizer. Inputs without digits map to their trimmed form.
func (n *Normalizer) Canonical(raw string) string {
	out, err := n.Normalize(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return out
}
