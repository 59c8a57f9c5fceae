package pii

import "strings"

// Canonicalizer maps raw input to the exact string that is both encrypted and indexed.
type Canonicalizer func(string) string

func CanonicalEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func CanonicalProviderID(s string) string { return strings.TrimSpace(s) }

// CanonicalPhone only trims; the application installs the phone normalizer
// for FieldPhone through WithCanonicalizer.
func CanonicalPhone(s string) string { return strings.TrimSpace(s) }
