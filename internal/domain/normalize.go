package domain

import "strings"

// NormalizeHumanName collapses whitespace runs and trims the ends. Airline and region
// names go through it too.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail only trims; addresses compare case-insensitively but keep their casing.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeFlightNumber drops all whitespace and upper-cases: " pa 101 " -> "PA101".
func NormalizeFlightNumber(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}

// NormalizeCode upper-cases short identifiers such as ISO currencies and bag tags.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
