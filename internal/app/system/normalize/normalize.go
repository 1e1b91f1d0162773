// internal/app/system/normalize/normalize.go
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

// DefaultCountryCode is prefixed to local numbers when the client omits one.
const DefaultCountryCode = "+966"

// ErrInvalidPhone is returned for numbers that are not Saudi mobile numbers.
var ErrInvalidPhone = errors.New("invalid phone number format. Must be a valid Saudi number (5xxxxxxxx)")

var (
	saudiMobile = regexp.MustCompile(`^5\d{8}$`)
	countryCode = regexp.MustCompile(`^\+\d{1,4}$`)
)

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CountryCode trims cc and falls back to DefaultCountryCode when it is
// empty or malformed.
func CountryCode(cc string) string {
	cc = strings.TrimSpace(cc)
	if cc != "" && !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	if !countryCode.MatchString(cc) {
		return DefaultCountryCode
	}
	return cc
}

// LocalPhone strips formatting from a local mobile number and validates it
// as 5xxxxxxxx.
func LocalPhone(phone string) (string, error) {
	d := Digits(phone)
	if !saudiMobile.MatchString(d) {
		return "", ErrInvalidPhone
	}
	return d, nil
}

// Phone builds the stored form (+9665xxxxxxxx) from a local number and an
// optional country code.
func Phone(phone, cc string) (string, error) {
	local, err := LocalPhone(phone)
	if err != nil {
		return "", err
	}
	return CountryCode(cc) + local, nil
}

// PhoneLoose builds the stored form without validating the local part. It
// matches numbers that were accepted when the session was created.
func PhoneLoose(phone, cc string) string {
	return CountryCode(cc) + Digits(phone)
}

// Email lowercases and trims an email address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role lowercases and trims a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
