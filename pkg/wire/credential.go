package wire

import (
	"crypto/subtle"
	"errors"
	"fmt"
)

// CredentialLength is the fixed number of digits in an access code.
const CredentialLength = 5

// ErrInvalidCredential is returned when a credential is not exactly five
// digits 0-9.
var ErrInvalidCredential = errors.New("wire: credential must be 5 digits 0-9")

// Credential is a five-digit access code, one digit value (0-9) per element.
type Credential [CredentialLength]uint8

// ParseCredential parses a string of exactly five decimal digits.
func ParseCredential(s string) (Credential, error) {
	var c Credential
	if len(s) != CredentialLength {
		return c, fmt.Errorf("%w: got %d characters", ErrInvalidCredential, len(s))
	}
	for i := 0; i < CredentialLength; i++ {
		if s[i] < '0' || s[i] > '9' {
			return Credential{}, fmt.Errorf("%w: position %d is %q", ErrInvalidCredential, i, s[i])
		}
		c[i] = s[i] - '0'
	}
	return c, nil
}

// Valid reports whether every element is a digit.
func (c Credential) Valid() bool {
	for _, d := range c {
		if d > 9 {
			return false
		}
	}
	return true
}

// Validate returns ErrInvalidCredential when c is not valid.
func (c Credential) Validate() error {
	for i, d := range c {
		if d > 9 {
			return fmt.Errorf("%w: position %d is 0x%02X", ErrInvalidCredential, i, d)
		}
	}
	return nil
}

// Matches compares c with candidate position by position. Any differing
// position fails the whole comparison, and an invalid credential on either
// side never matches. The comparison time does not depend on where the
// first difference is.
func (c Credential) Matches(candidate Credential) bool {
	if !c.Valid() || !candidate.Valid() {
		return false
	}
	return subtle.ConstantTimeCompare(c[:], candidate[:]) == 1
}

// String masks the digits so credentials never reach a log line.
func (c Credential) String() string {
	return "*****"
}

// Digits returns the credential as a digit string, e.g. "12345".
func (c Credential) Digits() string {
	b := make([]byte, CredentialLength)
	for i, d := range c {
		b[i] = '0' + d
	}
	return string(b)
}

// EncodeCredential frames c for the link. Digits travel as their values,
// not as ASCII.
func EncodeCredential(c Credential) [CredentialLength]byte {
	return [CredentialLength]byte(c)
}

// DecodeCredential is the inverse of EncodeCredential.
func DecodeCredential(b [CredentialLength]byte) Credential {
	return Credential(b)
}
