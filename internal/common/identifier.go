package common

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// ValidPhone reports whether s is an optional '+' followed by 10 to 15
// digits.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidEmail only requires an '@' with something on both sides; the
// delivery channel does the real check.
func ValidEmail(s string) bool {
	at := strings.Index(s, "@")
	return at > 0 && at < len(s)-1
}

// ValidOtpCode reports whether code is exactly OtpLength ASCII digits.
func ValidOtpCode(code string) bool {
	if len(code) != OtpLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
