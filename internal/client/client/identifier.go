package client

import (
	"strings"

	"github.com/nrana15/clio/internal/common"
)

// Identifier names the channel a code is sent to. Exactly one field is set.
type Identifier struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	Email       string `json:"email,omitempty"`
}

func Phone(number string) Identifier { return Identifier{PhoneNumber: number} }

func Email(address string) Identifier { return Identifier{Email: address} }

// ParseIdentifier treats input containing '@' as an email and anything else
// as a phone number. The result still has to pass Validate.
func ParseIdentifier(input string) Identifier {
	input = strings.TrimSpace(input)
	if strings.Contains(input, "@") {
		return Email(input)
	}
	return Phone(input)
}

func (id Identifier) IsZero() bool {
	return id.PhoneNumber == "" && id.Email == ""
}

func (id Identifier) String() string {
	if id.PhoneNumber != "" {
		return id.PhoneNumber
	}
	return id.Email
}

// Validate rejects identifiers carrying both or neither field, phone numbers
// outside 10 to 15 digits, and emails without '@'.
func (id Identifier) Validate() error {
	hasPhone, hasEmail := id.PhoneNumber != "", id.Email != ""
	if hasPhone == hasEmail {
		return ErrMalformedIdentifier
	}
	if hasPhone && !common.ValidPhone(id.PhoneNumber) {
		return ErrMalformedIdentifier
	}
	if hasEmail && !common.ValidEmail(id.Email) {
		return ErrMalformedIdentifier
	}
	return nil
}

// ValidateCode accepts exactly common.OtpLength ASCII digits.
func ValidateCode(code string) error {
	if !common.ValidOtpCode(code) {
		return ErrMalformedCode
	}
	return nil
}
