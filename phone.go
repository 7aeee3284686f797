package main

import (
	"strings"
	"unicode/utf8"

	"github.com/nyaruka/phonenumbers"
)

// minPhoneLength is the length a phone value must exceed before it counts as
// an attempt to enter a number.
const minPhoneLength = 5

type PhoneStatus int

const (
	PhoneAbsent PhoneStatus = iota
	PhoneValid
	PhoneInvalid
)

func (s PhoneStatus) String() string {
	switch s {
	case PhoneValid:
		return "valid"
	case PhoneInvalid:
		return "invalid"
	default:
		return "absent"
	}
}

// PhoneValidator reports whether phone is a well formed number. region is the
// ISO country used for numbers written without a leading +.
type PhoneValidator func(phone string, region string) bool

// IsPhoneValid checks phone against the libphonenumber metadata.
func IsPhoneValid(phone string, region string) bool {
	number, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}

// ClassifyPhone decides how the router treats a phone value. Values up to
// minPhoneLength characters are never an invalid attempt, only absent. Longer
// values are valid or invalid depending on the format check. The length counts
// the value as typed, padding included.
func ClassifyPhone(phone string, region string, valid PhoneValidator) PhoneStatus {
	if utf8.RuneCountInString(phone) <= minPhoneLength {
		return PhoneAbsent
	}
	if valid(strings.TrimSpace(phone), region) {
		return PhoneValid
	}
	return PhoneInvalid
}
