package service

import (
	"net/mail"
	"strings"
	"unicode"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/walletauth/core"
)

const (
	minPasswordBytes = 8
	maxPasswordBytes = 128
	minPhoneDigits   = 8
	maxPhoneDigits   = 15
)

// NormalizeAddress trims and lowercases a wallet address and checks it is 0x-prefixed 20-byte hex
func NormalizeAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if len(address) != 2+2*common.AddressLength || !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return "", core.ErrInvalidAddress
	}
	return address, nil
}

// NormalizeEmail trims and lowercases an email and checks it parses as a bare address
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", core.ErrInvalidEmail
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return "", core.ErrInvalidEmail
	}
	return email, nil
}

// NormalizePhone strips everything but digits
func NormalizePhone(phone string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) && r <= unicode.MaxASCII {
			return r
		}
		return -1
	}, phone)
	if len(digits) < minPhoneDigits || len(digits) > maxPhoneDigits {
		return "", core.ErrInvalidPhone
	}
	return digits, nil
}

// ValidatePassword enforces the password length policy on raw bytes
func ValidatePassword(password string) error {
	if len(password) < minPasswordBytes || len(password) > maxPasswordBytes {
		return core.ErrWeakPassword
	}
	return nil
}
