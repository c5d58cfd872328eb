package account

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/EiDHindY/vaulture/internal/common"
	"github.com/EiDHindY/vaulture/internal/models"
	"github.com/EiDHindY/vaulture/internal/passgen"
)

const (
	MinPasswordLen   = 12
	MinPasswordScore = passgen.Score(4)

	MinUsernameLen = 3
	MaxUsernameLen = 64
	MaxEmailLen    = 254
)

// mobileRe allows 7 to 20 characters in total, a leading + included.
var mobileRe = regexp.MustCompile(`^(\+[0-9]{6,19}|[0-9]{7,20})$`)

// CheckPassword enforces the master password policy: at least
// MinPasswordLen characters drawing on all four character classes.
func CheckPassword(password []byte) error {
	if utf8.RuneCount(password) < MinPasswordLen {
		return fmt.Errorf("%w: use at least %d characters", common.ErrWeakPassword, MinPasswordLen)
	}
	if passgen.Evaluate(password) < MinPasswordScore {
		return fmt.Errorf("%w: mix upper and lower case letters, digits and symbols", common.ErrWeakPassword)
	}
	return nil
}

// CheckUsername normalizes s and validates the result.
func CheckUsername(s string) (string, error) {
	name := models.NormalizeUsername(s)
	n := utf8.RuneCountInString(name)
	if n < MinUsernameLen || n > MaxUsernameLen {
		return "", fmt.Errorf("%w: must be %d to %d characters", common.ErrInvalidUsername, MinUsernameLen, MaxUsernameLen)
	}
	if strings.IndexFunc(name, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return "", fmt.Errorf("%w: no spaces allowed", common.ErrInvalidUsername)
	}
	return name, nil
}

// CheckEmail accepts a bare address of at most MaxEmailLen characters.
func CheckEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > MaxEmailLen {
		return "", common.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return "", common.ErrInvalidEmail
	}
	return s, nil
}

// CheckMobile accepts an E.164-like number of 7 to 20 characters. Spaces,
// dashes and parentheses are dropped first.
func CheckMobile(s string) (string, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if !mobileRe.MatchString(s) {
		return "", common.ErrInvalidMobile
	}
	return s, nil
}
