// Package passgen generates random passwords and scores candidate master
// passwords. Both are pure functions; nothing is retained between calls.
package passgen

import (
	"crypto/rand"
	"errors"
	"math/big"
	"unicode"
)

const (
	lowerSet  = "abcdefghijkmnopqrstuvwxyz"
	upperSet  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	digitSet  = "23456789"
	symbolSet = "!@#$%^&*()-_=+[]{};:,.?/"
)

// ErrImpossiblePolicy is returned when no character class is enabled or the
// length cannot fit one character of every enabled class.
var ErrImpossiblePolicy = errors.New("password policy cannot be satisfied")

// Policy describes a generated password.
type Policy struct {
	Length  int
	Upper   bool
	Lower   bool
	Digits  bool
	Symbols bool
}

// DefaultPolicy produces passwords that pass the master-password policy.
var DefaultPolicy = Policy{Length: 20, Upper: true, Lower: true, Digits: true, Symbols: true}

// Generate returns a password with at least one character from every enabled
// class, drawn from crypto/rand.
func Generate(p Policy) (string, error) {
	var classes []string
	if p.Lower {
		classes = append(classes, lowerSet)
	}
	if p.Upper {
		classes = append(classes, upperSet)
	}
	if p.Digits {
		classes = append(classes, digitSet)
	}
	if p.Symbols {
		classes = append(classes, symbolSet)
	}
	if len(classes) == 0 || p.Length < len(classes) {
		return "", ErrImpossiblePolicy
	}

	var all string
	for _, c := range classes {
		all += c
	}

	out := make([]byte, p.Length)
	for i, c := range classes {
		ch, err := pick(c)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}
	for i := len(classes); i < p.Length; i++ {
		ch, err := pick(all)
		if err != nil {
			return "", err
		}
		out[i] = ch
	}

	// Fisher-Yates so the guaranteed characters are not always in front.
	for i := len(out) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		out[i], out[j.Int64()] = out[j.Int64()], out[i]
	}
	return string(out), nil
}

func pick(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}

// Score is the number of character classes (upper, lower, digit, symbol)
// present in a password, 0 through 4.
type Score int

// Evaluate scores password by character-class composition.
func Evaluate(password []byte) Score {
	var upper, lower, digit, symbol bool
	for _, r := range string(password) {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r):
			symbol = true
		}
	}
	var s Score
	for _, ok := range []bool{upper, lower, digit, symbol} {
		if ok {
			s++
		}
	}
	return s
}
