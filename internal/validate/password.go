package validate

import (
	"strings"
	"unicode"
)

type Strength string

const (
	Weak   Strength = "weak"
	Medium Strength = "medium"
	Strong Strength = "strong"
)

const (
	MinPasswordLen = 8
	MaxPasswordLen = 72 // bcrypt ignores anything longer
	specialChars   = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?`~"
)

// PasswordScore counts the satisfied predicates: length, letter, digit, special.
func PasswordScore(pw string) int {
	var hasLetter, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(specialChars, r):
			hasSpecial = true
		}
	}
	score := 0
	for _, ok := range []bool{len([]rune(pw)) >= MinPasswordLen, hasLetter, hasDigit, hasSpecial} {
		if ok {
			score++
		}
	}
	return score
}

// PasswordStrength maps the score to weak (0-2), medium (3) or strong (4).
func PasswordStrength(pw string) Strength {
	switch PasswordScore(pw) {
	case 4:
		return Strong
	case 3:
		return Medium
	default:
		return Weak
	}
}

// Password is the server-side gate for new passwords: not weak and bcrypt-sized.
func Password(pw string) bool {
	return len(pw) <= MaxPasswordLen && PasswordStrength(pw) != Weak
}
