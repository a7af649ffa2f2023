package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	// Taiwan mobile (09xxxxxxxx) or landline with area code, dashes optional.
	rePhone = regexp.MustCompile(`^(09[0-9]{2}-?[0-9]{3}-?[0-9]{3}|0[2-8]-?[0-9]{3,4}-?[0-9]{4})$`)
	reCode  = regexp.MustCompile(`^[0-9]{6}$`)
	reOrder = regexp.MustCompile(`^CB[0-9]{8}-[0-9]{6}$`)
)

// Email trims and lowercases s.
func Email(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 0 || len(s) > 100 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !rePhone.MatchString(s) {
		return "", false
	}
	return strings.ReplaceAll(s, "-", ""), true
}

// ID validates a simple resource identifier (product/category/order ids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a displayable name with a reasonable max length in characters.
func Name(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > max {
		return "", false
	}
	return s, true
}

// OTPCode accepts exactly six digits.
func OTPCode(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, reCode.MatchString(s)
}

func OrderCode(s string) (string, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	return s, reOrder.MatchString(s)
}

// Bool parses a query flag, falling back to def when s is empty or malformed.
func Bool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}
