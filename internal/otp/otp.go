// Package otp generates one-time numeric codes.
package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	codeMin = 100000
	codeMax = 999999
)

// Generate returns a 6-digit code drawn uniformly from [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("otp: read random: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// Digits returns n random decimal digits; leading zeros are kept.
func Digits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	ten := big.NewInt(10)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("otp: read random: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}
