package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

var (
	otpMax    = big.NewInt(1000000)
	otpFormat = regexp.MustCompile(`^[0-9]{6}$`)
)

// generateCode produces a 6-digit numeric one-time code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidOTPFormat reports whether code is exactly 6 digits.
func ValidOTPFormat(code string) bool {
	return otpFormat.MatchString(code)
}
