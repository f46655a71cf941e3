// Package numgen generates the fixed-length numeric identifiers used for
// account and transaction numbers.
package numgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	AccountNumberLength     = 10
	TransactionNumberLength = 15
)

// Digits returns n decimal digits, each drawn independently and uniformly
// from a cryptographically secure source. Leading zeros are allowed.
// Uniqueness is not guaranteed here; callers must check persisted records
// and regenerate on collision.
func Digits(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("Digits: length must be positive, got %d", n)
	}
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("Digits: %w", err)
		}
		digits[i] = '0' + byte(v.Int64())
	}
	return string(digits), nil
}
