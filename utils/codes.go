package utils

import (
	"crypto/rand"
	"math/big"
)

// GenerateVerificationCode creates a numeric code with n digits (6 when n <= 0).
func GenerateVerificationCode(n int) (string, error) {
	if n <= 0 {
		n = 6
	}
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}
