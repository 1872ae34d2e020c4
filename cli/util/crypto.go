package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomString returns a string of length n built from characters of alphabet.
func RandomString(n int, alphabet string) (string, error) {
	if len(alphabet) == 0 {
		return "", fmt.Errorf("alphabet must not be empty")
	}

	chars := []byte(alphabet)
	max := big.NewInt(int64(len(chars)))

	result := make([]byte, n)
	for i := range result {
		index, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random string: %s", err)
		}
		result[i] = chars[index.Int64()]
	}

	return string(result), nil
}

// RandomDigits returns a string of n random decimal digits.
func RandomDigits(n int) (string, error) {
	return RandomString(n, "0123456789")
}
