package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9]
// using crypto/rand.
func RandomAlphanumeric(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid random length")
	}

	var b strings.Builder
	b.Grow(n)

	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphanumeric[idx.Int64()])
	}
	return b.String(), nil
}
