package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	stateLength   = 16
	stateAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// NewAuthState returns a random 16-character alphanumeric nonce for one authorization attempt.
func NewAuthState() (string, error) {
	buf := make([]byte, stateLength)
	limit := big.NewInt(int64(len(stateAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate auth state: %w", err)
		}
		buf[i] = stateAlphabet[n.Int64()]
	}
	return string(buf), nil
}
