package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

const (
	otpMin = 100000
	otpMax = 999999

	stringTokenBytes = 32
)

var otpRange = big.NewInt(otpMax - otpMin + 1)

// GenerateOTP returns a uniformly random 6-digit code
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return strconv.FormatInt(n.Int64()+otpMin, 10), nil
}

// IsOTP reports whether s has the shape of a generated OTP
func IsOTP(s string) bool {
	if len(s) != 6 {
		return false
	}
	n, err := strconv.Atoi(s)
	return err == nil && n >= otpMin && n <= otpMax
}

// GenerateStringToken returns 32 random bytes hex-encoded
func GenerateStringToken() (string, error) {
	b := make([]byte, stringTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
