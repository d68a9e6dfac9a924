package utils

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const equalizerPassword = "timing-equalizer-password"

// dummyHashes holds one always-failing hash per bcrypt cost, so a lookup miss
// costs the same as a wrong password at whatever cost accounts are hashed with.
var dummyHashes sync.Map

// HashPassword hashes a password with bcrypt at the given cost
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches hash
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// BurnPasswordCheck runs a comparison that always fails, at the given cost
func BurnPasswordCheck(password string, cost int) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(cost), []byte(password))
}

func dummyHash(cost int) []byte {
	if hash, ok := dummyHashes.Load(cost); ok {
		return hash.([]byte)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(equalizerPassword), cost)
	if err != nil {
		hash, _ = bcrypt.GenerateFromPassword([]byte(equalizerPassword), bcrypt.DefaultCost)
	}
	actual, _ := dummyHashes.LoadOrStore(cost, hash)
	return actual.([]byte)
}
