package auth

import (
	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost is the bcrypt cost used when none is configured.
	DefaultCost = 10
	// MinCost is the lowest bcrypt cost ever used, whatever the configuration.
	MinCost = 10
)

// ClampCost bounds a configured cost to [MinCost, bcrypt.MaxCost]. Zero
// selects DefaultCost.
func ClampCost(cost int) int {
	switch {
	case cost == 0:
		return DefaultCost
	case cost < MinCost:
		return MinCost
	case cost > bcrypt.MaxCost:
		return bcrypt.MaxCost
	}
	return cost
}

// HashPassword hashes a password with bcrypt using a fresh random salt.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), ClampCost(cost))
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
