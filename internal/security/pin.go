package security

import (
	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier checks PINs against bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

// HashPIN hashes pin with the given bcrypt cost (bcrypt.DefaultCost if zero).
func HashPIN(pin string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
