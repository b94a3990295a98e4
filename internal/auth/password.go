package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/stash/internal/models"
)

// hashCost is lowered in tests.
var hashCost = bcrypt.DefaultCost

// SetPassword replaces u's stored hash with a salted bcrypt hash of plaintext.
func SetPassword(u *models.User, plaintext string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = string(hashed)
	return nil
}

// CheckPassword reports whether plaintext matches u's stored hash.
func CheckPassword(u *models.User, plaintext string) bool {
	if u == nil || u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}
