package auth

import "golang.org/x/crypto/bcrypt"

// PasswordVerifier checks a login attempt against a stored credential hash.
// The login handler depends on this interface rather than on bcrypt so
// tests can swap in a cheap fake.
type PasswordVerifier interface {
	// Compare returns nil when password matches hashedPassword, and a
	// non-nil error on mismatch or a malformed hash.
	Compare(hashedPassword, password string) error
}

// BcryptVerifier is the production PasswordVerifier. It pairs with the
// bcrypt hashes written by the user store on registration.
type BcryptVerifier struct{}

// NewBcryptVerifier creates a new BcryptVerifier.
func NewBcryptVerifier() *BcryptVerifier {
	return &BcryptVerifier{}
}

// Compare implements PasswordVerifier with a constant-time bcrypt check.
func (v *BcryptVerifier) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}
