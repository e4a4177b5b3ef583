package auth

import (
	"golang.org/x/crypto/bcrypt"

	"pulse/internal/constants"
	pkgerrors "pulse/pkg/errors"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 50
)

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = constants.DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

// Validate enforces the password length rules.
func (h *PasswordHasher) Validate(password string) error {
	switch {
	case len(password) < minPasswordLength:
		return pkgerrors.ErrValidation.WithMessage("Minimum password length is 8 letters")
	case len(password) > maxPasswordLength:
		return pkgerrors.ErrValidation.WithMessage("Maximum password length is 50 letters")
	}
	return nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return string(hash), nil
}

// Compare reports whether password matches the bcrypt hash. An empty hash
// never matches.
func (h *PasswordHasher) Compare(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
