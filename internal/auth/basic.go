package auth

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Users holds bcrypt password hashes keyed by lower-cased user name.
type Users struct {
	hashes map[string]string
}

func NewUsers(hashes map[string]string) *Users {
	u := &Users{hashes: make(map[string]string, len(hashes))}
	for name, h := range hashes {
		u.hashes[strings.ToLower(name)] = h
	}
	return u
}

// Verify reports whether password matches the stored hash of name.
func (u *Users) Verify(name, password string) bool {
	if u == nil {
		return false
	}
	hash, ok := u.hashes[strings.ToLower(name)]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Len returns the number of users.
func (u *Users) Len() int {
	if u == nil {
		return 0
	}
	return len(u.hashes)
}

// HashPassword returns the bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
