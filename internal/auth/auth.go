package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptySecret = errors.New("master secret is empty")

// MasterSecret checks Jury President passwords against the shared secret.
// Only its bcrypt hash is kept in memory once the server has started.
type MasterSecret struct {
	hash []byte
}

func NewMasterSecret(secret string, cost int) (*MasterSecret, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, fmt.Errorf("hash master secret: %w", err)
	}
	return &MasterSecret{hash: hash}, nil
}

func (m *MasterSecret) Verify(password string) bool {
	if m == nil || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(m.hash, []byte(password)) == nil
}
