package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMasterSecretVerify(t *testing.T) {
	m, err := NewMasterSecret("hunter2", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, m.Verify("hunter2"))
	assert.False(t, m.Verify("hunter3"))
	assert.False(t, m.Verify(""))
}

func TestMasterSecretRequiresValue(t *testing.T) {
	_, err := NewMasterSecret("", bcrypt.MinCost)
	require.ErrorIs(t, err, ErrEmptySecret)

	var nilSecret *MasterSecret
	assert.False(t, nilSecret.Verify("anything"))
}
