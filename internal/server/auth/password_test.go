package auth

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewPasswordHasher_CostRange(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost - 1)
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = NewPasswordHasher(bcrypt.MaxCost + 1)
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	assert.NoError(t, h.Compare(hash, "s3cret"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), common.ErrorAuthenticationFailed)
	assert.ErrorIs(t, h.Compare("not-a-hash", "s3cret"), common.ErrorAuthenticationFailed)
}

func TestPasswordHasher_Validation(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash("")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = h.Hash(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, common.ErrorValidation)
}

func TestPasswordHasher_CompareDummyAlwaysFails(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	assert.ErrorIs(t, h.CompareDummy(""), common.ErrorAuthenticationFailed)
	assert.ErrorIs(t, h.CompareDummy("anything"), common.ErrorAuthenticationFailed)
}
