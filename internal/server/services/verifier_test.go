package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialVerifier_Verify(t *testing.T) {
	f := newFixture(t)
	stored, _ := f.seed(t, "alice", "wonderland", models.RoleUser, models.RoleAdmin)
	banned, _ := f.seed(t, "mallory", "evil")
	f.repo.byID[banned.ID].Banned = true

	v := NewCredentialVerifier(newTxDB(t), &fakeRepoManager{u: f.repo}, f.hasher)
	ctx := context.Background()

	t.Run("match returns stored roles", func(t *testing.T) {
		u, err := v.Verify(ctx, "alice", "wonderland")
		require.NoError(t, err)
		assert.Equal(t, stored.ID, u.ID)
		assert.Equal(t, []string{models.RoleAdmin, models.RoleUser}, models.IdentityOf(u).Roles)
	})

	t.Run("login name is normalized", func(t *testing.T) {
		_, err := v.Verify(ctx, " alice ", "wonderland")
		assert.NoError(t, err)
	})

	for _, tc := range []struct{ name, login, password string }{
		{"wrong password", "alice", "nope"},
		{"unknown login", "bob", "wonderland"},
		{"banned", "mallory", "evil"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Verify(ctx, tc.login, tc.password)
			assert.ErrorIs(t, err, common.ErrorAuthenticationFailed)
			assert.False(t, errors.Is(err, common.ErrorNotFound))
		})
	}

	t.Run("store failure", func(t *testing.T) {
		f.repo.err = errors.New("db down")
		defer func() { f.repo.err = nil }()

		_, err := v.Verify(ctx, "alice", "wonderland")
		require.Error(t, err)
		assert.False(t, errors.Is(err, common.ErrorAuthenticationFailed))
	})
}
