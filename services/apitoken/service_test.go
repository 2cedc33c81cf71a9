package apitoken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/testutils"
)

type stubOwners struct {
	owners map[uint]*Owner
	err    error
}

func (s *stubOwners) LookupOwner(_ context.Context, userID uint) (*Owner, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.owners[userID], nil
}

func newTestService(t *testing.T) (*Service, *stubOwners) {
	t.Helper()

	db := testutils.SetupTestDB(t, &APIToken{})
	owners := &stubOwners{owners: map[uint]*Owner{
		1: {ID: 1, Email: "reporter@example.com", Role: "member", IsActive: true},
		2: {ID: 2, Email: "editor@example.com", Role: "manager", IsActive: true},
		3: {ID: 3, Email: "gone@example.com", Role: "member", IsActive: false},
	}}
	service := NewService(db, testutils.GetTestConfig(), owners, nil)
	t.Cleanup(service.Wait)
	return service, owners
}

func TestIsAPIToken(t *testing.T) {
	assert.True(t, IsAPIToken("nst_abc"))
	assert.False(t, IsAPIToken("eyJhbGciOiJIUzI1NiJ9.x.y"))
	assert.False(t, IsAPIToken(""))
}

func TestService_Create(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, 1, CreateInput{Name: "ci", Description: "deploy bot"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(created.Token, Prefix))
	assert.Len(t, created.Token, len(Prefix)+tokenBytes*2)
	assert.Equal(t, []string{"read"}, created.Record.Scope)
	assert.True(t, created.Record.IsActive)
	assert.Nil(t, created.Record.ExpiresAt)

	t.Run("only the hash is stored", func(t *testing.T) {
		var stored APIToken
		require.NoError(t, service.db.First(&stored, created.Record.ID).Error)

		assert.Equal(t, HashToken(created.Token), stored.TokenHash)
		assert.NotContains(t, stored.TokenHash, created.Token)
		assert.Len(t, stored.TokenHash, 64)
		assert.Equal(t, []string{"read"}, stored.Scope)
	})

	t.Run("duplicate name per user conflicts", func(t *testing.T) {
		_, err := service.Create(ctx, 1, CreateInput{Name: "ci"})
		assert.True(t, apperror.Is(err, apperror.KindConflict))

		_, err = service.Create(ctx, 2, CreateInput{Name: "ci"})
		assert.NoError(t, err, "names are scoped per user")
	})

	t.Run("input validation", func(t *testing.T) {
		_, err := service.Create(ctx, 1, CreateInput{Name: "  "})
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))

		_, err = service.Create(ctx, 1, CreateInput{Name: "root", Scope: []string{"superuser"}})
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	})

	t.Run("explicit scope and expiry", func(t *testing.T) {
		expires := time.Now().Add(24 * time.Hour)
		created, err := service.Create(ctx, 1, CreateInput{Name: "writer", Scope: []string{"read", "write"}, ExpiresAt: &expires})
		require.NoError(t, err)

		assert.Equal(t, []string{"read", "write"}, created.Record.Scope)
		require.NotNil(t, created.Record.ExpiresAt)
	})
}

func TestService_Validate(t *testing.T) {
	service, owners := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, 1, CreateInput{Name: "cli", Scope: []string{"read", "write"}})
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		identity, err := service.Validate(ctx, created.Token, "203.0.113.5")
		require.NoError(t, err)
		require.NotNil(t, identity)

		assert.Equal(t, uint(1), identity.UserID)
		assert.Equal(t, "reporter@example.com", identity.Email)
		assert.Equal(t, "member", identity.Role)
		assert.Equal(t, []string{"read", "write"}, identity.Scope)
		assert.Equal(t, created.Record.ID, identity.TokenID)
	})

	t.Run("last used is tracked", func(t *testing.T) {
		service.Wait()

		var stored APIToken
		require.NoError(t, service.db.First(&stored, created.Record.ID).Error)
		require.NotNil(t, stored.LastUsedAt)
		assert.Equal(t, "203.0.113.5", stored.LastUsedIP)
	})

	t.Run("unknown and non-prefixed tokens", func(t *testing.T) {
		identity, err := service.Validate(ctx, Prefix+"deadbeef", "")
		assert.NoError(t, err)
		assert.Nil(t, identity)

		identity, err = service.Validate(ctx, "not-an-api-token", "")
		assert.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("inactive owner", func(t *testing.T) {
		orphan, err := service.Create(ctx, 3, CreateInput{Name: "orphan"})
		require.NoError(t, err)

		identity, err := service.Validate(ctx, orphan.Token, "")
		assert.NoError(t, err)
		assert.Nil(t, identity)

		deleted, err := service.Create(ctx, 99, CreateInput{Name: "ghost"})
		require.NoError(t, err)
		identity, err = service.Validate(ctx, deleted.Token, "")
		assert.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("owner lookup failure", func(t *testing.T) {
		owners.err = errors.New("connection reset")
		defer func() { owners.err = nil }()

		identity, err := service.Validate(ctx, created.Token, "")
		assert.Nil(t, identity)
		assert.True(t, apperror.Is(err, apperror.KindInternal))
	})

	t.Run("valid until revoked", func(t *testing.T) {
		require.NoError(t, service.Revoke(ctx, 1, created.Record.ID))

		identity, err := service.Validate(ctx, created.Token, "")
		assert.NoError(t, err)
		assert.Nil(t, identity)
	})
}

func TestService_Validate_Expired(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	created, err := service.Create(ctx, 1, CreateInput{Name: "already-expired", ExpiresAt: &past})
	require.NoError(t, err)
	assert.True(t, created.Record.IsActive)

	for i := 0; i < 2; i++ {
		identity, err := service.Validate(ctx, created.Token, "")
		assert.NoError(t, err)
		assert.Nil(t, identity)

		var stored APIToken
		require.NoError(t, service.db.First(&stored, created.Record.ID).Error)
		assert.False(t, stored.IsActive)
	}
}

func TestService_Revoke(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, 1, CreateInput{Name: "revoke-me"})
	require.NoError(t, err)

	t.Run("other user cannot revoke", func(t *testing.T) {
		err := service.Revoke(ctx, 2, created.Record.ID)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("owner revokes", func(t *testing.T) {
		assert.NoError(t, service.Revoke(ctx, 1, created.Record.ID))
	})

	t.Run("second revoke is not found", func(t *testing.T) {
		err := service.Revoke(ctx, 1, created.Record.ID)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

func TestService_List(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second"} {
		_, err := service.Create(ctx, 1, CreateInput{Name: name})
		require.NoError(t, err)
	}
	_, err := service.Create(ctx, 2, CreateInput{Name: "someone-else"})
	require.NoError(t, err)

	tokens, err := service.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "second", tokens[0].Name)
	assert.Equal(t, "first", tokens[1].Name)
}

func TestService_CleanupExpiredTokens(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	future := time.Now().Add(time.Hour)
	expiring, err := service.Create(ctx, 1, CreateInput{Name: "expiring", ExpiresAt: &future})
	require.NoError(t, err)
	_, err = service.Create(ctx, 1, CreateInput{Name: "forever"})
	require.NoError(t, err)
	_, err = service.Create(ctx, 1, CreateInput{Name: "later", ExpiresAt: &future})
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, service.db.Model(&APIToken{}).Where("id = ?", expiring.Record.ID).Update("expires_at", past).Error)

	count, err := service.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = service.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	var active int64
	require.NoError(t, service.db.Model(&APIToken{}).Where("is_active = ?", true).Count(&active).Error)
	assert.Equal(t, int64(2), active)
}
