package verification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/newsdesk/testutils"
)

func newCode(email, purpose, code string, createdAt time.Time) *Code {
	return &Code{
		Email:       email,
		Code:        code,
		Purpose:     purpose,
		MaxAttempts: 3,
		CreatedAt:   createdAt,
		ExpiresAt:   createdAt.Add(10 * time.Minute),
		IsActive:    true,
	}
}

func storeContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	t.Run("empty lookups", func(t *testing.T) {
		store := newStore(t)

		latest, err := store.Latest(ctx, "a@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.Nil(t, latest)

		active, err := store.FindActive(ctx, "a@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("replace keeps one active code per pair", func(t *testing.T) {
		store := newStore(t)

		first := newCode("a@example.com", PurposeLogin, "111111", base)
		require.NoError(t, store.Replace(ctx, first))
		other := newCode("a@example.com", PurposeRegister, "222222", base)
		require.NoError(t, store.Replace(ctx, other))
		second := newCode("a@example.com", PurposeLogin, "333333", base.Add(time.Minute))
		require.NoError(t, store.Replace(ctx, second))

		assert.NotZero(t, first.ID)
		assert.NotEqual(t, first.ID, second.ID)

		active, err := store.FindActive(ctx, "a@example.com", PurposeLogin)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "333333", active.Code)

		registerActive, err := store.FindActive(ctx, "a@example.com", PurposeRegister)
		require.NoError(t, err)
		require.NotNil(t, registerActive, "other purposes are untouched")
		assert.Equal(t, "222222", registerActive.Code)
	})

	t.Run("latest ignores state", func(t *testing.T) {
		store := newStore(t)

		code := newCode("b@example.com", PurposeLogin, "123456", base)
		require.NoError(t, store.Replace(ctx, code))
		require.NoError(t, store.Deactivate(ctx, code.ID))

		latest, err := store.Latest(ctx, "b@example.com", PurposeLogin)
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.False(t, latest.IsActive)
		assert.WithinDuration(t, base, latest.CreatedAt, time.Second)

		active, err := store.FindActive(ctx, "b@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.Nil(t, active)
	})

	t.Run("attempts and mark used", func(t *testing.T) {
		store := newStore(t)

		code := newCode("c@example.com", PurposeLogin, "654321", base)
		require.NoError(t, store.Replace(ctx, code))

		attempts, err := store.IncrementAttempts(ctx, code.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)
		attempts, err = store.IncrementAttempts(ctx, code.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, attempts)

		verifiedAt := base.Add(time.Minute)
		require.NoError(t, store.MarkUsed(ctx, code.ID, verifiedAt))

		active, err := store.FindActive(ctx, "c@example.com", PurposeLogin)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.True(t, active.IsUsed)
		assert.Equal(t, 2, active.Attempts)
		require.NotNil(t, active.VerifiedAt)
		assert.WithinDuration(t, verifiedAt, *active.VerifiedAt, time.Second)
	})

	t.Run("concurrent attempts are counted exactly", func(t *testing.T) {
		store := newStore(t)

		code := newCode("d@example.com", PurposeLogin, "000001", base)
		require.NoError(t, store.Replace(ctx, code))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.IncrementAttempts(ctx, code.ID)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		active, err := store.FindActive(ctx, "d@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, 8, active.Attempts)
	})

	t.Run("deactivate expired", func(t *testing.T) {
		store := newStore(t)

		old := newCode("e@example.com", PurposeLogin, "111111", base.Add(-time.Hour))
		require.NoError(t, store.Replace(ctx, old))
		fresh := newCode("f@example.com", PurposeLogin, "222222", base)
		require.NoError(t, store.Replace(ctx, fresh))

		count, err := store.DeactivateExpired(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		count, err = store.DeactivateExpired(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)

		active, err := store.FindActive(ctx, "f@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.NotNil(t, active)
	})
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store { return NewMemoryStore() })

	t.Run("returned codes are copies", func(t *testing.T) {
		store := NewMemoryStore()
		ctx := context.Background()

		require.NoError(t, store.Replace(ctx, newCode("g@example.com", PurposeLogin, "999999", time.Now())))

		found, err := store.FindActive(ctx, "g@example.com", PurposeLogin)
		require.NoError(t, err)
		found.IsActive = false

		again, err := store.FindActive(ctx, "g@example.com", PurposeLogin)
		require.NoError(t, err)
		assert.NotNil(t, again)
		assert.Equal(t, 1, store.Len())
	})
}

func TestGormStore(t *testing.T) {
	storeContract(t, func(t *testing.T) Store {
		return NewGormStore(testutils.SetupTestDB(t, &Code{}))
	})
}
