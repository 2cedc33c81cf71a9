package verification

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/newsdesk/apperror"
	"github.com/tech-arch1tect/newsdesk/config"
	"github.com/tech-arch1tect/newsdesk/testutils"
)

const testEmail = "reporter@example.com"

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) VerificationEvent(purpose, outcome string) {
	o.events = append(o.events, purpose+":"+outcome)
}

func testVerificationConfig() config.VerificationConfig {
	return testutils.GetTestConfig().Verification
}

func newTestService(t *testing.T, store Store) (*Service, *testutils.MockSender, *clock) {
	t.Helper()

	sender := &testutils.MockSender{}
	sender.On("SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	c := &clock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	service := NewService(store, sender, testVerificationConfig(), nil)
	service.now = c.Now
	return service, sender, c
}

func sendCode(t *testing.T, service *Service, sender *testutils.MockSender, purpose string) string {
	t.Helper()

	result, err := service.SendCode(context.Background(), SendInput{Email: testEmail, Purpose: purpose})
	require.NoError(t, err)
	require.True(t, result.Success)
	return sender.LastCode()
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestService_SendCode(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a six digit code", func(t *testing.T) {
		service, sender, _ := newTestService(t, NewMemoryStore())

		result, err := service.SendCode(ctx, SendInput{
			Email:     "  Reporter@Example.com ",
			Purpose:   PurposeLogin,
			IP:        "203.0.113.1",
			UserAgent: "Mozilla/5.0",
		})
		require.NoError(t, err)

		assert.True(t, result.Success)
		assert.Equal(t, 600, result.ExpiresIn)
		assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), sender.LastCode())
		sender.AssertCalled(t, "SendVerificationCode", mock.Anything, testEmail, sender.LastCode(), PurposeLogin)
	})

	t.Run("cooldown", func(t *testing.T) {
		service, _, c := newTestService(t, NewMemoryStore())

		_, err := service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposeLogin})
		require.NoError(t, err)

		c.Advance(18 * time.Second)
		_, err = service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposeLogin})

		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindTooManyRequests, appErr.Kind)
		assert.Equal(t, 42, appErr.RetryAfter)
		assert.Contains(t, appErr.Message, "42 seconds")

		_, err = service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposeRegister})
		assert.NoError(t, err, "cooldown is per purpose")

		c.Advance(time.Minute)
		_, err = service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposeLogin})
		assert.NoError(t, err)
	})

	t.Run("new code supersedes the old one", func(t *testing.T) {
		store := NewMemoryStore()
		service, sender, c := newTestService(t, store)

		first := sendCode(t, service, sender, PurposeLogin)
		c.Advance(2 * time.Minute)
		second := sendCode(t, service, sender, PurposeLogin)

		active, err := store.FindActive(ctx, testEmail, PurposeLogin)
		require.NoError(t, err)
		assert.Equal(t, second, active.Code)
		assert.Equal(t, 2, store.Len())

		if first != second {
			_, err = service.VerifyCode(ctx, testEmail, first, PurposeLogin)
			assert.True(t, apperror.Is(err, apperror.KindBadRequest))
		}
	})

	t.Run("validation", func(t *testing.T) {
		service, _, _ := newTestService(t, NewMemoryStore())

		_, err := service.SendCode(ctx, SendInput{Email: testEmail, Purpose: "newsletter"})
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))

		_, err = service.SendCode(ctx, SendInput{Email: " ", Purpose: PurposeLogin})
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	})

	t.Run("sender failure", func(t *testing.T) {
		sender := &testutils.MockSender{}
		sender.On("SendVerificationCode", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("smtp: connection refused"))
		service := NewService(NewMemoryStore(), sender, testVerificationConfig(), nil)

		_, err := service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposeLogin})
		assert.True(t, apperror.Is(err, apperror.KindInternal))
	})
}

func TestService_VerifyCode(t *testing.T) {
	ctx := context.Background()

	t.Run("correct code", func(t *testing.T) {
		observer := &recordingObserver{}
		service, sender, _ := newTestService(t, NewMemoryStore())
		service.SetObserver(observer)
		code := sendCode(t, service, sender, PurposeRegister)

		result, err := service.VerifyCode(ctx, testEmail, code, PurposeRegister)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.NotZero(t, result.VerificationID)

		_, err = service.VerifyCode(ctx, testEmail, code, PurposeRegister)
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindBadRequest, appErr.Kind)
		assert.Contains(t, appErr.Message, "already been used")

		assert.Equal(t, []string{"register:sent", "register:verified", "register:already_used"}, observer.events)
	})

	t.Run("purpose must match", func(t *testing.T) {
		service, sender, _ := newTestService(t, NewMemoryStore())
		code := sendCode(t, service, sender, PurposeLogin)

		_, err := service.VerifyCode(ctx, testEmail, code, PurposePasswordReset)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("no code", func(t *testing.T) {
		service, _, _ := newTestService(t, NewMemoryStore())

		_, err := service.VerifyCode(ctx, testEmail, "123456", PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))

		_, err = service.VerifyCode(ctx, testEmail, "123456", "bogus")
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))

		_, err = service.VerifyCode(ctx, testEmail, "", PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	})

	t.Run("expired code is deactivated", func(t *testing.T) {
		store := NewMemoryStore()
		service, sender, c := newTestService(t, store)
		code := sendCode(t, service, sender, PurposeLogin)

		c.Advance(10 * time.Minute)

		_, err := service.VerifyCode(ctx, testEmail, code, PurposeLogin)
		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.KindBadRequest, appErr.Kind)
		assert.Contains(t, appErr.Message, "expired")

		_, err = service.VerifyCode(ctx, testEmail, code, PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})

	t.Run("attempt ceiling", func(t *testing.T) {
		service, sender, _ := newTestService(t, NewMemoryStore())
		code := sendCode(t, service, sender, PurposeLogin)
		wrong := wrongCode(code)

		_, err := service.VerifyCode(ctx, testEmail, wrong, PurposeLogin)
		appErr, _ := apperror.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperror.KindBadRequest, appErr.Kind)
		assert.Equal(t, "Invalid verification code. 2 attempts remaining", appErr.Message)

		_, err = service.VerifyCode(ctx, testEmail, wrong, PurposeLogin)
		appErr, _ = apperror.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, "Invalid verification code. 1 attempts remaining", appErr.Message)

		_, err = service.VerifyCode(ctx, testEmail, wrong, PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindTooManyRequests), "third wrong attempt exhausts the code")

		_, err = service.VerifyCode(ctx, testEmail, code, PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindNotFound), "even the correct code is gone")
	})

	t.Run("correct code on the last attempt", func(t *testing.T) {
		service, sender, _ := newTestService(t, NewMemoryStore())
		code := sendCode(t, service, sender, PurposeLogin)
		wrong := wrongCode(code)

		for i := 0; i < 2; i++ {
			_, err := service.VerifyCode(ctx, testEmail, wrong, PurposeLogin)
			require.True(t, apperror.Is(err, apperror.KindBadRequest))
		}

		result, err := service.VerifyCode(ctx, testEmail, code, PurposeLogin)
		require.NoError(t, err)
		assert.True(t, result.Valid)
	})

	t.Run("code already at ceiling", func(t *testing.T) {
		store := NewMemoryStore()
		service, _, c := newTestService(t, store)

		record := newCode(testEmail, PurposeLogin, "424242", c.Now())
		record.Attempts = 3
		require.NoError(t, store.Replace(ctx, record))

		_, err := service.VerifyCode(ctx, testEmail, "424242", PurposeLogin)
		assert.True(t, apperror.Is(err, apperror.KindTooManyRequests))

		active, err := store.FindActive(ctx, testEmail, PurposeLogin)
		require.NoError(t, err)
		assert.Nil(t, active)
	})
}

func TestService_DatabaseStore(t *testing.T) {
	ctx := context.Background()
	store := NewGormStore(testutils.SetupTestDB(t, &Code{}))
	service, sender, c := newTestService(t, store)

	code := sendCode(t, service, sender, PurposePasswordReset)

	_, err := service.VerifyCode(ctx, testEmail, wrongCode(code), PurposePasswordReset)
	require.True(t, apperror.Is(err, apperror.KindBadRequest))

	result, err := service.VerifyCode(ctx, testEmail, code, PurposePasswordReset)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	c.Advance(30 * time.Second)
	_, err = service.SendCode(ctx, SendInput{Email: testEmail, Purpose: PurposePasswordReset})
	assert.True(t, apperror.Is(err, apperror.KindTooManyRequests))
}

func TestService_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service, sender, c := newTestService(t, store)

	sendCode(t, service, sender, PurposeLogin)
	c.Advance(11 * time.Minute)

	count, err := service.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	active, err := store.FindActive(ctx, testEmail, PurposeLogin)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.Regexp(t, `^\d{6}$`, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 150)
}

func TestNewStore(t *testing.T) {
	cfg := testutils.GetTestConfig()

	cfg.Verification.Store = "memory"
	store, err := NewStore(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	cfg.Verification.Store = "database"
	_, err = NewStore(cfg, nil)
	assert.Error(t, err)

	store, err = NewStore(cfg, testutils.SetupTestDB(t, &Code{}))
	require.NoError(t, err)
	assert.IsType(t, &GormStore{}, store)

	cfg.Verification.Store = "redis"
	_, err = NewStore(cfg, nil)
	assert.Error(t, err)
}

func TestDeviceSummary(t *testing.T) {
	assert.Equal(t, "Unknown device", DeviceSummary(""))

	summary := DeviceSummary("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	assert.Contains(t, summary, "Chrome")
	assert.Contains(t, summary, "Windows")
	assert.Contains(t, summary, "(Desktop)")
}

func TestLogSender(t *testing.T) {
	sender := NewLogSender(nil)
	assert.NoError(t, sender.SendVerificationCode(context.Background(), testEmail, "123456", PurposeLogin))
}
