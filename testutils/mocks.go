package testutils

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendVerificationCode(ctx context.Context, email, code, purpose string) error {
	args := m.Called(ctx, email, code, purpose)
	return args.Error(0)
}

// LastCode returns the code passed to the most recent call.
func (m *MockSender) LastCode() string {
	for i := len(m.Calls) - 1; i >= 0; i-- {
		call := m.Calls[i]
		if call.Method == "SendVerificationCode" {
			return call.Arguments.String(2)
		}
	}
	return ""
}
