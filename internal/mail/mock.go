package mail

import "github.com/stretchr/testify/mock"

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendMessageNotification(recipientEmail, senderName, adTitle string) error {
	args := m.Called(recipientEmail, senderName, adTitle)
	return args.Error(0)
}

func (m *MockNotifier) SendVerificationEmail(recipientEmail, verificationURL string) error {
	args := m.Called(recipientEmail, verificationURL)
	return args.Error(0)
}
