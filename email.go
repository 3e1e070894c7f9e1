package authcore

import (
	"context"
	"sync"
)

// EmailClient delivers the 2FA code to the account owner. Transport is the
// host's concern; the engine only formats the message.
type EmailClient interface {
	SendEmail(ctx context.Context, recipient, subject, content string) error
}

// EmailMessage is one message captured by MockEmailClient.
type EmailMessage struct {
	Recipient string
	Subject   string
	Content   string
}

// MockEmailClient records every message in memory. Set Err to make sends fail.
type MockEmailClient struct {
	mu       sync.Mutex
	messages []EmailMessage
	Err      error
}

// NewMockEmailClient returns an empty recorder.
func NewMockEmailClient() *MockEmailClient {
	return &MockEmailClient{}
}

func (m *MockEmailClient) SendEmail(_ context.Context, recipient, subject, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.messages = append(m.messages, EmailMessage{Recipient: recipient, Subject: subject, Content: content})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockEmailClient) Messages() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Last returns the most recent message sent to recipient.
func (m *MockEmailClient) Last(recipient string) (EmailMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Recipient == recipient {
			return m.messages[i], true
		}
	}
	return EmailMessage{}, false
}

const twoFactorSubject = "Your sign-in code"

func twoFactorContent(code string) string {
	return "Your one-time sign-in code is " + code + ". It expires in a few minutes. If you did not try to sign in, change your password."
}
