package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) VerifyAccount(token string) (User, error) {
	args := m.Called(token)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAdByExternalId(externalId string) (Ad, error) {
	args := m.Called(externalId)
	return args.Get(0).(Ad), args.Error(1)
}
func (m *MockRepository) GetConversationByExternalId(externalId string) (Conversation, error) {
	args := m.Called(externalId)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) GetConversationByParticipants(adId, userA, userB int) (Conversation, error) {
	args := m.Called(adId, userA, userB)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) CreateConversation(params CreateConversationParams) (Conversation, error) {
	args := m.Called(params)
	return args.Get(0).(Conversation), args.Error(1)
}
func (m *MockRepository) ListConversations(accountId int) ([]Conversation, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Conversation), args.Error(1)
}
func (m *MockRepository) ListConversationIds(accountId int) ([]string, error) {
	args := m.Called(accountId)
	return args.Get(0).([]string), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessageByExternalId(externalId string) (Message, error) {
	args := m.Called(externalId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) MarkMessageRead(messageId int) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockRepository) MarkConversationRead(conversationId, readerId int) error {
	args := m.Called(conversationId, readerId)
	return args.Error(0)
}
func (m *MockRepository) GetMessages(conversationId, page, limit int) ([]Message, int, error) {
	args := m.Called(conversationId, page, limit)
	return args.Get(0).([]Message), args.Int(1), args.Error(2)
}
func (m *MockRepository) CountUnread(accountId int) (int, error) {
	args := m.Called(accountId)
	return args.Int(0), args.Error(1)
}
