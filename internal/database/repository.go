package database

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	VerifyAccount(token string) (User, error)
	GetAdByExternalId(externalId string) (Ad, error)
	GetConversationByExternalId(externalId string) (Conversation, error)
	GetConversationByParticipants(adId, userA, userB int) (Conversation, error)
	CreateConversation(params CreateConversationParams) (Conversation, error)
	ListConversations(accountId int) ([]Conversation, error)
	ListConversationIds(accountId int) ([]string, error)
	CreateMessage(params CreateMessageParams) (Message, error)
	GetMessageByExternalId(externalId string) (Message, error)
	MarkMessageRead(messageId int) error
	MarkConversationRead(conversationId, readerId int) error
	GetMessages(conversationId, page, limit int) ([]Message, int, error)
	CountUnread(accountId int) (int, error)
}
