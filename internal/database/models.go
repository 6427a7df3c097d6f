package database

import "time"

type User struct {
	Id                int
	FirstName         string
	LastName          string
	Email             string
	PasswordHash      string
	IsVerified        bool
	VerificationToken string
	Role              string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Ad struct {
	Id         int
	ExternalId string
	Title      string
	OwnerId    int
	CreatedAt  time.Time
}

type Conversation struct {
	Id              int
	ExternalId      string
	AdId            int
	StarterId       int
	RecipientId     int
	Status          string
	LastMessageTime time.Time
	CreatedAt       time.Time
	Ad              Ad
	Starter         User
	Recipient       User
	// LastMessage is populated only by ListConversations.
	LastMessage *Message
}

type Message struct {
	Id             int
	ExternalId     string
	ConversationId int
	SenderId       int
	Content        string
	IsRead         bool
	CreatedAt      time.Time
	Sender         User
	// Conversation carries ids only, populated by GetMessageByExternalId.
	Conversation Conversation
}

type CreateAccountParams struct {
	FirstName         string
	LastName          string
	Email             string
	PasswordHash      string
	VerificationToken string
}

type CreateConversationParams struct {
	ExternalId  string
	AdId        int
	StarterId   int
	RecipientId int
}

type CreateMessageParams struct {
	ExternalId     string
	ConversationId int
	SenderId       int
	Content        string
}
