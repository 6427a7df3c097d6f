package types

import (
	"time"
)

// Conversation status values as stored in the database.
const (
	ConversationActive   = "ACTIVE"
	ConversationArchived = "ARCHIVED"
	ConversationBlocked  = "BLOCKED"
)

type User struct {
	Id         int       `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email,omitempty"`
	IsVerified bool      `json:"is_verified,omitempty"`
	Role       string    `json:"role,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

func (u User) DisplayName() string {
	return u.FirstName + " " + u.LastName
}

type Ad struct {
	Id         int    `json:"id"`
	ExternalId string `json:"external_id"`
	Title      string `json:"title"`
	OwnerId    int    `json:"owner_id"`
}

type Conversation struct {
	Id              int       `json:"-"`
	ExternalId      string    `json:"id"`
	Ad              Ad        `json:"ad"`
	Starter         User      `json:"starter"`
	Recipient       User      `json:"recipient"`
	Status          string    `json:"status"`
	LastMessage     *Message  `json:"last_message,omitempty"`
	LastMessageTime time.Time `json:"last_message_time"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
}

// OtherParticipant returns the conversation member that is not userId.
// Conversations are strictly two-party, so there is always exactly one.
func (c Conversation) OtherParticipant(userId int) User {
	if c.Starter.Id == userId {
		return c.Recipient
	}
	return c.Starter
}

func (c Conversation) HasParticipant(userId int) bool {
	return c.Starter.Id == userId || c.Recipient.Id == userId
}

type Message struct {
	Id             int       `json:"-"`
	ExternalId     string    `json:"id"`
	ConversationId string    `json:"conversation_id"`
	Sender         User      `json:"sender"`
	Content        string    `json:"content"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}
