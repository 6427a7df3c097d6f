package server

import (
	"encoding/json"

	"github.com/campuslist/campuslist/internal/types"
)

// Client-to-server event names.
const (
	EventJoinConversations = "join_conversations"
	EventSendMessage       = "send_message"
	EventMarkMessageRead   = "mark_message_read"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
)

// Server-to-client event names.
const (
	EventNewMessage        = "new_message"
	EventMessageRead       = "message_read"
	EventUserTyping        = "user_typing"
	EventUserStoppedTyping = "user_stopped_typing"
	EventError             = "error"
)

// ClientEvent is the frame clients send: a named event with a payload whose
// shape depends on the event.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type SendMessagePayload struct {
	ConversationId string `json:"conversationId"`
	Content        string `json:"content"`
}

type MarkReadPayload struct {
	MessageId string `json:"messageId"`
}

type TypingPayload struct {
	ConversationId string `json:"conversationId"`
}

type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type NewMessageData struct {
	Message        types.Message `json:"message"`
	ConversationId string        `json:"conversationId"`
}

type MessageReadData struct {
	MessageId string `json:"messageId"`
	ReadBy    int    `json:"readBy"`
}

type UserTypingData struct {
	UserId         int    `json:"userId"`
	UserName       string `json:"userName,omitempty"`
	ConversationId string `json:"conversationId"`
}

type ErrorData struct {
	Message string `json:"message"`
}

func newMessageEvent(msg types.Message, conversationId string) *ServerEvent {
	return &ServerEvent{
		Event: EventNewMessage,
		Data:  NewMessageData{Message: msg, ConversationId: conversationId},
	}
}

func messageReadEvent(messageId string, readBy int) *ServerEvent {
	return &ServerEvent{
		Event: EventMessageRead,
		Data:  MessageReadData{MessageId: messageId, ReadBy: readBy},
	}
}

func userTypingEvent(userId int, userName, conversationId string) *ServerEvent {
	return &ServerEvent{
		Event: EventUserTyping,
		Data:  UserTypingData{UserId: userId, UserName: userName, ConversationId: conversationId},
	}
}

func userStoppedTypingEvent(userId int, conversationId string) *ServerEvent {
	return &ServerEvent{
		Event: EventUserStoppedTyping,
		Data:  UserTypingData{UserId: userId, ConversationId: conversationId},
	}
}

// errorEvent is only ever queued to the offending connection, never
// broadcast to a room.
func errorEvent(message string) *ServerEvent {
	return &ServerEvent{
		Event: EventError,
		Data:  ErrorData{Message: message},
	}
}
