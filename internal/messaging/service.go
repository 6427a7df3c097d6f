// Package messaging holds the send and read-receipt logic shared by the REST
// handlers and the realtime layer, so the two paths cannot drift in
// validation or invariant enforcement.
package messaging

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/campuslist/campuslist/internal/config"
	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/types"
	"github.com/teris-io/shortid"
)

var (
	ErrContentRequired      = errors.New("message content is required")
	ErrContentTooLong       = fmt.Errorf("message content must be at most %d characters", config.MaxMessageLen)
	ErrConversationRequired = errors.New("conversation id or ad id is required")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrAdNotFound           = errors.New("ad not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrSelfConversation     = errors.New("you cannot message your own ad")
	ErrMessageNotFound      = errors.New("message not found")
	ErrSelfRead             = errors.New("you cannot mark your own message as read")
)

type Service struct {
	db  database.Repository
	log *log.Logger
}

func NewService(db database.Repository, logger *log.Logger) *Service {
	return &Service{db: db, log: logger}
}

// SendResult is the outcome of a successful send. Created reports whether the
// send lazily created the conversation, so the caller can sync room
// membership for live connections.
type SendResult struct {
	Message      types.Message
	Conversation types.Conversation
	Created      bool
}

// Send validates, resolves the target conversation (creating it from adId
// when necessary) and persists a message attributed to sender. Exactly one of
// conversationId and adId must be set; conversationId wins when both are.
func (s *Service) Send(sender types.User, conversationId, adId, content string) (SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return SendResult{}, ErrContentRequired
	}
	if utf8.RuneCountInString(content) > config.MaxMessageLen {
		return SendResult{}, ErrContentTooLong
	}

	var (
		conv    database.Conversation
		created bool
		err     error
	)
	switch {
	case conversationId != "":
		conv, err = s.db.GetConversationByExternalId(conversationId)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return SendResult{}, ErrConversationNotFound
			}
			return SendResult{}, fmt.Errorf("get conversation: %w", err)
		}

		if conv.StarterId != sender.Id && conv.RecipientId != sender.Id {
			return SendResult{}, ErrNotParticipant
		}
	case adId != "":
		conv, created, err = s.conversationForAd(sender.Id, adId)
		if err != nil {
			return SendResult{}, err
		}
	default:
		return SendResult{}, ErrConversationRequired
	}

	sid, err := shortid.Generate()
	if err != nil {
		return SendResult{}, fmt.Errorf("generate message id: %w", err)
	}

	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		ExternalId:     sid,
		ConversationId: conv.Id,
		SenderId:       sender.Id,
		Content:        content,
	})
	if err != nil {
		return SendResult{}, fmt.Errorf("create message: %w", err)
	}

	apiMsg := MessageFromDB(msg)
	apiMsg.ConversationId = conv.ExternalId
	apiMsg.Sender = types.User{
		Id:        sender.Id,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}

	return SendResult{
		Message:      apiMsg,
		Conversation: ConversationFromDB(conv),
		Created:      created,
	}, nil
}

// StartConversation implements create-or-get for an ad and a participant
// pair. Both starter/recipient orderings are checked before creating, so at
// most one conversation ever exists per (ad, unordered pair).
func (s *Service) StartConversation(starter types.User, adId string, recipientId int) (types.Conversation, bool, error) {
	ad, err := s.db.GetAdByExternalId(adId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Conversation{}, false, ErrAdNotFound
		}
		return types.Conversation{}, false, fmt.Errorf("get ad: %w", err)
	}

	if ad.OwnerId == starter.Id {
		return types.Conversation{}, false, ErrSelfConversation
	}

	conv, err := s.db.GetConversationByParticipants(ad.Id, starter.Id, recipientId)
	if err == nil {
		return ConversationFromDB(conv), false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Conversation{}, false, fmt.Errorf("get conversation: %w", err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return types.Conversation{}, false, fmt.Errorf("generate conversation id: %w", err)
	}

	conv, err = s.db.CreateConversation(database.CreateConversationParams{
		ExternalId:  sid,
		AdId:        ad.Id,
		StarterId:   starter.Id,
		RecipientId: recipientId,
	})
	if err != nil {
		return types.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}

	return ConversationFromDB(conv), true, nil
}

func (s *Service) conversationForAd(starterId int, adId string) (database.Conversation, bool, error) {
	ad, err := s.db.GetAdByExternalId(adId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.Conversation{}, false, ErrAdNotFound
		}
		return database.Conversation{}, false, fmt.Errorf("get ad: %w", err)
	}

	if ad.OwnerId == starterId {
		return database.Conversation{}, false, ErrSelfConversation
	}

	conv, err := s.db.GetConversationByParticipants(ad.Id, starterId, ad.OwnerId)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return database.Conversation{}, false, fmt.Errorf("get conversation: %w", err)
	}

	sid, err := shortid.Generate()
	if err != nil {
		return database.Conversation{}, false, fmt.Errorf("generate conversation id: %w", err)
	}

	conv, err = s.db.CreateConversation(database.CreateConversationParams{
		ExternalId:  sid,
		AdId:        ad.Id,
		StarterId:   starterId,
		RecipientId: ad.OwnerId,
	})
	if err != nil {
		return database.Conversation{}, false, fmt.Errorf("create conversation: %w", err)
	}

	return conv, true, nil
}

// ReadResult reports a successful read receipt: the message marked read and
// the participant to be told about it.
type ReadResult struct {
	MessageId      string
	ConversationId string
	ReaderId       int
	OtherUserId    int
}

// MarkRead marks a message read on behalf of readerId. The reader must be a
// participant and must not be the message's sender. Marking an already-read
// message again is a no-op success.
func (s *Service) MarkRead(readerId int, messageId string) (ReadResult, error) {
	msg, err := s.db.GetMessageByExternalId(messageId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ReadResult{}, ErrMessageNotFound
		}
		return ReadResult{}, fmt.Errorf("get message: %w", err)
	}

	if msg.Conversation.StarterId != readerId && msg.Conversation.RecipientId != readerId {
		return ReadResult{}, ErrNotParticipant
	}

	if msg.SenderId == readerId {
		return ReadResult{}, ErrSelfRead
	}

	if !msg.IsRead {
		if err := s.db.MarkMessageRead(msg.Id); err != nil {
			return ReadResult{}, fmt.Errorf("mark message read: %w", err)
		}
	}

	otherUserId := msg.Conversation.StarterId
	if otherUserId == readerId {
		otherUserId = msg.Conversation.RecipientId
	}

	return ReadResult{
		MessageId:      msg.ExternalId,
		ConversationId: msg.Conversation.ExternalId,
		ReaderId:       readerId,
		OtherUserId:    otherUserId,
	}, nil
}

func ConversationFromDB(c database.Conversation) types.Conversation {
	conv := types.Conversation{
		Id:         c.Id,
		ExternalId: c.ExternalId,
		Ad: types.Ad{
			Id:         c.AdId,
			ExternalId: c.Ad.ExternalId,
			Title:      c.Ad.Title,
			OwnerId:    c.Ad.OwnerId,
		},
		Starter: types.User{
			Id:        c.StarterId,
			FirstName: c.Starter.FirstName,
			LastName:  c.Starter.LastName,
			Email:     c.Starter.Email,
		},
		Recipient: types.User{
			Id:        c.RecipientId,
			FirstName: c.Recipient.FirstName,
			LastName:  c.Recipient.LastName,
			Email:     c.Recipient.Email,
		},
		Status:          c.Status,
		LastMessageTime: c.LastMessageTime,
		CreatedAt:       c.CreatedAt,
	}

	if c.LastMessage != nil {
		last := MessageFromDB(*c.LastMessage)
		last.ConversationId = c.ExternalId
		conv.LastMessage = &last
	}

	return conv
}

func MessageFromDB(m database.Message) types.Message {
	return types.Message{
		Id:             m.Id,
		ExternalId:     m.ExternalId,
		ConversationId: m.Conversation.ExternalId,
		Sender: types.User{
			Id:        m.SenderId,
			FirstName: m.Sender.FirstName,
			LastName:  m.Sender.LastName,
		},
		Content:   m.Content,
		IsRead:    m.IsRead,
		CreatedAt: m.CreatedAt,
	}
}
