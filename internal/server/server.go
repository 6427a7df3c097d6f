package server

import (
	"errors"
	"log"
	"sync"

	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/mail"
	"github.com/campuslist/campuslist/internal/messaging"
	"github.com/campuslist/campuslist/internal/stats"
)

// clientErrors are surfaced verbatim to the offending connection; anything
// else is logged and reported as a generic failure.
var clientErrors = []error{
	messaging.ErrContentRequired,
	messaging.ErrContentTooLong,
	messaging.ErrConversationRequired,
	messaging.ErrConversationNotFound,
	messaging.ErrAdNotFound,
	messaging.ErrNotParticipant,
	messaging.ErrSelfConversation,
	messaging.ErrMessageNotFound,
	messaging.ErrSelfRead,
}

type ChatServer struct {
	log      *log.Logger
	db       database.Repository
	svc      *messaging.Service
	registry ConnectionRegistry
	notifier mail.Notifier
	stats    stats.StatsProvider

	clientsLock sync.Mutex
	clients     map[*Client]struct{}

	// rooms maps a conversation external id to the connections subscribed to
	// it; clientRooms is the reverse index used on disconnect.
	roomsLock   sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
}

func NewChatServer(logger *log.Logger, db database.Repository, svc *messaging.Service,
	registry ConnectionRegistry, notifier mail.Notifier, su stats.StatsProvider) (*ChatServer, error) {
	cs := &ChatServer{
		log:         logger,
		db:          db,
		svc:         svc,
		registry:    registry,
		notifier:    notifier,
		stats:       su,
		clients:     make(map[*Client]struct{}),
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
	}

	su.RegisterMetric("NumActiveClients")
	su.RegisterMetric("NumActiveRooms")
	su.RegisterMetric("MessagesSent")
	su.RegisterMetric("NotificationsSent")

	return cs, nil
}

// RegisterClient records an authenticated connection. Registration is
// last-connect-wins per user: an older connection for the same user keeps its
// room subscriptions but no longer receives direct deliveries.
func (cs *ChatServer) RegisterClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()

	cs.registry.Register(c.user.Id, c)
	cs.stats.Incr("NumActiveClients")
	cs.log.Printf("user %d connected", c.user.Id)
}

func (cs *ChatServer) DeRegisterClient(c *Client) {
	cs.clientsLock.Lock()
	_, ok := cs.clients[c]
	delete(cs.clients, c)
	cs.clientsLock.Unlock()
	if !ok {
		return
	}

	cs.registry.Unregister(c)
	cs.leaveAllRooms(c)
	cs.stats.Decr("NumActiveClients")
	cs.log.Printf("user %d disconnected", c.user.Id)
}

// handleJoinConversations subscribes the connection to one room per
// conversation the user participates in. It runs on the client's explicit
// "ready" signal, not on connect, so a client is never pushed to before it
// is prepared to receive.
func (cs *ChatServer) handleJoinConversations(c *Client) {
	ids, err := cs.db.ListConversationIds(c.user.Id)
	if err != nil {
		cs.log.Println("list conversation ids:", err)
		c.queueEvent(errorEvent("failed to join conversations"))
		return
	}

	for _, id := range ids {
		cs.joinRoom(id, c)
	}

	cs.log.Printf("user %d joined %d conversations", c.user.Id, len(ids))
}

// JoinConversation adds the live connections of the given users, if any, to
// the conversation's room. Conversation creation calls this so an already
// connected participant starts receiving messages for the new conversation
// without re-issuing the ready signal.
func (cs *ChatServer) JoinConversation(conversationId string, userIds ...int) {
	for _, userId := range userIds {
		if c, ok := cs.registry.ClientFor(userId); ok {
			cs.joinRoom(conversationId, c)
		}
	}
}

func (cs *ChatServer) joinRoom(conversationId string, c *Client) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	room, ok := cs.rooms[conversationId]
	if !ok {
		room = make(map[*Client]struct{})
		cs.rooms[conversationId] = room
		cs.stats.Incr("NumActiveRooms")
	}
	room[c] = struct{}{}

	if cs.clientRooms[c] == nil {
		cs.clientRooms[c] = make(map[string]struct{})
	}
	cs.clientRooms[c][conversationId] = struct{}{}
}

func (cs *ChatServer) leaveAllRooms(c *Client) {
	cs.roomsLock.Lock()
	defer cs.roomsLock.Unlock()

	for conversationId := range cs.clientRooms[c] {
		room, ok := cs.rooms[conversationId]
		if !ok {
			continue
		}

		delete(room, c)
		if len(room) == 0 {
			delete(cs.rooms, conversationId)
			cs.stats.Decr("NumActiveRooms")
		}
	}
	delete(cs.clientRooms, c)
}

// broadcast queues ev to every connection in the conversation's room except
// skip. Failures to enqueue are logged, never retried: a missed push is
// recoverable via the REST history fetch.
func (cs *ChatServer) broadcast(conversationId string, ev *ServerEvent, skip *Client) {
	cs.roomsLock.RLock()
	defer cs.roomsLock.RUnlock()

	for client := range cs.rooms[conversationId] {
		if client == skip {
			continue
		}

		client.queueEvent(ev)
	}
}

// handleSendMessage validates and persists a message, fans it out to the
// conversation's room (the sender included; clients de-dup by message id)
// and falls back to an email notification when the other participant has no
// live connection.
func (cs *ChatServer) handleSendMessage(c *Client, p SendMessagePayload) {
	res, err := cs.svc.Send(c.user, p.ConversationId, "", p.Content)
	if err != nil {
		c.queueEvent(errorEvent(sendErrorMessage(err)))
		if !isClientError(err) {
			cs.log.Println("send message:", err)
		}
		return
	}

	cs.broadcast(res.Conversation.ExternalId, newMessageEvent(res.Message, res.Conversation.ExternalId), nil)
	cs.stats.Incr("MessagesSent")

	other := res.Conversation.OtherParticipant(c.user.Id)
	if _, ok := cs.registry.ClientFor(other.Id); !ok {
		// best effort, must never fail or delay the committed message
		go cs.notifyOffline(other.Email, c.user.DisplayName(), res.Conversation.Ad.Title)
	}
}

func (cs *ChatServer) notifyOffline(recipientEmail, senderName, adTitle string) {
	if err := cs.notifier.SendMessageNotification(recipientEmail, senderName, adTitle); err != nil {
		cs.log.Println("message notification:", err)
		return
	}

	cs.stats.Incr("NotificationsSent")
}

// handleMarkRead marks a message read and, when the other participant is
// connected, pushes the read receipt directly to that connection. There is
// no offline fallback: read receipts are best-effort UI polish.
func (cs *ChatServer) handleMarkRead(c *Client, p MarkReadPayload) {
	res, err := cs.svc.MarkRead(c.user.Id, p.MessageId)
	if err != nil {
		c.queueEvent(errorEvent(sendErrorMessage(err)))
		if !isClientError(err) {
			cs.log.Println("mark message read:", err)
		}
		return
	}

	if other, ok := cs.registry.ClientFor(res.OtherUserId); ok {
		other.queueEvent(messageReadEvent(res.MessageId, res.ReaderId))
	}
}

// handleTyping relays a typing indicator to the conversation's room,
// excluding the originating connection. Nothing is validated or persisted;
// a buggy client can at worst spam UI noise to its conversation partners.
func (cs *ChatServer) handleTyping(c *Client, conversationId string, started bool) {
	if conversationId == "" {
		return
	}

	var ev *ServerEvent
	if started {
		ev = userTypingEvent(c.user.Id, c.user.DisplayName(), conversationId)
	} else {
		ev = userStoppedTypingEvent(c.user.Id, conversationId)
	}

	cs.broadcast(conversationId, ev, c)
}

// Shutdown stops all client connections. Each connection unwinds through its
// read pump's cleanup, deregistering itself.
func (cs *ChatServer) Shutdown() {
	cs.clientsLock.Lock()
	defer cs.clientsLock.Unlock()

	cs.log.Printf("stopping %d client connections", len(cs.clients))
	for c := range cs.clients {
		c.stopClient()
	}
}

func isClientError(err error) bool {
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			return true
		}
	}
	return false
}

func sendErrorMessage(err error) string {
	if isClientError(err) {
		return err.Error()
	}
	return "operation failed, please try again"
}
