package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/campuslist/campuslist/internal/types"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one authenticated realtime connection. It is tagged with the
// resolved user at upgrade time and never re-authenticates.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerEvent
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerEvent, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) User() types.User {
	return c.user
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Println("failed to serialize event:", err)
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.log.Println("error parsing event:", err)
			c.queueEvent(errorEvent("invalid event format"))
			continue
		}

		c.dispatch(&ev)
	}
}

func (c *Client) dispatch(ev *ClientEvent) {
	switch ev.Event {
	case EventJoinConversations:
		c.chatServer.handleJoinConversations(c)
	case EventSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.queueEvent(errorEvent("invalid send_message payload"))
			return
		}
		c.chatServer.handleSendMessage(c, p)
	case EventMarkMessageRead:
		var p MarkReadPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.queueEvent(errorEvent("invalid mark_message_read payload"))
			return
		}
		c.chatServer.handleMarkRead(c, p)
	case EventTypingStart, EventTypingStop:
		var p TypingPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			c.queueEvent(errorEvent("invalid typing payload"))
			return
		}
		c.chatServer.handleTyping(c, p.ConversationId, ev.Event == EventTypingStart)
	default:
		c.queueEvent(errorEvent("unknown event: " + ev.Event))
	}
}

// queueEvent enqueues an event for delivery to this connection, dropping it
// when the send buffer is full. A dropped push is recoverable: the REST fetch
// path always returns full history.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Printf("dropping %s event for user %d, send buffer full", ev.Event, c.user.Id)
		return false
	}

	return true
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.DeRegisterClient(c)
	c.stopClient()
}
