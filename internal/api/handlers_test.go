package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/mail"
	"github.com/campuslist/campuslist/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testConversation = database.Conversation{
	Id:          7,
	ExternalId:  "conv-1",
	AdId:        3,
	StarterId:   1,
	RecipientId: 2,
	Status:      types.ConversationActive,
	Ad:          database.Ad{ExternalId: "ad-1", Title: "Used bike", OwnerId: 2},
	Starter:     database.User{Id: 1, FirstName: "Alice", LastName: "Chen"},
	Recipient:   database.User{Id: 2, FirstName: "Bob", LastName: "Diaz", Email: "bob@university.edu"},
}

func authedRequest(method, target string, body []byte, userId int) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(WithUserId(req.Context(), userId))
}

func TestCreateConversation(t *testing.T) {
	t.Run("creates a conversation with the ad owner", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, FirstName: "Alice", LastName: "Chen"}, nil).Once()
		db.On("GetAdByExternalId", "ad-1").Return(database.Ad{Id: 3, ExternalId: "ad-1", OwnerId: 2}, nil).Twice()
		db.On("GetConversationByParticipants", 3, 1, 2).Return(database.Conversation{}, sql.ErrNoRows).Once()
		db.On("CreateConversation", mock.Anything).Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(CreateConversationRequest{AdId: "ad-1"})
		rr := httptest.NewRecorder()
		app.createConversation(rr, authedRequest(http.MethodPost, "/api/conversations", body, 1))

		assert.Equal(t, http.StatusCreated, rr.Code, "expected status code to be 201")

		var conv types.Conversation
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&conv))
		assert.Equal(t, "conv-1", conv.ExternalId)
	})

	t.Run("returns the existing conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, FirstName: "Alice", LastName: "Chen"}, nil).Once()
		db.On("GetAdByExternalId", "ad-1").Return(database.Ad{Id: 3, ExternalId: "ad-1", OwnerId: 2}, nil).Twice()
		db.On("GetConversationByParticipants", 3, 1, 2).Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(CreateConversationRequest{AdId: "ad-1"})
		rr := httptest.NewRecorder()
		app.createConversation(rr, authedRequest(http.MethodPost, "/api/conversations", body, 1))

		assert.Equal(t, http.StatusOK, rr.Code, "expected status code to be 200 for an existing conversation")
	})

	t.Run("requires an ad id", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		body, _ := json.Marshal(CreateConversationRequest{})
		rr := httptest.NewRecorder()
		app.createConversation(rr, authedRequest(http.MethodPost, "/api/conversations", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown ad is not found", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1}, nil).Once()
		db.On("GetAdByExternalId", "missing").Return(database.Ad{}, sql.ErrNoRows).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(CreateConversationRequest{AdId: "missing"})
		rr := httptest.NewRecorder()
		app.createConversation(rr, authedRequest(http.MethodPost, "/api/conversations", body, 1))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("messaging your own ad is forbidden", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 2).Return(database.User{Id: 2}, nil).Once()
		db.On("GetAdByExternalId", "ad-1").Return(database.Ad{Id: 3, ExternalId: "ad-1", OwnerId: 2}, nil).Twice()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(CreateConversationRequest{AdId: "ad-1"})
		rr := httptest.NewRecorder()
		app.createConversation(rr, authedRequest(http.MethodPost, "/api/conversations", body, 2))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestListConversations(t *testing.T) {
	t.Run("lists the user's conversations", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("ListConversations", 1).Return([]database.Conversation{testConversation}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		app.listConversations(rr, authedRequest(http.MethodGet, "/api/conversations", nil, 1))

		assert.Equal(t, http.StatusOK, rr.Code)

		var convs []types.Conversation
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&convs))
		assert.Len(t, convs, 1)
		assert.Equal(t, "conv-1", convs[0].ExternalId)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("ListConversations", 1).Return([]database.Conversation{}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		app.listConversations(rr, authedRequest(http.MethodGet, "/api/conversations", nil, 1))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()), "expected an empty json array, not null")
	})
}

func TestGetConversation(t *testing.T) {
	t.Run("returns the conversation to a participant", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1", nil, 1)
		req.SetPathValue("id", "conv-1")
		app.getConversation(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-participant is forbidden", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1", nil, 99)
		req.SetPathValue("id", "conv-1")
		app.getConversation(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("unknown conversation is not found", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "missing").Return(database.Conversation{}, sql.ErrNoRows).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/missing", nil, 1)
		req.SetPathValue("id", "missing")
		app.getConversation(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestGetMessages(t *testing.T) {
	t.Run("returns messages and marks the conversation read", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()
		db.On("GetMessages", 7, 1, 50).Return([]database.Message{
			{Id: 11, ExternalId: "msg-1", ConversationId: 7, SenderId: 2, Content: "hello", CreatedAt: time.Now()},
		}, 1, nil).Once()
		db.On("MarkConversationRead", 7, 1).Return(nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1/messages", nil, 1)
		req.SetPathValue("id", "conv-1")
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp MessagesResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Len(t, resp.Messages, 1)
		assert.Equal(t, "msg-1", resp.Messages[0].ExternalId)
		assert.Equal(t, "conv-1", resp.Messages[0].ConversationId)
		assert.Equal(t, 1, resp.Pagination.Page)
		assert.Equal(t, 50, resp.Pagination.Limit)
		assert.Equal(t, 1, resp.Pagination.Total)
		assert.Equal(t, 1, resp.Pagination.TotalPages)
	})

	t.Run("honors page and limit parameters", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()
		db.On("GetMessages", 7, 2, 10).Return([]database.Message{}, 25, nil).Once()
		db.On("MarkConversationRead", 7, 1).Return(nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1/messages?page=2&limit=10", nil, 1)
		req.SetPathValue("id", "conv-1")
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp MessagesResponse
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, 3, resp.Pagination.TotalPages, "expected 25 messages at 10 per page to span 3 pages")
	})

	t.Run("rejects an invalid page", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1/messages?page=0", nil, 1)
		req.SetPathValue("id", "conv-1")
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("non-participant is forbidden", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := authedRequest(http.MethodGet, "/api/conversations/conv-1/messages", nil, 99)
		req.SetPathValue("id", "conv-1")
		app.getMessages(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		db.AssertNotCalled(t, "MarkConversationRead", mock.Anything, mock.Anything)
	})
}

func TestSendMessage(t *testing.T) {
	t.Run("persists a message to an existing conversation", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, FirstName: "Alice", LastName: "Chen"}, nil).Once()
		db.On("GetConversationByExternalId", "conv-1").Return(testConversation, nil).Once()
		db.On("CreateMessage", mock.Anything).Return(database.Message{
			Id: 11, ExternalId: "msg-1", ConversationId: 7, SenderId: 1, Content: "hello",
		}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(SendMessageRequest{ConversationId: "conv-1", Content: "hello"})
		rr := httptest.NewRecorder()
		app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages/send", body, 1))

		assert.Equal(t, http.StatusCreated, rr.Code)

		var msg types.Message
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&msg))
		assert.Equal(t, "msg-1", msg.ExternalId)
		assert.Equal(t, "conv-1", msg.ConversationId)
	})

	t.Run("rejects empty content", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(SendMessageRequest{ConversationId: "conv-1", Content: "  "})
		rr := httptest.NewRecorder()
		app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages/send", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("requires a target", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		body, _ := json.Marshal(SendMessageRequest{Content: "hello"})
		rr := httptest.NewRecorder()
		app.sendMessage(rr, authedRequest(http.MethodPost, "/api/messages/send", body, 1))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUnreadCount(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)
	db.On("CountUnread", 1).Return(3, nil).Once()

	app := newTestApp(t, db, &mail.MockNotifier{})

	rr := httptest.NewRecorder()
	app.unreadCount(rr, authedRequest(http.MethodGet, "/api/messages/unread/count", nil, 1))

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp UnreadCountResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Count)
}

func TestServeWs(t *testing.T) {
	t.Run("rejects a request without a token", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		app.serveWs(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects an unverified account", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)
		db.On("GetAccountById", 1).Return(database.User{Id: 1, IsVerified: false}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		token, err := app.createJwtForSession(1, time.Hour)
		assert.NoError(t, err)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		app.serveWs(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("upgrades an authenticated verified user", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetAccountById", 1).Return(database.User{
			Id:         1,
			FirstName:  "Alice",
			LastName:   "Chen",
			Email:      "alice@university.edu",
			IsVerified: true,
		}, nil).Once()

		app := newTestApp(t, db, &mail.MockNotifier{})

		token, err := app.createJwtForSession(1, time.Hour)
		assert.NoError(t, err)

		srv := httptest.NewServer(http.HandlerFunc(app.serveWs))
		defer srv.Close()

		wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		assert.NoError(t, err, "expected the websocket upgrade to succeed")
		if resp != nil {
			assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
		}
		if conn != nil {
			conn.Close()
		}
	})
}
