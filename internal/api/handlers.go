package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/campuslist/campuslist/internal/messaging"
	"github.com/campuslist/campuslist/internal/server"
	"github.com/campuslist/campuslist/internal/types"
	"github.com/gorilla/websocket"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type CreateConversationRequest struct {
	AdId string `json:"adId"`
}

type SendMessageRequest struct {
	ConversationId string `json:"conversationId"`
	AdId           string `json:"adId"`
	Content        string `json:"content"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type MessagesResponse struct {
	Messages   []types.Message `json:"messages"`
	Pagination Pagination      `json:"pagination"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// messagingError translates the messaging package's sentinel errors into
// response codes. Anything unrecognized is an internal error.
func messagingError(err error) *ApiError {
	switch {
	case errors.Is(err, messaging.ErrContentRequired),
		errors.Is(err, messaging.ErrContentTooLong),
		errors.Is(err, messaging.ErrConversationRequired):
		return NewBadRequestError(err.Error())
	case errors.Is(err, messaging.ErrConversationNotFound),
		errors.Is(err, messaging.ErrAdNotFound),
		errors.Is(err, messaging.ErrMessageNotFound):
		return NewNotFoundError(err.Error())
	case errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, messaging.ErrSelfConversation),
		errors.Is(err, messaging.ErrSelfRead):
		return NewForbiddenError(err.Error())
	default:
		return NewInternalServerError(err)
	}
}

func (s *App) createConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.AdId == "" {
		errResp := NewBadRequestError("ad id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	starter, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	ad, err := s.db.GetAdByExternalId(req.AdId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError(messaging.ErrAdNotFound.Error())
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv, created, err := s.svc.StartConversation(types.User{
		Id:        starter.Id,
		FirstName: starter.FirstName,
		LastName:  starter.LastName,
	}, req.AdId, ad.OwnerId)
	if err != nil {
		errResp := messagingError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	statusCode := http.StatusOK
	if created {
		// Any live connections of either participant start receiving this
		// conversation's events immediately.
		s.cs.JoinConversation(conv.ExternalId, conv.Starter.Id, conv.Recipient.Id)
		statusCode = http.StatusCreated
	}

	s.writeJson(w, statusCode, conv)
}

func (s *App) listConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbConvs, err := s.db.ListConversations(userId)
	if err != nil {
		s.log.Println("list conversations:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	convs := make([]types.Conversation, 0, len(dbConvs))
	for _, c := range dbConvs {
		convs = append(convs, messaging.ConversationFromDB(c))
	}

	s.writeJson(w, http.StatusOK, convs)
}

func (s *App) getConversation(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbConv, err := s.db.GetConversationByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError(messaging.ErrConversationNotFound.Error())
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	conv := messaging.ConversationFromDB(dbConv)
	if !conv.HasParticipant(userId) {
		errResp := NewForbiddenError(messaging.ErrNotParticipant.Error())
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, conv)
}

func (s *App) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbConv, err := s.db.GetConversationByExternalId(r.PathValue("id"))
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError(messaging.ErrConversationNotFound.Error())
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if dbConv.StarterId != userId && dbConv.RecipientId != userId {
		errResp := NewForbiddenError(messaging.ErrNotParticipant.Error())
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page, limit := 1, 50
	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			errResp := NewBadRequestError("page must be a positive integer")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			errResp := NewBadRequestError("limit must be a positive integer")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	dbMessages, total, err := s.db.GetMessages(dbConv.Id, page, limit)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	// Opening a conversation marks the other party's messages read. Failure
	// here never blocks the fetch.
	if err := s.db.MarkConversationRead(dbConv.Id, userId); err != nil {
		s.log.Println("mark conversation read:", err)
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, m := range dbMessages {
		msg := messaging.MessageFromDB(m)
		msg.ConversationId = dbConv.ExternalId
		messages = append(messages, msg)
	}

	totalPages := (total + limit - 1) / limit

	s.writeJson(w, http.StatusOK, MessagesResponse{
		Messages: messages,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

func (s *App) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sender, err := s.db.GetAccountById(userId)
	if err != nil {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	res, err := s.svc.Send(types.User{
		Id:        sender.Id,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
	}, req.ConversationId, req.AdId, req.Content)
	if err != nil {
		errResp := messagingError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if res.Created {
		s.cs.JoinConversation(res.Conversation.ExternalId, res.Conversation.Starter.Id, res.Conversation.Recipient.Id)
	}

	s.writeJson(w, http.StatusCreated, res.Message)
}

func (s *App) unreadCount(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.CountUnread(userId)
	if err != nil {
		s.log.Println("count unread:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, UnreadCountResponse{Count: count})
}

// serveWs authenticates and upgrades a realtime connection. The token is
// checked before the upgrade so rejected clients get a plain HTTP error
// instead of a closed socket.
func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	tokenString := bearerToken(r)
	if tokenString == "" {
		errResp := NewUnauthorizedError("authentication token is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	userId, err := s.extractUserIdFromToken(tokenString)
	if err != nil {
		s.log.Printf("websocket auth: %v", err)
		errResp := NewUnauthorizedError("invalid authentication token")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewUnauthorizedError("invalid authentication token")
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !user.IsVerified {
		errResp := NewForbiddenError("email address is not verified")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients send no origin header
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(types.User{
		Id:        user.Id,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
