package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campuslist/campuslist/internal/database"
	"github.com/campuslist/campuslist/internal/mail"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddleware(t *testing.T) {
	t.Run("valid bearer token reaches the handler", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		token, err := app.createJwtForSession(42, time.Hour)
		assert.NoError(t, err)

		var gotUserId int
		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			gotUserId, _ = UserId(r.Context())
			w.WriteHeader(http.StatusOK)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 42, gotUserId, "expected the user id from the token")
	})

	t.Run("token query parameter is accepted", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		token, err := app.createJwtForSession(42, time.Hour)
		assert.NoError(t, err)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		handler(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		token, err := app.createJwtForSession(42, -time.Hour)
		assert.NoError(t, err)

		handler := app.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
			t.Error("handler should not be called")
		})

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		handler(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestErrorHandler(t *testing.T) {
	t.Run("recovers from a panicking handler", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("passes through without a panic", func(t *testing.T) {
		app := newTestApp(t, &database.MockRepository{}, &mail.MockNotifier{})

		handler := app.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
