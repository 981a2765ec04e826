package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

func newAuthFixture(t *testing.T) (*AuthHandler, *memStore, *middleware.SessionManager) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	store := newMemStore()
	store.users["user-1"] = database.User{
		ID:           "user-1",
		Email:        "anna@example.com",
		Name:         "Anna",
		PasswordHash: string(hash),
	}

	sm := middleware.NewSessionManager("test-secret", nil)
	return NewAuthHandler(store, sm), store, sm
}

func TestAuthHandler_Login(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		strings.NewReader(`{"email": "anna@example.com", "password": "correct horse"}`))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp LoginResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Success {
		t.Errorf("expected success, got error '%s'", resp.Error)
	}
	if resp.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got '%s'", resp.UserID)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id")
	}

	cookies := recorder.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("expected a session cookie to be set")
	}
	if cookies[0].Name != "photovault_session" {
		t.Errorf("unexpected cookie name '%s'", cookies[0].Name)
	}
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		strings.NewReader(`{"email": "anna@example.com", "password": "wrong"}`))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnauthorized)

	var resp LoginResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Success {
		t.Error("expected login to fail")
	}
	if resp.Error != "invalid credentials" {
		t.Errorf("expected 'invalid credentials', got '%s'", resp.Error)
	}
}

func TestAuthHandler_Login_UnknownEmail(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		strings.NewReader(`{"email": "nobody@example.com", "password": "correct horse"}`))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	// Unknown users get the same response as a wrong password
	assertStatusCode(t, recorder, http.StatusUnauthorized)
}

func TestAuthHandler_Login_MissingFields(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login",
		strings.NewReader(`{"email": "anna@example.com"}`))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "email and password are required")
}

func TestAuthHandler_Login_InvalidJSON(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("POST", "/api/v1/auth/login", strings.NewReader(`not json`))
	recorder := httptest.NewRecorder()

	handler.Login(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestAuthHandler_Logout(t *testing.T) {
	handler, _, sm := newAuthFixture(t)

	session, err := sm.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	cookieRecorder := httptest.NewRecorder()
	sm.SetSessionCookie(cookieRecorder, session)

	req := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	for _, c := range cookieRecorder.Result().Cookies() {
		req.AddCookie(c)
	}
	recorder := httptest.NewRecorder()

	handler.Logout(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if got := sm.GetSession(context.Background(), session.ID); got != nil {
		t.Error("expected session to be deleted")
	}
}

func TestAuthHandler_Status(t *testing.T) {
	handler, _, sm := newAuthFixture(t)

	session, err := sm.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	cookieRecorder := httptest.NewRecorder()
	sm.SetSessionCookie(cookieRecorder, session)

	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	for _, c := range cookieRecorder.Result().Cookies() {
		req.AddCookie(c)
	}
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if !resp.Authenticated {
		t.Error("expected authenticated status")
	}
	if resp.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got '%s'", resp.UserID)
	}
}

func TestAuthHandler_Status_NoSession(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := httptest.NewRequest("GET", "/api/v1/auth/status", nil)
	recorder := httptest.NewRecorder()

	handler.Status(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp StatusResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Authenticated {
		t.Error("expected unauthenticated status")
	}
}

func TestAuthHandler_Me(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := withUser(httptest.NewRequest("GET", "/api/v1/auth/me", nil), "user-1")
	recorder := httptest.NewRecorder()

	handler.Me(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var resp UserResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Email != "anna@example.com" {
		t.Errorf("expected email 'anna@example.com', got '%s'", resp.Email)
	}
	if resp.Name != "Anna" {
		t.Errorf("expected name 'Anna', got '%s'", resp.Name)
	}
}

func TestAuthHandler_Me_UnknownUser(t *testing.T) {
	handler, _, _ := newAuthFixture(t)

	req := withUser(httptest.NewRequest("GET", "/api/v1/auth/me", nil), "ghost")
	recorder := httptest.NewRecorder()

	handler.Me(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "user not found")
}
