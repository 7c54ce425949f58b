package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

type stubController struct {
	loginFn      func(sid, identifier, password string) (*domain.User, error)
	registerFn   func(sid string, in ports.RegisterInput) (*domain.User, error)
	resolveState domain.AuthState
	logoutSIDs   []string
	retryFn      func(ctx context.Context, sid string, call ports.AuthedCall, maxRetries int) error
}

func (s *stubController) Resolve(context.Context, string) domain.AuthState { return s.resolveState }

func (s *stubController) Login(_ context.Context, sid, identifier, password string) (*domain.User, error) {
	return s.loginFn(sid, identifier, password)
}

func (s *stubController) Register(_ context.Context, sid string, in ports.RegisterInput) (*domain.User, error) {
	return s.registerFn(sid, in)
}

func (s *stubController) Logout(_ context.Context, sid string) {
	s.logoutSIDs = append(s.logoutSIDs, sid)
}

func (s *stubController) IsAuthenticated(context.Context, string) bool { return false }
func (s *stubController) IsAdmin(context.Context, string) bool         { return false }

func (s *stubController) ExecuteWithAuthRetry(ctx context.Context, sid string, call ports.AuthedCall, maxRetries int) error {
	if s.retryFn != nil {
		return s.retryFn(ctx, sid, call, maxRetries)
	}
	return call(ctx, "tok1")
}

type stubExpiryStore struct {
	stubSessionStore
	expired bool
}

func (s *stubExpiryStore) IsExpired(context.Context, string, time.Duration) bool { return s.expired }

// stubSessionStore is an empty ports.SessionStore base for handler tests.
type stubSessionStore struct{}

func (stubSessionStore) SetSession(context.Context, string, string, *domain.User) error { return nil }
func (stubSessionStore) UpdateUser(context.Context, string, *domain.User) error         { return nil }
func (stubSessionStore) Clear(context.Context, string) error                            { return nil }
func (stubSessionStore) Token(context.Context, string) (string, error)                  { return "", nil }
func (stubSessionStore) User(context.Context, string) (*domain.User, error)             { return nil, nil }
func (stubSessionStore) Role(context.Context, string) (string, error)                   { return "", nil }
func (stubSessionStore) LoginTime(context.Context, string) (time.Time, error) {
	return time.Time{}, nil
}
func (stubSessionStore) IsAuthenticated(context.Context, string) bool          { return false }
func (stubSessionStore) IsAdmin(context.Context, string) bool                  { return false }
func (stubSessionStore) IsAuthenticatedAdmin(context.Context, string) bool     { return false }
func (stubSessionStore) IsExpired(context.Context, string, time.Duration) bool { return true }

func testCookie() CookieOptions {
	return CookieOptions{Name: "sid", MaxAge: 24 * time.Hour}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func TestAuthHandler_Login_Success(t *testing.T) {
	e := newEcho()
	stub := &stubController{
		loginFn: func(sid, identifier, password string) (*domain.User, error) {
			if sid == "" {
				t.Fatalf("handler did not mint a session id")
			}
			if identifier != "alice@example.com" || password != "s3cret" {
				t.Fatalf("unexpected credentials: %s/%s", identifier, password)
			}
			return &domain.User{ID: "1", Username: "alice", Role: domain.RoleAdmin}, nil
		},
	}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	body := strings.NewReader(`{"identifier":"alice@example.com","password":"s3cret"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["success"] != true {
		t.Fatalf("success = %v", resp["success"])
	}
	user, ok := resp["user"].(map[string]any)
	if !ok || user["username"] != "alice" {
		t.Fatalf("unexpected user payload: %+v", resp)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "sid" || cookies[0].Value == "" {
		t.Fatalf("session cookie not issued: %+v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatalf("session cookie not HttpOnly")
	}
}

func TestAuthHandler_Login_ReusesExistingSessionID(t *testing.T) {
	e := newEcho()
	stub := &stubController{
		loginFn: func(sid, _, _ string) (*domain.User, error) {
			if sid != "existing" {
				t.Fatalf("sid = %q, want existing", sid)
			}
			return &domain.User{Role: domain.RoleAdmin}, nil
		},
	}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"a","password":"b"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "existing"})
	rec := httptest.NewRecorder()

	if err := h.Login(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
}

func TestAuthHandler_Login_ValidationFailure(t *testing.T) {
	e := newEcho()
	stub := &stubController{loginFn: func(string, string, string) (*domain.User, error) {
		t.Fatalf("controller reached with invalid payload")
		return nil, nil
	}}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"alice@example.com"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Login(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400", err)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	e := newEcho()
	stub := &stubController{loginFn: func(string, string, string) (*domain.User, error) {
		return nil, domain.ErrInvalidCredentials
	}}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"identifier":"bad","password":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	err := h.Login(e.NewContext(req, rec))
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie issued on failed login")
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	e := newEcho()
	stub := &stubController{
		registerFn: func(sid string, in ports.RegisterInput) (*domain.User, error) {
			if in.Username != "bob" || in.Email != "bob@example.com" {
				t.Fatalf("unexpected input: %+v", in)
			}
			return &domain.User{ID: "2", Username: "bob", Role: domain.RoleEditor}, nil
		},
	}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	body := strings.NewReader(`{"username":"bob","email":"bob@example.com","password":"pw123456"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Register(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 1 {
		t.Fatalf("session cookie not issued on registration")
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	e := newEcho()
	stub := &stubController{}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "s1"})
	rec := httptest.NewRecorder()

	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(stub.logoutSIDs) != 1 || stub.logoutSIDs[0] != "s1" {
		t.Fatalf("controller logout calls: %v", stub.logoutSIDs)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("session cookie not cleared: %+v", cookies)
	}
}

func TestAuthHandler_Logout_NoSession(t *testing.T) {
	e := newEcho()
	stub := &stubController{}
	h := NewAuthHandler(stub, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()

	if err := h.Logout(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(stub.logoutSIDs) != 0 {
		t.Fatalf("controller logout called without a session")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAuthHandler_Session_Anonymous(t *testing.T) {
	e := newEcho()
	h := NewAuthHandler(&stubController{}, &stubExpiryStore{}, testCookie())

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	rec := httptest.NewRecorder()

	if err := h.Session(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["phase"] != "anonymous" {
		t.Fatalf("phase = %v, want anonymous", resp["phase"])
	}
}

func TestAuthHandler_Session_AuthenticatedWithExpiryFlag(t *testing.T) {
	e := newEcho()
	stub := &stubController{
		resolveState: domain.Authenticated(&domain.User{Username: "alice", Role: domain.RoleAdmin}),
	}
	h := NewAuthHandler(stub, &stubExpiryStore{expired: true}, testCookie())

	req := httptest.NewRequest(http.MethodGet, "/auth/session", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "s1"})
	rec := httptest.NewRecorder()

	if err := h.Session(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["phase"] != "authenticated" {
		t.Fatalf("phase = %v", resp["phase"])
	}
	if resp["expired"] != true {
		t.Fatalf("expired flag not surfaced: %+v", resp)
	}
}
