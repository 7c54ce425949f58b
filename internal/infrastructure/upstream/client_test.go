package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/mobilia/admin-gateway/internal/core/domain"
	"github.com/mobilia/admin-gateway/internal/core/ports"
)

func testRegisterInput() ports.RegisterInput {
	return ports.RegisterInput{Username: "bob", Email: "b@example.com", Password: "pw123456"}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second, zerolog.Nop())
}

func TestClient_Login_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["identifier"] != "alice" || body["password"] != "pw" {
			t.Fatalf("unexpected payload: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"token": "tok1",
				"user":  map[string]any{"id": "1", "username": "alice", "role": "admin"},
			},
		})
	})

	token, user, err := client.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if token != "tok1" || user.Username != "alice" || user.Role != "admin" {
		t.Fatalf("unexpected result: %q %+v", token, user)
	}
}

func TestClient_Login_BadCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid credentials"})
	})

	_, _, err := client.Login(context.Background(), "bad", "bad")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestClient_Login_EnvelopeFailure(t *testing.T) {
	// Some upstreams answer 200 with success=false.
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Invalid credentials"})
	})

	_, _, err := client.Login(context.Background(), "bad", "bad")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

// The upstream's own message must survive error classification so the API
// layer can show it instead of a generic string.
func TestClient_Login_SurfacesUpstreamMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "account locked, contact an administrator"})
	})

	_, _, err := client.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Message != "account locked, contact an administrator" {
		t.Fatalf("upstream message lost: %v", err)
	}
}

func TestClient_Login_SurfacesMessageOn401(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "password expired"})
	})

	_, _, err := client.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	var ue *domain.UpstreamError
	if !errors.As(err, &ue) || ue.Message != "password expired" {
		t.Fatalf("upstream message lost: %v", err)
	}
}

func TestClient_Profile_TokenRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok1" {
			t.Fatalf("Authorization = %q", got)
		}
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "token expired"})
	})

	_, err := client.Profile(context.Background(), "tok1")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestClient_Profile_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/profile" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"id": "1", "username": "alice", "role": "admin"},
		})
	})

	user, err := client.Profile(context.Background(), "tok1")
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if user.Username != "alice" || user.Role != "admin" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestClient_ServerError_IsTransportFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Profile(context.Background(), "tok1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClient_Unreachable_IsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // port now refuses connections
	client := New(srv.URL, time.Second, zerolog.Nop())

	_, _, err := client.Login(context.Background(), "alice", "pw")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClient_Timeout_IsTransportFailure(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.Profile(context.Background(), "tok1")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v, want ErrUpstreamUnavailable", err)
	}
}

func TestClient_Register_Conflict(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "user already exists"})
	})

	_, _, err := client.Register(context.Background(), testRegisterInput())
	if !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestClient_Catalog_PassesQueryAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Fatalf("query not forwarded: %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer tok1" {
			t.Fatalf("token not forwarded")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "p1", "name": "oak table"}},
		})
	})

	raw, err := client.Catalog(context.Background(), "tok1", "products", url.Values{"page": {"2"}})
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	var items []map[string]any
	if err := json.Unmarshal(raw, &items); err != nil || len(items) != 1 {
		t.Fatalf("unexpected payload: %s (%v)", raw, err)
	}
}
