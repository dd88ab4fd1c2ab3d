package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type memoryUserStore struct {
	users map[string]*User
}

func (m *memoryUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return m.users[email], nil
}

func (m *memoryUserStore) CreateUser(ctx context.Context, user *User) error {
	m.users[user.Email] = user
	return nil
}

func (m *memoryUserStore) ListUsers(ctx context.Context) ([]*User, error) {
	var out []*User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func newTestService(t *testing.T, expiry time.Duration) (*Service, *memoryUserStore) {
	t.Helper()

	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	store := &memoryUserStore{users: map[string]*User{
		"officer@example.com": {
			ID:       "user-1",
			Email:    "officer@example.com",
			Password: hash,
			Role:     RoleComplianceOfficer,
		},
	}}

	return NewService(Config{
		JWTSecret:   "test-secret",
		TokenExpiry: expiry,
		Issuer:      "aigov-test",
	}, store), store
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatal(err)
	}

	if !CheckPassword("hunter2", hash) {
		t.Error("correct password rejected")
	}
	if CheckPassword("hunter3", hash) {
		t.Error("wrong password accepted")
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)

	token, err := svc.Login(context.Background(), "officer@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if token.AccessToken == "" {
		t.Error("empty access token")
	}
	if token.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %s", token.TokenType)
	}

	if _, err := svc.Login(context.Background(), "officer@example.com", "wrong"); err == nil {
		t.Error("wrong password should fail")
	}
	if _, err := svc.Login(context.Background(), "nobody@example.com", "correct-horse"); err == nil {
		t.Error("unknown user should fail")
	}
}

func TestValidateToken_Roundtrip(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)

	token, err := svc.Login(context.Background(), "officer@example.com", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := svc.ValidateToken(token.AccessToken)
	if err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
	if claims.Email != "officer@example.com" {
		t.Errorf("wrong email in claims: %s", claims.Email)
	}
	if claims.Role != RoleComplianceOfficer {
		t.Errorf("wrong role in claims: %s", claims.Role)
	}

	if _, err := svc.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token accepted")
	}

	// Token signed with a different secret must be rejected.
	other := NewService(Config{JWTSecret: "other-secret", TokenExpiry: time.Minute}, nil)
	if _, err := other.ValidateToken(token.AccessToken); err == nil {
		t.Error("token with wrong signature accepted")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc, _ := newTestService(t, -time.Minute)

	token, err := svc.Login(context.Background(), "officer@example.com", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ValidateToken(token.AccessToken); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService(t, time.Minute)

	token, err := svc.Login(context.Background(), "officer@example.com", "correct-horse")
	if err != nil {
		t.Fatal(err)
	}

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetUserFromContext(r.Context())
		if !ok || claims.UserID != "user-1" {
			t.Error("claims missing from request context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + token.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", "Bearer", http.StatusUnauthorized},
		{"invalid token", "Bearer abc.def.ghi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		claims *Claims
		status int
	}{
		{"admin allowed", &Claims{UserID: "u1", Role: RoleAdmin}, http.StatusOK},
		{"auditor forbidden", &Claims{UserID: "u2", Role: RoleAuditor}, http.StatusForbidden},
		{"no claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.claims != nil {
				req = req.WithContext(context.WithValue(req.Context(), UserContextKey, tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
		})
	}
}
