package jwt

import (
	"errors"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndParseToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)

	token, issued, err := tm.GenerateToken(42, "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("Generated token is empty")
	}
	if issued.ID == "" {
		t.Error("Expected a token id (jti)")
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	uid, err := claims.UID()
	if err != nil || uid != 42 {
		t.Errorf("Expected UID 42, got %d (%v)", uid, err)
	}
	if claims.UserName != "alice" {
		t.Errorf("Expected username alice, got %s", claims.UserName)
	}
	if claims.ID != issued.ID {
		t.Errorf("Expected jti %s, got %s", issued.ID, claims.ID)
	}
}

func TestGenerateToken_UniqueIDs(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 168)
	_, a, _ := tm.GenerateToken(1, "a", "a@example.com")
	_, b, _ := tm.GenerateToken(1, "a", "a@example.com")
	if a.ID == b.ID {
		t.Error("Expected distinct jti per token")
	}
}

func TestParseToken_Errors(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 1)
	other := NewTokenManager("other-secret", 1, 1)
	token, _, _ := other.GenerateToken(1, "a", "a@example.com")

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not.a.token", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
		{"wrong secret", token, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tm.ParseToken(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParseToken_Expired(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 1)
	token, _, _ := tm.GenerateToken(1, "a", "a@example.com")

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := tm.ParseToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestParseToken_NonNumericUserID(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 1)
	claims := Claims{
		UserID: "abc",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if _, err := tm.ParseToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	tm := NewTokenManager("test-secret", 1, 2)
	token, _, _ := tm.GenerateToken(7, "bob", "bob@example.com")

	// 距过期 1 小时，小于刷新窗口 2 小时
	fresh, claims, err := tm.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if fresh == "" || claims.UserName != "bob" {
		t.Errorf("Unexpected refreshed claims: %+v", claims)
	}

	// 过期超过窗口
	tm.now = func() time.Time { return time.Now().Add(4 * time.Hour) }
	if _, _, err := tm.RefreshToken(token); !errors.Is(err, ErrNotRefreshable) {
		t.Errorf("Expected ErrNotRefreshable, got %v", err)
	}
}

func TestRefreshToken_NotYetEligible(t *testing.T) {
	tm := NewTokenManager("test-secret", 24, 1)
	token, _, _ := tm.GenerateToken(7, "bob", "bob@example.com")
	if _, _, err := tm.RefreshToken(token); !errors.Is(err, ErrNotRefreshable) {
		t.Errorf("Expected ErrNotRefreshable, got %v", err)
	}
}
