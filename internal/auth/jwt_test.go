package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mustIssuer(t *testing.T, secret string, ttl time.Duration) *Issuer {
	t.Helper()
	i, err := NewIssuer(secret, ttl)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return i
}

func TestGenerateAndValidateToken(t *testing.T) {
	issuer := mustIssuer(t, "test-secret-key", 0)

	token, err := issuer.GenerateToken(1, "admin@example.com", true)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("expected user_id 1, got %d", claims.UserID)
	}
	if claims.Email != "admin@example.com" {
		t.Errorf("expected email 'admin@example.com', got %q", claims.Email)
	}
	if !claims.IsAdmin {
		t.Error("expected admin claim")
	}
	if claims.ID == "" {
		t.Error("expected a JTI")
	}
}

func TestTokensHaveDistinctJTI(t *testing.T) {
	issuer := mustIssuer(t, "secret", 0)
	a, _ := issuer.GenerateToken(1, "a@example.com", false)
	b, _ := issuer.GenerateToken(1, "a@example.com", false)

	ca, _ := issuer.ValidateToken(a)
	cb, _ := issuer.ValidateToken(b)
	if ca.ID == cb.ID {
		t.Error("expected distinct JTIs")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := mustIssuer(t, "secret1", 0).GenerateToken(1, "a@example.com", false)

	if _, err := mustIssuer(t, "secret2", 0).ValidateToken(token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := mustIssuer(t, "secret", 0).ValidateToken("not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	claims := Claims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := mustIssuer(t, "secret", 0).ValidateToken(token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestTokenExpiry(t *testing.T) {
	issuer := mustIssuer(t, "test", time.Hour)
	token, _ := issuer.GenerateToken(1, "a@example.com", false)
	claims, _ := issuer.ValidateToken(token)

	diff := time.Now().Add(time.Hour).Sub(claims.ExpiresAt.Time)
	if diff < -5*time.Second || diff > 5*time.Second {
		t.Errorf("token expiry too far from expected: diff=%v", diff)
	}
}

func TestNewIssuerRejectsEmptySecret(t *testing.T) {
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Error("expected error for empty secret")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Error("expected mismatch")
	}
}
