package jwt

import (
	"errors"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func TestGenerateSessionToken_RoundTrip(t *testing.T) {
	token, err := GenerateSessionToken("user-1", "sess-1", 15*time.Minute, testSecret)
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}

	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Subject != "user-1" {
		t.Errorf("user = %q subject = %q", claims.UserID, claims.Subject)
	}
	if claims.SessionID != "sess-1" {
		t.Errorf("session id = %q, want sess-1", claims.SessionID)
	}
	if claims.Issuer != "notesync" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if got := time.Until(claims.ExpiresAt.Time); got <= 14*time.Minute || got > 15*time.Minute {
		t.Errorf("expires in %s", got)
	}
}

func signWith(t *testing.T, method gojwt.SigningMethod, key interface{}) string {
	t.Helper()
	now := time.Now()
	claims := Claims{
		UserID:    "user-1",
		SessionID: "sess-1",
		RegisteredClaims: gojwt.RegisteredClaims{
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	token, err := gojwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestValidateToken_Rejects(t *testing.T) {
	mustToken := func(userID, sessionID string, exp time.Duration, secret string) string {
		token, err := GenerateSessionToken(userID, sessionID, exp, secret)
		if err != nil {
			t.Fatalf("GenerateSessionToken() error = %v", err)
		}
		return token
	}

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", mustToken("user-1", "sess-1", time.Hour, "other-secret")},
		{"expired", mustToken("user-1", "sess-1", -time.Minute, testSecret)},
		{"empty user id", mustToken("", "sess-1", time.Hour, testSecret)},
		{"HS384 instead of HS256", signWith(t, gojwt.SigningMethodHS384, []byte(testSecret))},
		{"alg none", signWith(t, gojwt.SigningMethodNone, gojwt.UnsafeAllowNoneSignatureType)},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, testSecret)
			if !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("ValidateToken() error = %v, want ErrInvalidToken", err)
			}
			if claims != nil {
				t.Errorf("ValidateToken() claims = %+v, want nil", claims)
			}
		})
	}
}

func TestValidateToken_SessionIDOptional(t *testing.T) {
	token, err := GenerateSessionToken("user-1", "", time.Hour, testSecret)
	if err != nil {
		t.Fatalf("GenerateSessionToken() error = %v", err)
	}
	claims, err := ValidateToken(token, testSecret)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.SessionID != "" {
		t.Errorf("session id = %q, want empty", claims.SessionID)
	}
}
