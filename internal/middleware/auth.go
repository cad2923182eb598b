package middleware

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

type authCtxKey int

const authKey authCtxKey = 7

// Claims is the identity a QuizWire bearer token asserts. Anonymous
// participants carry the session they joined; owner accounts carry only
// UID and Email.
type Claims struct {
	UID         string `json:"uid"`
	Email       string `json:"email,omitempty"`
	Anonymous   bool   `json:"anon,omitempty"`
	SessionCode string `json:"session_code,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

func secret() []byte {
	s := os.Getenv("QUIZWIRE_JWT_SECRET")
	if s == "" {
		s = "quizwire-dev-secret"
	}
	return []byte(s)
}

func sign(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(secret())
}

// SignOwnerToken mints a token for a session owner account.
func SignOwnerToken(uid, email string, ttl time.Duration) (string, error) {
	return sign(Claims{UID: uid, Email: email}, ttl)
}

// SignAnonymousToken mints a token for an anonymous participant bound to
// one session.
func SignAnonymousToken(uid, sessionCode, sessionID string, ttl time.Duration) (string, error) {
	return sign(Claims{UID: uid, Anonymous: true, SessionCode: sessionCode, SessionID: sessionID}, ttl)
}

func parseToken(tok string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tok, &Claims{}, func(token *jwt.Token) (interface{}, error) { return secret(), nil })
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

// Attach auth claims to context if Authorization header present and valid.
func WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if strings.HasPrefix(h, "Bearer ") {
			tok := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			if c, err := parseToken(tok); err == nil {
				ctx := context.WithValue(r.Context(), authKey, c)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Value(authKey).(*Claims); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if c, ok := ctx.Value(authKey).(*Claims); ok && c.UID != "" {
		return c, true
	}
	return nil, false
}
