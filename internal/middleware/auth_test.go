package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnonymousTokenRoundTrip(t *testing.T) {
	tok, err := SignAnonymousToken("anon-1", "ABC123", "S1", time.Hour)
	if err != nil {
		t.Fatalf("SignAnonymousToken returned error: %v", err)
	}
	c, err := parseToken(tok)
	if err != nil {
		t.Fatalf("parseToken returned error: %v", err)
	}
	if c.UID != "anon-1" || !c.Anonymous || c.SessionCode != "ABC123" || c.SessionID != "S1" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestOwnerTokenRoundTrip(t *testing.T) {
	tok, err := SignOwnerToken("u1", "owner@example.com", time.Hour)
	if err != nil {
		t.Fatalf("SignOwnerToken returned error: %v", err)
	}
	c, err := parseToken(tok)
	if err != nil {
		t.Fatalf("parseToken returned error: %v", err)
	}
	if c.UID != "u1" || c.Anonymous || c.Email != "owner@example.com" {
		t.Fatalf("unexpected claims: %+v", c)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tok, err := SignOwnerToken("u1", "owner@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("SignOwnerToken returned error: %v", err)
	}
	if _, err := parseToken(tok); err == nil {
		t.Fatalf("expected expired token to fail verification")
	}
}

func TestRequireAuth(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			t.Fatalf("claims missing in authed request")
		}
		w.Write([]byte(c.UID))
	})
	handler := WithAuth(RequireAuth(inner))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", w.Code)
	}

	tok, _ := SignOwnerToken("u1", "owner@example.com", time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("authed request = %d %q", w.Code, w.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", w.Code)
	}
}
