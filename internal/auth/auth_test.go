package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/sickco/sickco-backend/internal/config"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		Issuer:    "https://auth.example",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
}

func bearerRequest(tok string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	}
	return r
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "authenticated", "https://auth.example")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	wrongAud := validClaims()
	wrongAud.Audience = jwt.ClaimStrings{"other"}
	wrongIss := validClaims()
	wrongIss.Issuer = "https://evil.example"
	noSub := validClaims()
	noSub.Subject = ""
	noExp := validClaims()
	noExp.ExpiresAt = nil
	longSub := validClaims()
	longSub.Subject = strings.Repeat("u", MaxUserIDLen+1)
	maxSub := validClaims()
	maxSub.Subject = strings.Repeat("u", MaxUserIDLen)

	cases := []struct {
		name    string
		req     *http.Request
		wantUID string
		wantErr error
	}{
		{"valid", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())), "user-1", nil},
		{"missing header", bearerRequest(""), "", ErrMissingCredentials},
		{"wrong secret", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte("another-secret"), validClaims())), "", ErrInvalidCredentials},
		{"wrong alg", bearerRequest(sign(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims())), "", ErrInvalidCredentials},
		{"expired", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), expired)), "", ErrInvalidCredentials},
		{"no exp", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), noExp)), "", ErrInvalidCredentials},
		{"wrong audience", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAud)), "", ErrInvalidCredentials},
		{"wrong issuer", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIss)), "", ErrInvalidCredentials},
		{"no subject", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), noSub)), "", ErrInvalidCredentials},
		{"subject too long", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), longSub)), "", ErrInvalidCredentials},
		{"subject at limit", bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), maxSub)), maxSub.Subject, nil},
		{"garbage", bearerRequest("not-a-token"), "", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uid, err := v.Verify(tc.req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil || uid != tc.wantUID {
				t.Fatalf("got %q, %v; want %q", uid, err, tc.wantUID)
			}
		})
	}

	t.Run("malformed scheme", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		if _, err := v.Verify(r); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestJWTVerifier_OptionalClaimChecks(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, "", "")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	c := validClaims()
	c.Audience = nil
	c.Issuer = ""
	if uid, err := v.Verify(bearerRequest(sign(t, jwt.SigningMethodHS256, []byte(testSecret), c))); err != nil || uid != "user-1" {
		t.Fatalf("got %q, %v", uid, err)
	}
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier(" ", "", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestHeaderVerifier(t *testing.T) {
	cases := []struct {
		header  string
		wantUID string
		wantErr error
	}{
		{"alice", "alice", nil},
		{"  bob@example.com ", "bob@example.com", nil},
		{"", "", ErrMissingCredentials},
		{"has space", "", ErrInvalidCredentials},
		{"<script>", "", ErrInvalidCredentials},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			r.Header.Set(UserHeader, tc.header)
		}
		uid, err := HeaderVerifier{}.Verify(r)
		if tc.wantErr != nil {
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("%q: expected %v, got %v", tc.header, tc.wantErr, err)
			}
			continue
		}
		if err != nil || uid != tc.wantUID {
			t.Fatalf("%q: got %q, %v", tc.header, uid, err)
		}
	}
}

func TestNew(t *testing.T) {
	if v, err := New(config.AuthConfig{Mode: "header"}); err != nil {
		t.Fatalf("header: %v", err)
	} else if _, ok := v.(HeaderVerifier); !ok {
		t.Fatalf("expected HeaderVerifier, got %T", v)
	}
	if v, err := New(config.AuthConfig{Mode: "jwt", JWTSecret: testSecret}); err != nil {
		t.Fatalf("jwt: %v", err)
	} else if _, ok := v.(*JWTVerifier); !ok {
		t.Fatalf("expected *JWTVerifier, got %T", v)
	}
	if v, err := New(config.AuthConfig{Mode: "jwt"}); err == nil || v != nil {
		t.Fatalf("jwt without secret must fail with nil verifier, got %v %v", v, err)
	}
	if _, err := New(config.AuthConfig{Mode: "oauth"}); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestContextGate(t *testing.T) {
	if _, err := (ContextGate{}).RequireUser(context.Background()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("expected ErrNoUser, got %v", err)
	}
	if _, err := (ContextGate{}).RequireUser(WithUser(context.Background(), "")); !errors.Is(err, ErrNoUser) {
		t.Fatalf("empty id must not authenticate, got %v", err)
	}
	uid, err := (ContextGate{}).RequireUser(WithUser(context.Background(), "u1"))
	if err != nil || uid != "u1" {
		t.Fatalf("got %q, %v", uid, err)
	}
}

type stubVerifier struct {
	uid string
	err error
}

func (s stubVerifier) Verify(*http.Request) (string, error) { return s.uid, s.err }

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	run := func(v Verifier) (*httptest.ResponseRecorder, string, string, error) {
		var ginUID, ctxUID string
		var denied error
		r := gin.New()
		r.Use(Middleware(v, func(c *gin.Context, err error) {
			denied = err
			c.JSON(http.StatusUnauthorized, gin.H{"code": "unauthorized"})
		}))
		r.GET("/x", func(c *gin.Context) {
			ginUID = c.GetString(ContextKey)
			ctxUID, _ = UserFrom(c.Request.Context())
			c.Status(http.StatusNoContent)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		return w, ginUID, ctxUID, denied
	}

	w, ginUID, ctxUID, denied := run(stubVerifier{uid: "u1"})
	if w.Code != http.StatusNoContent || ginUID != "u1" || ctxUID != "u1" || denied != nil {
		t.Fatalf("allowed: code=%d gin=%q ctx=%q denied=%v", w.Code, ginUID, ctxUID, denied)
	}

	w, ginUID, _, denied = run(stubVerifier{err: ErrMissingCredentials})
	if w.Code != http.StatusUnauthorized || ginUID != "" || !errors.Is(denied, ErrMissingCredentials) {
		t.Fatalf("denied: code=%d gin=%q denied=%v", w.Code, ginUID, denied)
	}

	w, _, _, denied = run(stubVerifier{uid: "  "})
	if w.Code != http.StatusUnauthorized || !errors.Is(denied, ErrInvalidCredentials) {
		t.Fatalf("blank uid: code=%d denied=%v", w.Code, denied)
	}
}
