package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func adminRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/inbox", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminJWT_Rejections(t *testing.T) {
	badSecret, err := NewOperatorToken("other-secret", "Ana", "operator", time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	expired, err := NewOperatorToken("secret", "Ana", "operator", -time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	cases := []struct {
		name   string
		secret string
		token  string
	}{
		{"no secret configured", "", ""},
		{"missing header", "secret", ""},
		{"wrong secret", "secret", badSecret},
		{"expired token", "secret", expired},
		{"garbage token", "secret", "not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			})
			AdminJWT(tc.secret)(next).ServeHTTP(rec, adminRequest(t, tc.token))
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAdminJWT_OperatorClaimsInContext(t *testing.T) {
	token, err := NewOperatorToken("secret", "Ana Lima", "supervisor", time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec := httptest.NewRecorder()
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := OperatorFromContext(r.Context())
		if !ok {
			t.Fatal("expected operator claims in context")
		}
		if claims.Name != "Ana Lima" || claims.Role != "supervisor" {
			t.Errorf("unexpected claims: %+v", claims)
		}
	})
	AdminJWT("secret")(next).ServeHTTP(rec, adminRequest(t, token))

	if !called {
		t.Fatal("expected handler to be called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAdminJWT_RoleDefaultsToOperator(t *testing.T) {
	token, err := NewOperatorToken("secret", "Ana", "", time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	rec := httptest.NewRecorder()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := OperatorFromContext(r.Context())
		if claims.Role != "operator" {
			t.Errorf("expected default role operator, got %q", claims.Role)
		}
	})
	AdminJWT("secret")(next).ServeHTTP(rec, adminRequest(t, token))
}
